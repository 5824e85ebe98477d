package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwenlink/internal/tools"
)

func TestRegister(t *testing.T) {
	c := tools.NewCatalog()
	require.NoError(t, Register(c))
	assert.Equal(t, []string{"builtin-now", "builtin-count_characters"}, c.Names())

	// registering twice reports the duplicate
	assert.ErrorIs(t, Register(c), tools.ErrFunctionAlreadyExists)
}

func TestNow(t *testing.T) {
	got, err := now(context.Background(), map[string]any{"timezone": "UTC"})
	require.NoError(t, err)
	ts, err := time.Parse(time.RFC3339, got.(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)

	_, err = now(context.Background(), map[string]any{"timezone": "Mars/Olympus"})
	assert.Error(t, err)
}

func TestCountCharacters(t *testing.T) {
	got, err := countCharacters(context.Background(), map[string]any{"text": "请问 1+1 是多少"})
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	_, err = countCharacters(context.Background(), map[string]any{})
	assert.Error(t, err)
}
