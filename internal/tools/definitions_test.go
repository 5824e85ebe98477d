package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwenlink/internal/provider"
)

func TestBuildDefinitions(t *testing.T) {
	noop := func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }

	fns := []Function{
		NewFunc("weather", "get_current", "Gets the current weather", []Parameter{
			{Name: "city", Description: "City name", Required: true},
			{Name: "unit", Schema: json.RawMessage(`{"type":"string","enum":["c","f"]}`)},
		}, noop),
		NewFunc("", "ping", "", nil, noop),
	}

	defs := BuildDefinitions(fns)
	require.Len(t, defs, 2)

	assert.Equal(t, provider.ToolTypeFunction, defs[0].Type)
	assert.Equal(t, "weather-get_current", defs[0].Function.Name)
	assert.Equal(t, "Gets the current weather", defs[0].Function.Description)
	assert.Equal(t,
		`{"type":"object","required":["city"],"properties":{"city":{"type":"string","description":"City name"},"unit":{"type":"string","enum":["c","f"]}}}`,
		string(defs[0].Function.Parameters))

	assert.Equal(t, "ping", defs[1].Function.Name)
	assert.Equal(t, `{"type":"object","required":[],"properties":{}}`, string(defs[1].Function.Parameters))
}

func TestParametersSchema_DefaultString(t *testing.T) {
	schema := ParametersSchema([]Parameter{{Name: "q"}, {Name: "bad", Schema: json.RawMessage(`{nope`)}})
	assert.Equal(t,
		`{"type":"object","required":[],"properties":{"bad":{"type":"string"},"q":{"type":"string"}}}`,
		string(schema))
}

func TestParametersOf(t *testing.T) {
	type args struct {
		City    string   `json:"city" jsonschema:"description=City name,required"`
		Days    int      `json:"days,omitempty"`
		Unit    string   `json:"unit" jsonschema:"enum=c|f"`
		Tags    []string `json:"tags"`
		Ignored string   `json:"-"`
		hidden  string
	}

	params := ParametersOf(args{})
	require.Len(t, params, 4)

	assert.Equal(t, "city", params[0].Name)
	assert.True(t, params[0].Required)
	assert.Equal(t, "City name", params[0].Description)
	assert.JSONEq(t, `{"type":"string","description":"City name"}`, string(params[0].Schema))

	assert.Equal(t, "days", params[1].Name)
	assert.False(t, params[1].Required)
	assert.JSONEq(t, `{"type":"integer"}`, string(params[1].Schema))

	assert.JSONEq(t, `{"type":"string","enum":["c","f"]}`, string(params[2].Schema))
	assert.JSONEq(t, `{"type":"array","items":{"type":"string"}}`, string(params[3].Schema))

	assert.Nil(t, ParametersOf("not a struct"))
	assert.Nil(t, ParametersOf(nil))
}
