package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwenlink/internal/jsvm"
)

func newRuntime(t *testing.T) *jsvm.Runtime {
	t.Helper()
	rt := jsvm.NewRuntime(jsvm.Config{Timeout: time.Second}, zerolog.Nop())
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestScriptFunction_Invoke(t *testing.T) {
	rt := newRuntime(t)
	fn := NewScriptFunction(rt, "math", "add", "Adds two numbers",
		[]Parameter{{Name: "a", Required: true}, {Name: "b", Required: true}},
		`args.a + args.b`)

	assert.Equal(t, "math", fn.Plugin())
	assert.Equal(t, "add", fn.Name())
	assert.Len(t, fn.Parameters(), 2)

	got, err := fn.Invoke(context.Background(), map[string]any{"a": float64(1), "b": float64(1)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, got)
}

func TestScriptFunction_NilArgs(t *testing.T) {
	rt := newRuntime(t)
	fn := NewScriptFunction(rt, "", "keys", "", nil, `Object.keys(args).length`)

	got, err := fn.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)
}

func TestScriptFunction_Throws(t *testing.T) {
	rt := newRuntime(t)
	fn := NewScriptFunction(rt, "p", "fail", "", nil, `throw new Error("no weather today")`)

	_, err := fn.Invoke(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no weather today")
	assert.Contains(t, err.Error(), "p-fail.js")
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.js"), []byte(`"你好, " + args.name`), 0o644))
	manifest := `
functions:
  - plugin: weather
    name: get_current
    description: Returns a fixed forecast
    parameters:
      - name: city
        description: City name
        required: true
      - name: unit
        type: string
        enum: [c, f]
    script: |
      ({city: args.city, temperature: 21, unit: args.unit || "c"})
  - name: greet
    file: greet.js
    parameters:
      - name: name
        required: true
`
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	rt := newRuntime(t)
	fns, err := LoadManifest(path, rt)
	require.NoError(t, err)
	require.Len(t, fns, 2)

	c := NewCatalog()
	for _, fn := range fns {
		c.MustRegister(fn)
	}
	assert.Equal(t, []string{"weather-get_current", "greet"}, c.Names())

	defs := BuildDefinitions(c.List())
	assert.JSONEq(t,
		`{"type":"object","required":["city"],"properties":{"city":{"type":"string","description":"City name"},"unit":{"type":"string","enum":["c","f"]}}}`,
		string(defs[0].Function.Parameters))

	weather, ok := c.Resolve("weather-get_current")
	require.True(t, ok)
	got, err := weather.Invoke(context.Background(), map[string]any{"city": "杭州"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "杭州", "temperature": int64(21), "unit": "c"}, got)

	greet, ok := c.Resolve("greet")
	require.True(t, ok)
	got, err = greet.Invoke(context.Background(), map[string]any{"name": "通义"})
	require.NoError(t, err)
	assert.Equal(t, "你好, 通义", got)
}

func TestLoadManifest_Errors(t *testing.T) {
	dir := t.TempDir()
	rt := newRuntime(t)

	_, err := LoadManifest(filepath.Join(dir, "missing.yaml"), rt)
	assert.Error(t, err)

	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	_, err = LoadManifest(write("bad.yaml", "functions: [\n"), rt)
	assert.ErrorContains(t, err, "parse tool manifest")

	_, err = LoadManifest(write("noname.yaml", "functions:\n  - script: '1'\n"), rt)
	assert.ErrorContains(t, err, "has no name")

	_, err = LoadManifest(write("empty.yaml", "functions:\n  - name: x\n"), rt)
	assert.ErrorContains(t, err, "empty script")

	_, err = LoadManifest(write("nofile.yaml", "functions:\n  - name: x\n    file: nope.js\n"), rt)
	assert.Error(t, err)
}
