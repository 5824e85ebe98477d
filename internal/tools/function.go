// Package tools holds the function catalog that is offered to the model as
// tool definitions, and resolves the model's tool calls back to functions.
package tools

import (
	"context"
	"encoding/json"
	"strings"
)

// Parameter describes one named argument of a Function. Schema is the JSON
// schema of the value; empty means a plain string.
type Parameter struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// Function is a callable exposed to the model.
type Function interface {
	// Plugin is the namespace the function belongs to. It may be empty.
	Plugin() string
	Name() string
	Description() string
	Parameters() []Parameter
	// Invoke runs the function. args holds the decoded JSON arguments.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// Handler is the body of a function built with NewFunc.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type funcFunction struct {
	plugin      string
	name        string
	description string
	params      []Parameter
	fn          Handler
}

// NewFunc creates a Function backed by fn.
func NewFunc(plugin, name, description string, params []Parameter, fn Handler) Function {
	return &funcFunction{
		plugin:      strings.TrimSpace(plugin),
		name:        strings.TrimSpace(name),
		description: description,
		params:      params,
		fn:          fn,
	}
}

func (f *funcFunction) Plugin() string          { return f.plugin }
func (f *funcFunction) Name() string            { return f.name }
func (f *funcFunction) Description() string     { return f.description }
func (f *funcFunction) Parameters() []Parameter { return f.params }

func (f *funcFunction) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f.fn(ctx, args)
}

// QualifiedSeparator joins plugin and function names on the wire.
const QualifiedSeparator = "-"

// QualifiedName returns "plugin-name", or name alone when plugin is empty.
func QualifiedName(plugin, name string) string {
	if plugin == "" {
		return name
	}
	return plugin + QualifiedSeparator + name
}

// SplitQualifiedName splits at the first separator. A separator at index 0
// or no separator at all means the name has no plugin.
func SplitQualifiedName(qualified string) (plugin, name string) {
	if i := strings.Index(qualified, QualifiedSeparator); i > 0 {
		return strings.TrimSpace(qualified[:i]), strings.TrimSpace(qualified[i+len(QualifiedSeparator):])
	}
	return "", strings.TrimSpace(qualified)
}

// ParseArguments decodes tool-call arguments. Blank input means no
// arguments. Anything other than a JSON object is an error.
func ParseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		return map[string]any{}, nil
	}
	return args, nil
}
