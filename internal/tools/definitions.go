package tools

import (
	"encoding/json"

	"qwenlink/internal/provider"
)

// objectSchema marshals with a stable key order: type, required, properties.
type objectSchema struct {
	Type       string                     `json:"type"`
	Required   []string                   `json:"required"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type stringSchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// BuildDefinitions converts functions to tool definitions, preserving order.
func BuildDefinitions(functions []Function) []provider.Tool {
	defs := make([]provider.Tool, 0, len(functions))
	for _, fn := range functions {
		defs = append(defs, Definition(fn))
	}
	return defs
}

// Definition converts one function to a tool definition.
func Definition(fn Function) provider.Tool {
	return provider.Tool{
		Type: provider.ToolTypeFunction,
		Function: provider.FunctionDefinition{
			Name:        QualifiedName(fn.Plugin(), fn.Name()),
			Description: fn.Description(),
			Parameters:  ParametersSchema(fn.Parameters()),
		},
	}
}

// ParametersSchema builds the object schema for params. A parameter without
// its own schema is described as a string.
func ParametersSchema(params []Parameter) json.RawMessage {
	schema := objectSchema{
		Type:       "object",
		Required:   []string{},
		Properties: make(map[string]json.RawMessage, len(params)),
	}

	for _, p := range params {
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
		if len(p.Schema) > 0 && json.Valid(p.Schema) {
			schema.Properties[p.Name] = p.Schema
			continue
		}
		raw, _ := json.Marshal(stringSchema{Type: "string", Description: p.Description})
		schema.Properties[p.Name] = raw
	}

	data, _ := json.Marshal(schema)
	return data
}
