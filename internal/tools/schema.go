package tools

import (
	"encoding/json"
	"reflect"
	"strings"
)

// ParametersOf derives function parameters from a struct's exported fields.
// It supports the following struct tags:
//   - json: parameter name (fields tagged "-" are skipped)
//   - jsonschema: description=<text>, required, enum=<v1|v2>
//
// Example usage:
//
//	type Args struct {
//	    City string `json:"city" jsonschema:"description=City name,required"`
//	    Days int    `json:"days" jsonschema:"description=Forecast days"`
//	}
//	params := ParametersOf(Args{})
func ParametersOf(v any) []Parameter {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var params []Parameter
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			n, _, _ := strings.Cut(tag, ",")
			if n == "-" {
				continue
			}
			if n != "" {
				name = n
			}
		}

		p := Parameter{Name: name}
		schema := typeSchema(field.Type)
		if tag := field.Tag.Get("jsonschema"); tag != "" {
			applySchemaTag(tag, schema, &p)
		}
		p.Schema, _ = json.Marshal(schema)
		params = append(params, p)
	}
	return params
}

func typeSchema(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem())}
	case reflect.Struct:
		props := map[string]any{}
		var required []string
		for _, p := range ParametersOf(reflect.New(t).Elem().Interface()) {
			var s any
			_ = json.Unmarshal(p.Schema, &s)
			props[p.Name] = s
			if p.Required {
				required = append(required, p.Name)
			}
		}
		schema := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema
	default:
		return map[string]any{"type": "object"}
	}
}

func applySchemaTag(tag string, schema map[string]any, p *Parameter) {
	for _, attr := range strings.Split(tag, ",") {
		attr = strings.TrimSpace(attr)
		switch {
		case attr == "required":
			p.Required = true
		case strings.HasPrefix(attr, "description="):
			p.Description = strings.TrimPrefix(attr, "description=")
			schema["description"] = p.Description
		case strings.HasPrefix(attr, "enum="):
			vals := strings.Split(strings.TrimPrefix(attr, "enum="), "|")
			schema["enum"] = vals
		}
	}
}
