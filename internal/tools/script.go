package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScriptRunner executes JavaScript. *jsvm.Runtime satisfies it.
type ScriptRunner interface {
	Execute(ctx context.Context, name, script string, globals map[string]any) (any, error)
}

type scriptFunction struct {
	plugin      string
	name        string
	description string
	params      []Parameter
	source      string
	runner      ScriptRunner
}

// NewScriptFunction creates a Function whose body is a JavaScript snippet.
// The arguments are bound to the global "args" and the completion value of
// the script is the result.
func NewScriptFunction(runner ScriptRunner, plugin, name, description string, params []Parameter, source string) Function {
	return &scriptFunction{
		plugin:      strings.TrimSpace(plugin),
		name:        strings.TrimSpace(name),
		description: description,
		params:      params,
		source:      source,
		runner:      runner,
	}
}

func (f *scriptFunction) Plugin() string          { return f.plugin }
func (f *scriptFunction) Name() string            { return f.name }
func (f *scriptFunction) Description() string     { return f.description }
func (f *scriptFunction) Parameters() []Parameter { return f.params }

func (f *scriptFunction) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	return f.runner.Execute(ctx, QualifiedName(f.plugin, f.name)+".js", f.source, map[string]any{"args": args})
}

// Manifest lists script functions, usually loaded from a tools.yaml file.
type Manifest struct {
	Functions []ManifestFunction `yaml:"functions"`
}

// ManifestFunction is one script function entry. Script is inline source;
// File is a path relative to the manifest and takes precedence.
type ManifestFunction struct {
	Plugin      string              `yaml:"plugin"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Parameters  []ManifestParameter `yaml:"parameters"`
	Script      string              `yaml:"script"`
	File        string              `yaml:"file"`
}

// ManifestParameter is one parameter entry. Type defaults to string.
type ManifestParameter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Type        string   `yaml:"type"`
	Enum        []string `yaml:"enum"`
}

// LoadManifest reads a YAML manifest and builds its script functions.
func LoadManifest(path string, runner ScriptRunner) ([]Function, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse tool manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	fns := make([]Function, 0, len(m.Functions))
	for i, mf := range m.Functions {
		if strings.TrimSpace(mf.Name) == "" {
			return nil, fmt.Errorf("tool manifest %s: function #%d has no name", path, i+1)
		}

		source := mf.Script
		if mf.File != "" {
			file := mf.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(base, file)
			}
			b, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", QualifiedName(mf.Plugin, mf.Name), err)
			}
			source = string(b)
		}
		if strings.TrimSpace(source) == "" {
			return nil, fmt.Errorf("tool %s: empty script", QualifiedName(mf.Plugin, mf.Name))
		}

		params := make([]Parameter, 0, len(mf.Parameters))
		for _, mp := range mf.Parameters {
			params = append(params, mp.parameter())
		}
		fns = append(fns, NewScriptFunction(runner, mf.Plugin, mf.Name, mf.Description, params, source))
	}
	return fns, nil
}

func (mp ManifestParameter) parameter() Parameter {
	p := Parameter{Name: mp.Name, Description: mp.Description, Required: mp.Required}
	if mp.Type == "" && len(mp.Enum) == 0 {
		return p
	}

	schema := map[string]any{"type": "string"}
	if mp.Type != "" {
		schema["type"] = mp.Type
	}
	if mp.Description != "" {
		schema["description"] = mp.Description
	}
	if len(mp.Enum) > 0 {
		schema["enum"] = mp.Enum
	}
	p.Schema, _ = json.Marshal(schema)
	return p
}
