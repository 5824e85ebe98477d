package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"qwenlink/internal/provider"
	"qwenlink/pkg/logger"
)

// PromptSettings are the DashScope-specific execution settings. Nil fields
// leave the service default in place.
type PromptSettings struct {
	ModelID           string   `json:"model_id,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Seed              *uint64  `json:"seed,omitempty"`
	EnableSearch      *bool    `json:"enable_search,omitempty"`
	ParallelToolCalls *bool    `json:"parallel_tool_calls,omitempty"`

	// ResultFormat and IncrementalOutput are overwritten by each operation.
	ResultFormat      string `json:"result_format,omitempty"`
	IncrementalOutput *bool  `json:"incremental_output,omitempty"`

	ToolPolicy *ToolPolicy `json:"tool_policy,omitempty"`
}

// Settings is the provider-agnostic form of execution settings. Extension
// keys use the DashScope parameter names, e.g. "temperature" or "seed".
type Settings struct {
	ModelID   string         `json:"model_id,omitempty"`
	Extension map[string]any `json:"extension,omitempty"`
}

// FromSettings converts v to PromptSettings. Supported inputs are nil,
// PromptSettings, Settings and pointers to either. The result is always a
// fresh copy.
func FromSettings(v any) (*PromptSettings, error) {
	switch s := v.(type) {
	case nil:
		return &PromptSettings{}, nil
	case *PromptSettings:
		if s == nil {
			return &PromptSettings{}, nil
		}
		return s.clone(), nil
	case PromptSettings:
		return s.clone(), nil
	case *Settings:
		if s == nil {
			return &PromptSettings{}, nil
		}
		return fromExtension(*s)
	case Settings:
		return fromExtension(s)
	default:
		return nil, &SettingsConversionError{Value: v}
	}
}

func (ps *PromptSettings) clone() *PromptSettings {
	c := *ps
	c.Stop = slices.Clone(ps.Stop)
	if ps.ToolPolicy != nil {
		p := *ps.ToolPolicy
		p.Functions = slices.Clone(ps.ToolPolicy.Functions)
		c.ToolPolicy = &p
	}
	return &c
}

func fromExtension(s Settings) (*PromptSettings, error) {
	ps := &PromptSettings{ModelID: s.ModelID}

	for key, raw := range s.Extension {
		if raw == nil {
			continue
		}
		if err := ps.set(key, raw); err != nil {
			return nil, &SettingsConversionError{Key: key, Value: raw, Err: err}
		}
	}
	return ps, nil
}

func (ps *PromptSettings) set(key string, v any) error {
	var err error
	switch key {
	case "model_id":
		if ps.ModelID == "" {
			ps.ModelID, err = toString(v)
		}
	case "temperature":
		ps.Temperature, err = floatPtr(v)
	case "top_p":
		ps.TopP, err = floatPtr(v)
	case "top_k":
		ps.TopK, err = intPtr(v)
	case "max_tokens":
		ps.MaxTokens, err = intPtr(v)
	case "repetition_penalty":
		ps.RepetitionPenalty, err = floatPtr(v)
	case "seed":
		var n uint64
		n, err = toUint64(v)
		ps.Seed = &n
	case "stop":
		ps.Stop, err = toStrings(v)
	case "enable_search":
		ps.EnableSearch, err = boolPtr(v)
	case "parallel_tool_calls":
		ps.ParallelToolCalls, err = boolPtr(v)
	case "incremental_output":
		ps.IncrementalOutput, err = boolPtr(v)
	case "result_format":
		ps.ResultFormat, err = toString(v)
	case "tool_policy":
		ps.ToolPolicy, err = toPolicy(v)
	default:
		logger.Debug().Str("key", key).Msg("Ignoring unknown execution setting")
	}
	return err
}

// toParameters builds wire parameters. Zero temperature, top_p, top_k,
// max_tokens and repetition_penalty mean unset.
func (ps *PromptSettings) toParameters() *provider.Parameters {
	p := &provider.Parameters{
		ResultFormat:      ps.ResultFormat,
		IncrementalOutput: ps.IncrementalOutput,
		Seed:              ps.Seed,
		TopP:              nonZero(ps.TopP),
		TopK:              nonZero(ps.TopK),
		MaxTokens:         nonZero(ps.MaxTokens),
		RepetitionPenalty: nonZero(ps.RepetitionPenalty),
		Temperature:       nonZero(ps.Temperature),
		EnableSearch:      ps.EnableSearch,
		ParallelToolCalls: ps.ParallelToolCalls,
	}
	if len(ps.Stop) > 0 {
		p.Stop = slices.Clone(ps.Stop)
	}
	return p
}

func nonZero[T int | float64](v *T) *T {
	if v == nil || *v == 0 {
		return nil
	}
	n := *v
	return &n
}

var errNotNumber = errors.New("not a number")

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, errNotNumber
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, nil
		}
	}

	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	return int64(f), nil
}

func toUint64(v any) (uint64, error) {
	if n, ok := v.(uint64); ok {
		return n, nil
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err == nil {
			return n, nil
		}
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("%d is negative", i)
	}
	return uint64(i), nil
}

func floatPtr(v any) (*float64, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func intPtr(v any) (*int, error) {
	i, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	n := int(i)
	return &n, nil
}

func boolPtr(v any) (*bool, error) {
	switch b := v.(type) {
	case bool:
		return &b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, errors.New("not a boolean")
	}
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("not a string")
	}
	return s, nil
}

func toStrings(v any) ([]string, error) {
	switch s := v.(type) {
	case string:
		return []string{s}, nil
	case []string:
		return slices.Clone(s), nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %v is not a string", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, errors.New("not a string list")
	}
}

func toPolicy(v any) (*ToolPolicy, error) {
	switch p := v.(type) {
	case *ToolPolicy:
		return p.clone(), nil
	case ToolPolicy:
		return p.clone(), nil
	case map[string]any:
		policy := &ToolPolicy{}
		var err error
		if raw, ok := p["enabled"]; ok {
			var b *bool
			if b, err = boolPtr(raw); err != nil {
				return nil, fmt.Errorf("enabled: %w", err)
			}
			policy.Enabled = *b
		}
		if raw, ok := p["auto_invoke"]; ok {
			var b *bool
			if b, err = boolPtr(raw); err != nil {
				return nil, fmt.Errorf("auto_invoke: %w", err)
			}
			policy.AutoInvoke = *b
		}
		if raw, ok := p["max_auto_invoke_attempts"]; ok {
			var n int64
			if n, err = toInt64(raw); err != nil {
				return nil, fmt.Errorf("max_auto_invoke_attempts: %w", err)
			}
			policy.MaxAutoInvokeAttempts = int(n)
		} else if policy.AutoInvoke {
			policy.MaxAutoInvokeAttempts = DefaultMaxAutoInvokeAttempts
		}
		if raw, ok := p["functions"]; ok && raw != nil {
			if policy.Functions, err = toStrings(raw); err != nil {
				return nil, fmt.Errorf("functions: %w", err)
			}
		}
		return policy.clone(), nil
	default:
		return nil, errors.New("not a tool policy")
	}
}
