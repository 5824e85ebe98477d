package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// supportedVersions 是当前程序可以读取的配置文件版本范围
const supportedVersions = ">= 1.0.0, < 2.0.0"

// ValidationError 表示某个配置项不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// EnsureValid 校验运行所需的配置项
func (c *Config) EnsureValid() error {
	if err := checkVersion(c.Version); err != nil {
		return err
	}
	return c.DashScope.EnsureValid()
}

// EnsureValid 校验 DashScope 配置
func (c *DashScopeConfig) EnsureValid() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &ValidationError{Field: "dashscope.api_key", Message: "api key is empty"}
	}
	if c.TextModelMaxTokenTotal < 1 {
		return &ValidationError{Field: "dashscope.text_model_max_token_total", Message: "must be at least 1"}
	}
	if c.EmbeddingModelMaxTokenTotal < 1 {
		return &ValidationError{Field: "dashscope.embedding_model_max_token_total", Message: "must be at least 1"}
	}
	switch c.Transport {
	case "", TransportNative, TransportCompatible:
	default:
		return &ValidationError{Field: "dashscope.transport", Message: fmt.Sprintf("unknown transport %q", c.Transport)}
	}
	if c.MaxAutoInvokeAttempts < 0 {
		return &ValidationError{Field: "dashscope.max_auto_invoke_attempts", Message: "must not be negative"}
	}
	return nil
}

func checkVersion(v string) error {
	if v == "" {
		return nil
	}

	version, err := semver.NewVersion(v)
	if err != nil {
		return &ValidationError{Field: "version", Message: err.Error()}
	}

	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return err
	}
	if !constraint.Check(version) {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("%s is not supported (want %s)", version, supportedVersions),
		}
	}
	return nil
}
