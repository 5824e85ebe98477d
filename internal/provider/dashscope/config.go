// Package dashscope implements provider.Client against the native DashScope
// HTTP API, including its SSE streaming mode.
// API docs: https://help.aliyun.com/zh/dashscope/developer-reference/api-details
package dashscope

import (
	"time"

	"qwenlink/internal/provider"
)

// Default configuration values.
const (
	DefaultEndpoint      = "https://dashscope.aliyuncs.com/api/v1"
	DefaultTimeout       = 120 * time.Second
	DefaultStreamTimeout = 10 * time.Minute

	// TransportName is the registry key for this transport.
	TransportName = "native"
)

// Config holds native client configuration.
type Config struct {
	APIKey        string        `mapstructure:"api_key"`
	Endpoint      string        `mapstructure:"endpoint"`
	WorkspaceID   string        `mapstructure:"workspace_id"`   // optional X-DashScope-WorkSpace header
	Timeout       time.Duration `mapstructure:"timeout"`        // non-streaming request timeout
	StreamTimeout time.Duration `mapstructure:"stream_timeout"` // time to first response header when streaming
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:      DefaultEndpoint,
		Timeout:       DefaultTimeout,
		StreamTimeout: DefaultStreamTimeout,
	}
}

func init() {
	provider.Register(TransportName, func(opts provider.Options) (provider.Client, error) {
		cfg := DefaultConfig()
		cfg.APIKey = opts.APIKey
		if opts.BaseURL != "" {
			cfg.Endpoint = opts.BaseURL
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		if opts.StreamTimeout > 0 {
			cfg.StreamTimeout = opts.StreamTimeout
		}
		return New(cfg), nil
	})
}
