// Package compatible implements provider.Client on top of DashScope's
// OpenAI-compatible endpoint using github.com/sashabaranov/go-openai.
package compatible

import (
	"time"

	"qwenlink/internal/provider"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultTimeout = 120 * time.Second

	// TransportName is the registry key for this transport.
	TransportName = "compatible"
)

// Config holds compatible-mode client configuration.
type Config struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

func init() {
	provider.Register(TransportName, func(opts provider.Options) (provider.Client, error) {
		cfg := DefaultConfig()
		cfg.APIKey = opts.APIKey
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		return New(cfg), nil
	})
}
