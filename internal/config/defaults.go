package config

import (
	"time"

	"github.com/spf13/viper"
)

// 默认值
const (
	DefaultVersion                     = "1.0.0"
	DefaultEndpoint                    = "https://dashscope.aliyuncs.com/api/v1"
	DefaultCompatibleEndpoint          = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultChatModel                   = "qwen-max"
	DefaultEmbeddingModel              = "text-embedding-v2"
	DefaultTextModelMaxTokenTotal      = 6000
	DefaultEmbeddingModelMaxTokenTotal = 2048
	DefaultMaxAutoInvokeAttempts       = 5

	TransportNative     = "native"
	TransportCompatible = "compatible"
)

// SetDefaults 设置所有配置项的默认值
func SetDefaults() {
	viper.SetDefault("version", DefaultVersion)

	// DashScope 配置
	viper.SetDefault("dashscope.api_key", "")
	viper.SetDefault("dashscope.transport", TransportNative)
	viper.SetDefault("dashscope.endpoint", DefaultEndpoint)
	viper.SetDefault("dashscope.compatible_endpoint", DefaultCompatibleEndpoint)
	viper.SetDefault("dashscope.chat_model", DefaultChatModel)
	viper.SetDefault("dashscope.text_model", DefaultChatModel)
	viper.SetDefault("dashscope.embedding_model", DefaultEmbeddingModel)
	viper.SetDefault("dashscope.text_model_max_token_total", DefaultTextModelMaxTokenTotal)
	viper.SetDefault("dashscope.embedding_model_max_token_total", DefaultEmbeddingModelMaxTokenTotal)
	viper.SetDefault("dashscope.timeout", 120*time.Second)
	viper.SetDefault("dashscope.stream_timeout", 10*time.Minute)
	viper.SetDefault("dashscope.max_auto_invoke_attempts", DefaultMaxAutoInvokeAttempts)

	// Gateway 配置
	viper.SetDefault("gateway.host", "127.0.0.1")
	viper.SetDefault("gateway.port", 18790)

	// Log 配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")

	// Storage 配置
	viper.SetDefault("storage.path", "")
	viper.SetDefault("storage.retention", 30*24*time.Hour)
	viper.SetDefault("storage.prune_schedule", "@hourly")

	// Tools 配置
	viper.SetDefault("tools.manifest", "")
	viper.SetDefault("tools.script_timeout", 10*time.Second)

	// Metrics 配置
	viper.SetDefault("metrics.enabled", true)
}
