package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"qwenlink/pkg/logger"
)

// Config 是应用配置的根结构体
type Config struct {
	Version   string          `mapstructure:"version" yaml:"version"`
	DashScope DashScopeConfig `mapstructure:"dashscope" yaml:"dashscope"`
	Gateway   GatewayConfig   `mapstructure:"gateway" yaml:"gateway"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Tools     ToolsConfig     `mapstructure:"tools" yaml:"tools"`
}

// DashScopeConfig DashScope 服务配置
type DashScopeConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// Transport 选择协议: native (DashScope 原生接口) 或 compatible (OpenAI 兼容模式)
	Transport          string `mapstructure:"transport" yaml:"transport"`
	Endpoint           string `mapstructure:"endpoint" yaml:"endpoint"`
	CompatibleEndpoint string `mapstructure:"compatible_endpoint" yaml:"compatible_endpoint"`

	ChatModel      string `mapstructure:"chat_model" yaml:"chat_model"`
	TextModel      string `mapstructure:"text_model" yaml:"text_model"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`

	TextModelMaxTokenTotal      int `mapstructure:"text_model_max_token_total" yaml:"text_model_max_token_total"`
	EmbeddingModelMaxTokenTotal int `mapstructure:"embedding_model_max_token_total" yaml:"embedding_model_max_token_total"`

	Timeout               time.Duration `mapstructure:"timeout" yaml:"timeout"`
	StreamTimeout         time.Duration `mapstructure:"stream_timeout" yaml:"stream_timeout"`
	MaxAutoInvokeAttempts int           `mapstructure:"max_auto_invoke_attempts" yaml:"max_auto_invoke_attempts"`
}

// GatewayConfig 网关配置
type GatewayConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// StorageConfig 会话存储配置
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// Retention 超过该时长未更新的会话会被清理，0 表示不清理
	Retention     time.Duration `mapstructure:"retention" yaml:"retention"`
	PruneSchedule string        `mapstructure:"prune_schedule" yaml:"prune_schedule"`
}

// ToolsConfig 函数工具配置
type ToolsConfig struct {
	// Manifest 脚本工具清单 (YAML)，为空表示只加载内置工具
	Manifest string `mapstructure:"manifest" yaml:"manifest"`
	// ScriptTimeout 单次脚本执行超时
	ScriptTimeout time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load 加载配置文件
// 优先级: ENV > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("QWENLINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// 兼容 DashScope SDK 惯用的环境变量
	_ = viper.BindEnv("dashscope.api_key", "QWENLINK_DASHSCOPE_API_KEY", "DASHSCOPE_API_KEY")

	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expandedPath

		viper.SetConfigFile(expandedPath)
		if err := viper.ReadInConfig(); err != nil {
			// 文件不存在时使用默认值
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigParseError); ok {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Watch 监听配置文件变化，变化后重新解析并回调
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			logger.Warn().Err(err).Str("file", e.Name).Msg("Failed to reload config")
			return
		}

		mu.Lock()
		globalConfig = &cfg
		mu.Unlock()

		logger.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("Config reloaded")
		if onChange != nil {
			onChange(&cfg)
		}
	})
	viper.WatchConfig()
}

// GetConfig 获取当前配置
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Get 获取任意配置键值
func Get(key string) any {
	return viper.Get(key)
}

// GetString 获取字符串配置值
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt 获取整数配置值
func GetInt(key string) int {
	return viper.GetInt(key)
}

// Set 设置配置值，若已关联配置文件则立即持久化
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)
	if configPath != "" {
		return save()
	}
	return nil
}

// Save 保存配置到文件
func Save() error {
	mu.Lock()
	defer mu.Unlock()
	return save()
}

// save 调用者需要持有锁
func save() error {
	if configPath == "" {
		return errors.New("config path not set")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}

	// 0600: 文件中含 API Key
	return os.WriteFile(configPath, data, 0600)
}

// SaveTo 保存配置到指定路径
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Reset 重置配置（主要用于测试）
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}

// SetTestConfig 设置全局配置（仅用于测试）
func SetTestConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = cfg
}
