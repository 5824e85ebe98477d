package cli

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"qwenlink/internal/chat"
	"qwenlink/internal/config"
	"qwenlink/internal/embedding"
	"qwenlink/internal/jsvm"
	"qwenlink/internal/provider"
	"qwenlink/internal/provider/compatible"
	"qwenlink/internal/provider/dashscope"
	"qwenlink/internal/storage"
	"qwenlink/internal/textgen"
	"qwenlink/internal/tools"
	"qwenlink/internal/tools/builtin"
	"qwenlink/pkg/logger"
)

// CLIContext CLI 上下文
type CLIContext struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *zerolog.Logger
	StoragePath string
	Verbose     bool
	Quiet       bool

	storageOnce sync.Once
	storage     *storage.DB
	storageErr  error

	clientOnce sync.Once
	client     provider.Client
	clientErr  error

	runtime *jsvm.Runtime
}

// NewCLIContext 创建 CLI 上下文
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, storagePath string, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:      cfg,
		ConfigPath:  configPath,
		Logger:      log,
		StoragePath: storagePath,
		Verbose:     verbose,
		Quiet:       quiet,
	}
}

// GetStorage 获取存储连接（懒加载）
func (c *CLIContext) GetStorage() (*storage.DB, error) {
	c.storageOnce.Do(func() {
		c.storage, c.storageErr = storage.Open(c.StoragePath)
	})
	return c.storage, c.storageErr
}

// Client 按配置的 transport 创建 DashScope 客户端（懒加载）
func (c *CLIContext) Client() (provider.Client, error) {
	c.clientOnce.Do(func() {
		c.client, c.clientErr = NewProviderClient(c.Config.DashScope)
	})
	return c.client, c.clientErr
}

// NewProviderClient builds the client for cfg.Transport after validating cfg.
func NewProviderClient(cfg config.DashScopeConfig) (provider.Client, error) {
	if err := cfg.EnsureValid(); err != nil {
		return nil, err
	}

	opts := provider.Options{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.Endpoint,
		Timeout:       cfg.Timeout,
		StreamTimeout: cfg.StreamTimeout,
	}
	transport := cfg.Transport
	switch transport {
	case "", config.TransportNative:
		transport = dashscope.TransportName
	case config.TransportCompatible:
		transport = compatible.TransportName
		opts.BaseURL = cfg.CompatibleEndpoint
	}
	return provider.New(transport, opts)
}

// ChatService 创建对话服务
func (c *CLIContext) ChatService(opts ...chat.Option) (*chat.Service, error) {
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	return chat.NewService(client, c.Config.DashScope.ChatModel, opts...), nil
}

func (c *CLIContext) textModel() string {
	if m := c.Config.DashScope.TextModel; m != "" {
		return m
	}
	return c.Config.DashScope.ChatModel
}

// TextService 创建使用文本模型的服务
func (c *CLIContext) TextService() (*chat.Service, error) {
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	return chat.NewService(client, c.textModel()), nil
}

// TextGenerator 创建流式文本生成器
func (c *CLIContext) TextGenerator() (*textgen.Generator, error) {
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	return textgen.New(client, c.textModel(),
		textgen.WithMaxTokenTotal(c.Config.DashScope.TextModelMaxTokenTotal),
	), nil
}

// Embeddings 创建向量生成器，当前 transport 不支持时返回错误
func (c *CLIContext) Embeddings() (*embedding.Generator, error) {
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	embedder, ok := client.(provider.Embedder)
	if !ok {
		return nil, fmt.Errorf("transport %s does not support embeddings", client.Name())
	}
	return embedding.New(embedder, c.Config.DashScope.EmbeddingModel,
		embedding.WithMaxTokens(c.Config.DashScope.EmbeddingModelMaxTokenTotal),
	), nil
}

// Catalog 加载内置工具以及配置中的脚本工具
func (c *CLIContext) Catalog() (*tools.Catalog, error) {
	catalog := tools.NewCatalog()
	if err := builtin.Register(catalog); err != nil {
		return nil, err
	}

	manifest := c.Config.Tools.Manifest
	if manifest == "" {
		return catalog, nil
	}
	path, err := config.ExpandPath(manifest)
	if err != nil {
		return nil, err
	}

	if c.runtime == nil {
		jsCfg := jsvm.DefaultConfig()
		if c.Config.Tools.ScriptTimeout > 0 {
			jsCfg.Timeout = c.Config.Tools.ScriptTimeout
		}
		c.runtime = jsvm.NewRuntime(jsCfg, logger.Component("jsvm"))
	}
	fns, err := tools.LoadManifest(path, c.runtime)
	if err != nil {
		return nil, err
	}
	for _, fn := range fns {
		if err := catalog.Register(fn); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// ToolPolicy 返回自动调用工具的策略，轮数取自配置
func (c *CLIContext) ToolPolicy() *chat.ToolPolicy {
	policy := chat.AutoInvokeCatalogFunctions()
	if n := c.Config.DashScope.MaxAutoInvokeAttempts; n > 0 {
		policy.MaxAutoInvokeAttempts = n
	}
	return policy
}

// Close 关闭资源
func (c *CLIContext) Close() error {
	var errs []error
	if c.runtime != nil {
		errs = append(errs, c.runtime.Close())
	}
	if c.storage != nil {
		errs = append(errs, c.storage.Close())
	}
	return errors.Join(errs...)
}

// Log 获取 Logger
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
