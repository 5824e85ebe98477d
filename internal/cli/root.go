// Package cli implements the qwenlink command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"qwenlink/internal/config"
	"qwenlink/pkg/logger"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

var errNoContext = errors.New("CLI context not initialized")

// contextKey CLI 上下文键
type contextKey struct{}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qwenlink",
		Short: "qwenlink - DashScope / Qwen chat connector",
		Long: `qwenlink talks to Alibaba Cloud DashScope (Qwen models).
It provides chat with automatic function calling, text completion,
embeddings, stored conversation sessions and an HTTP/WebSocket gateway.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 跳过 version 和 help 命令的初始化
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			// 确定配置路径
			configPath := globalFlags.ConfigPath
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			// 加载配置
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// 初始化 Logger
			logLevel := cfg.Log.Level
			if globalFlags.Verbose {
				logLevel = "debug"
			}
			if globalFlags.Quiet {
				logLevel = "error"
			}

			if err := logger.Init(logger.LogConfig{
				Level:  logLevel,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}); err != nil {
				return err
			}

			// 确定存储路径
			storagePath := cfg.Storage.Path
			if storagePath == "" {
				storagePath, err = config.DefaultDataPath()
			} else {
				storagePath, err = config.ExpandPath(storagePath)
			}
			if err != nil {
				return err
			}

			// 创建 CLI 上下文
			cliCtx := NewCLIContext(cfg, configPath, logger.Get(), storagePath, globalFlags.Verbose, globalFlags.Quiet)
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			// 关闭资源
			if cliCtx := GetCLIContext(cmd); cliCtx != nil {
				return cliCtx.Close()
			}
			return nil
		},
	}

	// 添加全局标志
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "quiet mode")

	// 添加子命令
	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewChatCmd())
	rootCmd.AddCommand(NewCompleteCmd())
	rootCmd.AddCommand(NewEmbedCmd())
	rootCmd.AddCommand(NewSessionCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewToolCmd())
	rootCmd.AddCommand(NewDoctorCmd())

	return rootCmd
}

// GetCLIContext 从命令上下文获取 CLI 上下文
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, ok := ctx.Value(contextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cliCtx
}

func requireCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return nil, errNoContext
	}
	return cliCtx, nil
}
