package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	v1 "qwenlink/api/v1"
	"qwenlink/internal/chat"
	"qwenlink/internal/config"
	"qwenlink/internal/gateway"
	"qwenlink/internal/gateway/websocket"
	"qwenlink/internal/metrics"
	"qwenlink/internal/storage"
	"qwenlink/pkg/logger"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the qwenlink gateway server",
		Long: `Start the qwenlink gateway server.

This command starts the HTTP gateway server that provides:
- REST chat, streaming chat (SSE) and embeddings endpoints
- Session history endpoints
- WebSocket streaming chat on /ws
- Prometheus metrics on /metrics

Stale sessions are pruned on storage.prune_schedule. Changes to the log
level in the config file are applied without a restart.`,
		Example: `  # Start server with default configuration
  qwenlink serve

  # Start server with custom port
  qwenlink serve --port 8080`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx, err := requireCLIContext(cmd)
	if err != nil {
		return err
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	// Override config with flags if provided
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Gateway.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Gateway.Host = host
	}

	db, err := cliCtx.GetStorage()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	var rec *metrics.Recorder
	var chatOpts []chat.Option
	if cfg.Metrics.Enabled {
		rec = metrics.New()
		rec.Registry().MustRegister(collectors.NewDBStatsCollector(db.DB, "qwenlink"))
		chatOpts = append(chatOpts, chat.WithUsageRecorder(rec))
	}

	svc, err := cliCtx.ChatService(chatOpts...)
	if err != nil {
		return err
	}
	catalog, err := cliCtx.Catalog()
	if err != nil {
		return fmt.Errorf("load tools: %w", err)
	}

	deps := &v1.RouterDeps{Chat: svc, DB: db, Catalog: catalog}
	if gen, err := cliCtx.Embeddings(); err != nil {
		log.Warn().Err(err).Msg("Embeddings endpoint disabled")
	} else {
		deps.Embeddings = gen
	}

	scheduler, err := newPruneScheduler(db, cfg.Storage, logger.Component("prune"))
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	if _, err := os.Stat(cliCtx.ConfigPath); err == nil {
		config.Watch(func(newCfg *config.Config) {
			logger.SetLevel(newCfg.Log.Level)
		})
	}

	srv := gateway.NewServer(cfg, websocket.NewHub(), deps,
		gateway.WithMetrics(rec),
		gateway.WithVersion(Version),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().
		Str("address", "http://"+srv.Addr()).
		Str("model", svc.ModelID()).
		Int("tools", catalog.Len()).
		Msg("Server started")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
		return nil
	}

	// Graceful shutdown
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

// newPruneScheduler 按 prune_schedule 定期清理超过 retention 未更新的会话
func newPruneScheduler(db *storage.DB, cfg config.StorageConfig, log zerolog.Logger) (*cron.Cron, error) {
	c := cron.New()
	if cfg.Retention <= 0 || cfg.PruneSchedule == "" {
		log.Debug().Msg("Session pruning disabled")
		return c, nil
	}

	_, err := c.AddFunc(cfg.PruneSchedule, func() {
		n, err := db.PruneSessions(cfg.Retention)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune sessions")
			return
		}
		if n > 0 {
			log.Info().Int64("sessions", n).Dur("retention", cfg.Retention).Msg("Pruned stale sessions")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid storage.prune_schedule %q: %w", cfg.PruneSchedule, err)
	}
	return c, nil
}
