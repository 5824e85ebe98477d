// Package gateway provides the HTTP gateway server.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	v1 "qwenlink/api/v1"
	"qwenlink/internal/chat"
	"qwenlink/internal/config"
	"qwenlink/internal/gateway/handlers"
	"qwenlink/internal/gateway/middleware"
	"qwenlink/internal/gateway/websocket"
	"qwenlink/internal/metrics"
	"qwenlink/pkg/logger"
)

// Server represents the HTTP gateway server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	hub        *websocket.Hub
	api        *v1.Router
	config     *config.Config
	metrics    *metrics.Recorder
	version    string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes rec on /metrics when metrics are enabled.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = rec }
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// NewServer creates a new gateway server. deps may be nil.
func NewServer(cfg *config.Config, hub *websocket.Hub, deps *v1.RouterDeps, opts ...Option) *Server {
	if deps == nil {
		deps = &v1.RouterDeps{}
	}
	router := mux.NewRouter()

	// Recovery -> Logging -> router
	handler := middleware.Recovery(
		middleware.Logging(logger.Component("gateway"))(router),
	)

	s := &Server{
		httpServer: &http.Server{
			Handler:     handler,
			ReadTimeout: 60 * time.Second,
			// SSE responses stream for as long as the model does.
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		},
		router:  router,
		hub:     hub,
		api:     v1.NewRouter(deps),
		config:  cfg,
		version: cfg.Version,
	}
	for _, opt := range opts {
		opt(s)
	}

	model := ""
	if deps.Chat != nil {
		model = deps.Chat.ModelID()
	}
	var pinger handlers.Pinger
	if deps.DB != nil {
		pinger = deps.DB
	}
	s.setupRoutes(model, pinger)

	if hub != nil {
		hub.SetChatHandler(s.handleWebSocketChat)
	}
	return s
}

// setupRoutes configures the server routes.
func (s *Server) setupRoutes(model string, pinger handlers.Pinger) {
	s.router.HandleFunc("/health", handlers.HealthHandler(s.version, model, pinger)).Methods(http.MethodGet)

	if s.metrics != nil && s.config.Metrics.Enabled {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.api.RegisterRoutes(s.router)

	if s.hub != nil {
		s.router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWs(s.hub, w, r)
		})
	}
}

// handleWebSocketChat streams one chat turn to the session's subscribers.
func (s *Server) handleWebSocketChat(ctx context.Context, req websocket.ChatRequest) {
	publish := func(msg websocket.WSMessage) {
		msg.Session = req.Session
		_ = s.hub.Publish(msg)
	}

	conversations := s.api.Conversations()
	if conversations == nil {
		publish(websocket.WSMessage{Type: websocket.TypeError, Code: handlers.ErrCodeServiceUnavailable, Message: "chat service not available"})
		return
	}

	settings := chat.Settings{ModelID: req.Model, Extension: req.Settings}
	for delta, err := range conversations.Stream(ctx, req.Session, req.Model, req.Message, settings) {
		if err != nil {
			_, detail := v1.Classify(err)
			publish(websocket.WSMessage{Type: websocket.TypeError, Code: detail.Code, Message: detail.Message})
			return
		}
		publish(websocket.WSMessage{
			Type:         websocket.TypeStream,
			Delta:        delta.Content,
			ToolCalls:    delta.ToolCalls,
			FinishReason: delta.FinishReason,
			Metadata:     delta.Metadata,
		})
	}
	publish(websocket.WSMessage{Type: websocket.TypeDone})
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	handlers.InitStartTime()
	s.httpServer.Addr = ln.Addr().String()

	if s.hub != nil {
		go s.hub.Run()
	}

	logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("Starting gateway server")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Gateway.Host, fmt.Sprint(s.config.Gateway.Port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	if s.hub != nil {
		s.hub.Stop()
	}
	if err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// Handler returns the server's full handler chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}
