// Package v1 implements the /api/v1 HTTP surface of the gateway.
package v1

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"qwenlink/internal/gateway/handlers"
	"qwenlink/internal/storage"
	"qwenlink/internal/tools"
)

// EmbeddingService generates vectors for a batch of texts.
type EmbeddingService interface {
	ModelID() string
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// RouterDeps holds dependencies for the v1 API router. Any of them may be
// nil; the matching endpoints then answer 503.
type RouterDeps struct {
	Chat       ChatService
	Embeddings EmbeddingService
	DB         *storage.DB
	Catalog    *tools.Catalog
}

// Router wraps v1 API dependencies.
type Router struct {
	conversations *Conversations
	embeddings    EmbeddingService
	db            *storage.DB
	catalog       *tools.Catalog
}

// NewRouter creates a new v1 API router.
func NewRouter(deps *RouterDeps) *Router {
	if deps == nil {
		deps = &RouterDeps{}
	}
	r := &Router{
		embeddings: deps.Embeddings,
		db:         deps.DB,
		catalog:    deps.Catalog,
	}
	if deps.Chat != nil && deps.DB != nil {
		r.conversations = NewConversations(deps.Chat, deps.DB, deps.Catalog)
	}
	return r
}

// Conversations returns the session-backed chat runner, nil when chat is
// not configured.
func (r *Router) Conversations() *Conversations {
	return r.conversations
}

// RegisterRoutes registers all v1 API routes.
func (r *Router) RegisterRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/chat", r.HandleChat).Methods(http.MethodPost)
	v1.HandleFunc("/chat/stream", r.HandleChatStream).Methods(http.MethodPost)

	v1.HandleFunc("/embeddings", r.HandleEmbeddings).Methods(http.MethodPost)

	v1.HandleFunc("/sessions", r.HandleListSessions).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}", r.HandleGetSession).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}", r.HandleDeleteSession).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{id}/messages", r.HandleGetMessages).Methods(http.MethodGet)

	v1.HandleFunc("/tools", r.HandleListTools).Methods(http.MethodGet)
}

// HandleListTools lists the definitions the catalog would offer.
func (r *Router) HandleListTools(w http.ResponseWriter, req *http.Request) {
	if r.catalog == nil {
		handlers.SendJSON(w, http.StatusOK, ToolsResponse{Tools: tools.BuildDefinitions(nil)})
		return
	}
	handlers.SendJSON(w, http.StatusOK, ToolsResponse{Tools: tools.BuildDefinitions(r.catalog.List())})
}
