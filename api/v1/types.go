package v1

import (
	"qwenlink/internal/chat"
	"qwenlink/internal/gateway/handlers"
	"qwenlink/internal/provider"
	"qwenlink/internal/storage"
)

// ChatRequest represents a chat request.
type ChatRequest struct {
	SessionID string         `json:"session_id,omitempty"` // Optional, auto-created if empty
	Message   string         `json:"message"`              // Required
	Model     string         `json:"model,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"` // Extension settings, e.g. {"temperature": 0.2}
	// Tools auto-invokes catalog functions unless settings carry a tool_policy.
	Tools bool `json:"tools,omitempty"`
}

// ChatResponse represents a chat response.
type ChatResponse struct {
	SessionID string                 `json:"session_id"`
	Message   string                 `json:"message"`
	ToolCalls []chat.ToolCallRequest `json:"tool_calls,omitempty"`
	ModelID   string                 `json:"model_id,omitempty"`
	Metadata  *chat.Metadata         `json:"metadata,omitempty"`
}

// ChatStreamEvent is one SSE payload of /chat/stream. The stream ends with
// a literal "data: [DONE]" line.
type ChatStreamEvent struct {
	Type         string                 `json:"type"` // "content", "done", "error"
	SessionID    string                 `json:"session_id,omitempty"`
	Delta        string                 `json:"delta,omitempty"`
	ToolCalls    []chat.ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	Metadata     *chat.Metadata         `json:"metadata,omitempty"`
	Error        *ErrorDetail           `json:"error,omitempty"`
}

// ErrorDetail describes a failed call. REST errors carry it as
// {"error": {...}}; stream events carry it in their error field.
type ErrorDetail = handlers.ErrorDetail

// EmbeddingsRequest represents an embeddings request.
type EmbeddingsRequest struct {
	Input []string `json:"input"`
}

// EmbeddingData is one vector, at the position of its input text.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingsResponse represents an embeddings response.
type EmbeddingsResponse struct {
	Model string          `json:"model"`
	Data  []EmbeddingData `json:"data"`
}

// SessionsResponse lists sessions, most recently updated first.
type SessionsResponse struct {
	Sessions []*storage.Session `json:"sessions"`
}

// MessagesResponse lists the stored messages of a session.
type MessagesResponse struct {
	SessionID string             `json:"session_id"`
	Messages  []*storage.Message `json:"messages"`
}

// ToolsResponse lists the function definitions offered to the model.
type ToolsResponse struct {
	Tools []provider.Tool `json:"tools"`
}
