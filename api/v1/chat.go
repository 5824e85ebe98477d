package v1

import (
	"encoding/json"
	"maps"
	"net/http"

	"github.com/google/uuid"

	"qwenlink/internal/chat"
	"qwenlink/internal/gateway/handlers"
	"qwenlink/pkg/logger"
)

const maxBodyBytes = 1 << 20

func decodeChatRequest(w http.ResponseWriter, req *http.Request) (*ChatRequest, bool) {
	var chatReq ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&chatReq); err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Invalid JSON body")
		return nil, false
	}
	if chatReq.Message == "" {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Message is required")
		return nil, false
	}
	if chatReq.SessionID == "" {
		chatReq.SessionID = uuid.New().String()
	}
	return &chatReq, true
}

// settings converts the request into chat.Settings.
func (c *ChatRequest) settings() chat.Settings {
	ext := maps.Clone(c.Settings)
	if c.Tools {
		if ext == nil {
			ext = make(map[string]any, 1)
		}
		if _, ok := ext["tool_policy"]; !ok {
			ext["tool_policy"] = chat.AutoInvokeCatalogFunctions()
		}
	}
	return chat.Settings{ModelID: c.Model, Extension: ext}
}

// HandleChat handles synchronous chat requests.
func (r *Router) HandleChat(w http.ResponseWriter, req *http.Request) {
	chatReq, ok := decodeChatRequest(w, req)
	if !ok {
		return
	}

	if r.conversations == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "Chat service not available")
		return
	}

	reply, err := r.conversations.Send(req.Context(), chatReq.SessionID, chatReq.Model, chatReq.Message, chatReq.settings())
	if err != nil {
		sendChatError(w, err)
		return
	}

	handlers.SendJSON(w, http.StatusOK, ChatResponse{
		SessionID: chatReq.SessionID,
		Message:   reply.Content,
		ToolCalls: reply.ToolCalls,
		ModelID:   reply.ModelID,
		Metadata:  reply.Metadata,
	})
}

// HandleChatStream handles streaming chat requests using SSE.
func (r *Router) HandleChatStream(w http.ResponseWriter, req *http.Request) {
	chatReq, ok := decodeChatRequest(w, req)
	if !ok {
		return
	}

	if r.conversations == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "Chat service not available")
		return
	}

	sse, ok := handlers.NewSSEWriter(w)
	if !ok {
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "Streaming not supported")
		return
	}

	send := func(event ChatStreamEvent) bool {
		if err := sse.Send(event); err != nil {
			logger.Warn().Err(err).Str("session_id", chatReq.SessionID).Msg("Failed to write SSE event to client")
			return false
		}
		return true
	}

	stream := r.conversations.Stream(req.Context(), chatReq.SessionID, chatReq.Model, chatReq.Message, chatReq.settings())
	for delta, err := range stream {
		if err != nil {
			_, detail := Classify(err)
			send(ChatStreamEvent{Type: "error", SessionID: chatReq.SessionID, Error: detail})
			break
		}
		ok := send(ChatStreamEvent{
			Type:         "content",
			Delta:        delta.Content,
			ToolCalls:    delta.ToolCalls,
			FinishReason: delta.FinishReason,
			Metadata:     delta.Metadata,
		})
		if !ok {
			return
		}
	}

	if send(ChatStreamEvent{Type: "done", SessionID: chatReq.SessionID}) {
		_ = sse.Done()
	}
}
