// Package websocket serves streaming chat over WebSocket connections.
package websocket

import "qwenlink/internal/chat"

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`

	// chat requests
	Message  string         `json:"message,omitempty"`
	Model    string         `json:"model,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`

	// stream frames
	Delta        string                 `json:"delta,omitempty"`
	ToolCalls    []chat.ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	Metadata     *chat.Metadata         `json:"metadata,omitempty"`

	Code string `json:"code,omitempty"`
}

// BroadcastMessage wraps a message with its target session.
type BroadcastMessage struct {
	Session string
	Data    []byte
}

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeChat        = "chat"
	TypeStream      = "stream"
	TypeDone        = "done"
	TypeError       = "error"
)
