// Package chat services role-tagged conversations with DashScope, including
// automatic invocation of catalog functions requested by the model.
package chat

import "qwenlink/internal/provider"

// Roles used in a History.
const (
	RoleSystem    = provider.RoleSystem
	RoleUser      = provider.RoleUser
	RoleAssistant = provider.RoleAssistant
	RoleTool      = provider.RoleTool
)

// ToolCallRequest is a function call requested by the model. Name is the
// qualified "plugin-function" name and Arguments is raw JSON.
type ToolCallRequest struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Usage reports tokens consumed by one provider call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Metadata accompanies every message produced by the service.
type Metadata struct {
	Usage        *Usage `json:"usage,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Message is one entry of a conversation. A tool-role message answers the
// tool call named by ToolCallID.
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	Name       string            `json:"name,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ModelID    string            `json:"model_id,omitempty"`
	Metadata   *Metadata         `json:"metadata,omitempty"`
}

// HasToolCalls reports whether the message requests tool calls.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// StreamingMessage is one incremental chunk of an assistant reply.
type StreamingMessage struct {
	Role         string            `json:"role,omitempty"`
	Content      string            `json:"content"`
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string            `json:"finish_reason,omitempty"`
	ModelID      string            `json:"model_id,omitempty"`
	Metadata     *Metadata         `json:"metadata,omitempty"`
}

// TextContent is the result of a plain text completion, or one chunk of it.
type TextContent struct {
	Text     string    `json:"text"`
	ModelID  string    `json:"model_id,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// History is an ordered, append-only conversation owned by the caller.
// It is not safe for concurrent use.
type History struct {
	messages []Message
}

// NewHistory creates a history holding msgs.
func NewHistory(msgs ...Message) *History {
	h := &History{}
	h.messages = append(h.messages, msgs...)
	return h
}

// Add appends msg.
func (h *History) Add(msg Message) {
	h.messages = append(h.messages, msg)
}

// AddSystemMessage appends a system message.
func (h *History) AddSystemMessage(content string) {
	h.Add(Message{Role: RoleSystem, Content: content})
}

// AddUserMessage appends a user message.
func (h *History) AddUserMessage(content string) {
	h.Add(Message{Role: RoleUser, Content: content})
}

// AddAssistantMessage appends an assistant message.
func (h *History) AddAssistantMessage(content string) {
	h.Add(Message{Role: RoleAssistant, Content: content})
}

// Len returns the number of messages.
func (h *History) Len() int {
	return len(h.messages)
}

// At returns the i-th message.
func (h *History) At(i int) Message {
	return h.messages[i]
}

// Messages returns a copy of the messages in order.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}
