package provider

import "encoding/json"

// Message is a chat message in DashScope wire shape.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Index    int          `json:"index,omitempty"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the qualified function name and its JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Tool is a tool definition offered to the model.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Input is either a bare prompt or a message list.
type Input struct {
	Prompt   string    `json:"prompt,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// Parameters are the DashScope generation parameters. Pointer fields are
// omitted from the request when nil so the service default applies.
type Parameters struct {
	ResultFormat      string   `json:"result_format,omitempty"`
	IncrementalOutput *bool    `json:"incremental_output,omitempty"`
	Seed              *uint64  `json:"seed,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	EnableSearch      *bool    `json:"enable_search,omitempty"`
	ParallelToolCalls *bool    `json:"parallel_tool_calls,omitempty"`
	Tools             []Tool   `json:"tools,omitempty"`
}

// Request is a text-generation request.
type Request struct {
	Model      string      `json:"model"`
	Input      Input       `json:"input"`
	Parameters *Parameters `json:"parameters,omitempty"`
}

// Response is a text-generation response or, when streaming, one chunk of it.
type Response struct {
	Output    Output `json:"output"`
	Usage     *Usage `json:"usage,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Output holds either Text (result_format=text) or Choices (result_format=message).
type Output struct {
	Text         string   `json:"text,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
	Choices      []Choice `json:"choices,omitempty"`
}

// Choice is one completion choice.
type Choice struct {
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

// Usage represents token usage statistics.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EmbeddingRequest is a text-embedding request.
type EmbeddingRequest struct {
	Model      string               `json:"model"`
	Input      EmbeddingInput       `json:"input"`
	Parameters *EmbeddingParameters `json:"parameters,omitempty"`
}

// EmbeddingInput lists the texts to embed.
type EmbeddingInput struct {
	Texts []string `json:"texts"`
}

// EmbeddingParameters tunes embedding generation.
type EmbeddingParameters struct {
	TextType string `json:"text_type,omitempty"` // query or document
}

// EmbeddingResponse is a text-embedding response.
type EmbeddingResponse struct {
	Output    EmbeddingOutput `json:"output"`
	Usage     *EmbeddingUsage `json:"usage,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// EmbeddingOutput holds one vector per input text.
type EmbeddingOutput struct {
	Embeddings []Embedding `json:"embeddings"`
}

// Embedding is the vector for Input.Texts[TextIndex].
type Embedding struct {
	TextIndex int       `json:"text_index"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingUsage reports tokens consumed by an embedding call.
type EmbeddingUsage struct {
	TotalTokens int `json:"total_tokens"`
}

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Result formats.
const (
	ResultFormatText    = "text"
	ResultFormatMessage = "message"
)

// ToolTypeFunction is the only tool type DashScope defines.
const ToolTypeFunction = "function"

// FinishReason constants. DashScope reports "null" on intermediate stream chunks.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
	FinishReasonNull      = "null"
)

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 { return &v }
