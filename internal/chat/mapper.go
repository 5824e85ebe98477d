package chat

import "qwenlink/internal/provider"

// ToProviderMessages converts history to wire messages, preserving order.
func ToProviderMessages(h *History) []provider.Message {
	if h == nil {
		return nil
	}
	out := make([]provider.Message, 0, len(h.messages))
	for _, m := range h.messages {
		out = append(out, toProviderMessage(m))
	}
	return out
}

func toProviderMessage(m Message) provider.Message {
	pm := provider.Message{
		Role:       m.Role,
		Content:    m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for i, tc := range m.ToolCalls {
		pm.ToolCalls = append(pm.ToolCalls, provider.ToolCall{
			ID:    tc.ID,
			Index: i,
			Type:  tc.Type,
			Function: provider.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return pm
}

// ToMessage wraps a response choice as a Message carrying its tool calls.
func ToMessage(choice provider.Choice, modelID string, meta *Metadata) *Message {
	role := choice.Message.Role
	if role == "" {
		role = RoleAssistant
	}
	if meta != nil && finished(choice.FinishReason) {
		meta.FinishReason = choice.FinishReason
	}
	return &Message{
		Role:      role,
		Content:   choice.Message.Content,
		Name:      choice.Message.Name,
		ToolCalls: toToolCallRequests(choice.Message.ToolCalls),
		ModelID:   modelID,
		Metadata:  meta,
	}
}

func toToolCallRequests(calls []provider.ToolCall) []ToolCallRequest {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCallRequest, 0, len(calls))
	for _, tc := range calls {
		out = append(out, ToolCallRequest{
			ID:        tc.ID,
			Type:      tc.Type,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// ToMetadata extracts usage and request id. Usage is nil when the response
// carried none.
func ToMetadata(resp *provider.Response) *Metadata {
	meta := &Metadata{}
	if resp == nil {
		return meta
	}
	meta.RequestID = resp.RequestID
	if resp.Usage != nil {
		meta.Usage = &Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	if finished(resp.Output.FinishReason) {
		meta.FinishReason = resp.Output.FinishReason
	}
	return meta
}

// ToStreamingMessage maps one stream chunk. A chunk without choices yields
// an empty delta that still carries the chunk's metadata.
func ToStreamingMessage(resp *provider.Response, modelID string) *StreamingMessage {
	meta := ToMetadata(resp)
	sm := &StreamingMessage{
		ModelID:      modelID,
		Metadata:     meta,
		FinishReason: meta.FinishReason,
	}
	if resp == nil || len(resp.Output.Choices) == 0 {
		return sm
	}

	choice := resp.Output.Choices[0]
	sm.Role = choice.Message.Role
	sm.Content = choice.Message.Content
	sm.ToolCalls = toToolCallRequests(choice.Message.ToolCalls)
	if finished(choice.FinishReason) {
		sm.FinishReason = choice.FinishReason
		meta.FinishReason = choice.FinishReason
	}
	return sm
}

// finished reports whether reason marks the end of generation. Intermediate
// stream chunks report "null".
func finished(reason string) bool {
	return reason != "" && reason != provider.FinishReasonNull
}

func firstChoice(resp *provider.Response) (provider.Choice, error) {
	if resp == nil || len(resp.Output.Choices) == 0 {
		return provider.Choice{}, ErrNoChoices
	}
	return resp.Output.Choices[0], nil
}
