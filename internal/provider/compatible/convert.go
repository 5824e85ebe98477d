package compatible

import (
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"qwenlink/internal/provider"
)

// toChatRequest maps a native request onto the OpenAI wire shape. It returns
// the names of native parameters the compatible endpoint has no field for.
func toChatRequest(req provider.Request) (openai.ChatCompletionRequest, []string) {
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toMessages(req.Input),
	}

	var ignored []string
	p := req.Parameters
	if p == nil {
		return out, nil
	}

	if p.Temperature != nil {
		out.Temperature = float32(*p.Temperature)
	}
	if p.TopP != nil {
		out.TopP = float32(*p.TopP)
	}
	if p.MaxTokens != nil {
		out.MaxTokens = *p.MaxTokens
	}
	if p.Seed != nil {
		seed := int(*p.Seed)
		out.Seed = &seed
	}
	if len(p.Stop) > 0 {
		out.Stop = p.Stop
	}
	if p.ParallelToolCalls != nil {
		out.ParallelToolCalls = *p.ParallelToolCalls
	}
	for _, t := range p.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolType(t.Type),
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}

	if p.TopK != nil {
		ignored = append(ignored, "top_k")
	}
	if p.RepetitionPenalty != nil {
		ignored = append(ignored, "repetition_penalty")
	}
	if p.EnableSearch != nil {
		ignored = append(ignored, "enable_search")
	}
	return out, ignored
}

func toMessages(in provider.Input) []openai.ChatCompletionMessage {
	if len(in.Messages) == 0 {
		if in.Prompt == "" {
			return nil
		}
		return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: in.Prompt}}
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(in.Messages))
	for _, m := range in.Messages {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		msgs = append(msgs, om)
	}
	return msgs
}

func fromToolCalls(calls []openai.ToolCall) []provider.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]provider.ToolCall, 0, len(calls))
	for i, tc := range calls {
		idx := i
		if tc.Index != nil {
			idx = *tc.Index
		}
		out = append(out, provider.ToolCall{
			ID:    tc.ID,
			Index: idx,
			Type:  string(tc.Type),
			Function: provider.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

func fromUsage(u openai.Usage) *provider.Usage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return nil
	}
	return &provider.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}

// fromChatResponse builds a native response. Tool calls without an id get a
// generated one so tool results can be correlated.
func fromChatResponse(resp openai.ChatCompletionResponse, text bool) *provider.Response {
	out := &provider.Response{
		Usage:     fromUsage(resp.Usage),
		RequestID: resp.ID,
	}

	if text {
		if len(resp.Choices) > 0 {
			out.Output.Text = resp.Choices[0].Message.Content
			out.Output.FinishReason = string(resp.Choices[0].FinishReason)
		}
		return out
	}

	for _, c := range resp.Choices {
		calls := fromToolCalls(c.Message.ToolCalls)
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = "call_" + uuid.NewString()
			}
		}
		role := c.Message.Role
		if role == "" {
			role = provider.RoleAssistant
		}
		out.Output.Choices = append(out.Output.Choices, provider.Choice{
			FinishReason: string(c.FinishReason),
			Message: provider.Message{
				Role:      role,
				Content:   c.Message.Content,
				ToolCalls: calls,
			},
		})
	}
	return out
}
