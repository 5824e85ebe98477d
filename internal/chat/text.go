package chat

import (
	"context"
	"iter"

	"qwenlink/internal/provider"
)

// GetTextContents completes a bare prompt in text result shape. Tool
// policies in settings are ignored.
func (s *Service) GetTextContents(ctx context.Context, prompt string, settings any) ([]*TextContent, error) {
	ps, err := FromSettings(settings)
	if err != nil {
		return nil, err
	}

	model := s.model(ps)
	params := ps.toParameters()
	params.IncrementalOutput = provider.Bool(false)
	params.ResultFormat = provider.ResultFormatText

	s.recorder.RecordRequest(model, ModeText)
	resp, err := s.client.Complete(ctx, provider.Request{
		Model:      model,
		Input:      provider.Input{Prompt: prompt},
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}

	meta := ToMetadata(resp)
	s.recordUsage(model, meta)
	return []*TextContent{toTextContent(resp, model, meta)}, nil
}

// GetStreamingTextContents streams a bare prompt completion, one delta per
// provider chunk.
func (s *Service) GetStreamingTextContents(ctx context.Context, prompt string, settings any) iter.Seq2[*TextContent, error] {
	return func(yield func(*TextContent, error) bool) {
		ps, err := FromSettings(settings)
		if err != nil {
			yield(nil, err)
			return
		}

		model := s.model(ps)
		params := ps.toParameters()
		params.IncrementalOutput = provider.Bool(true)
		params.ResultFormat = provider.ResultFormatText

		req := provider.Request{
			Model:      model,
			Input:      provider.Input{Prompt: prompt},
			Parameters: params,
		}
		for resp, err := range s.stream(ctx, req, ModeText) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(toTextContent(resp, model, ToMetadata(resp)), nil) {
				return
			}
		}
	}
}

// toTextContent reads output.text, falling back to the first choice for
// endpoints that answer in message shape regardless.
func toTextContent(resp *provider.Response, model string, meta *Metadata) *TextContent {
	text := resp.Output.Text
	if text == "" && len(resp.Output.Choices) > 0 {
		choice := resp.Output.Choices[0]
		text = choice.Message.Content
		if finished(choice.FinishReason) {
			meta.FinishReason = choice.FinishReason
		}
	}
	return &TextContent{Text: text, ModelID: model, Metadata: meta}
}
