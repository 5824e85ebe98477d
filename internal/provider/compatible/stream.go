package compatible

import (
	"errors"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"qwenlink/internal/provider"
)

// chatStream adapts *openai.ChatCompletionStream to provider.Stream.
// Each chunk carries the delta only, matching incremental_output=true.
type chatStream struct {
	stream *openai.ChatCompletionStream
	text   bool

	closeOnce sync.Once
	closeErr  error
}

var _ provider.Stream = (*chatStream)(nil)

func (s *chatStream) Recv() (*provider.Response, error) {
	chunk, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, mapError(err)
	}

	out := &provider.Response{RequestID: chunk.ID}
	if chunk.Usage != nil {
		out.Usage = fromUsage(*chunk.Usage)
	}

	if s.text {
		if len(chunk.Choices) > 0 {
			out.Output.Text = chunk.Choices[0].Delta.Content
			out.Output.FinishReason = string(chunk.Choices[0].FinishReason)
		}
		return out, nil
	}

	for _, c := range chunk.Choices {
		out.Output.Choices = append(out.Output.Choices, provider.Choice{
			FinishReason: string(c.FinishReason),
			Message: provider.Message{
				Role:      c.Delta.Role,
				Content:   c.Delta.Content,
				ToolCalls: fromToolCalls(c.Delta.ToolCalls),
			},
		})
	}
	return out, nil
}

func (s *chatStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.stream.Close()
	})
	return s.closeErr
}
