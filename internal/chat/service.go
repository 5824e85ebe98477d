package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/rs/zerolog"

	"qwenlink/internal/provider"
	"qwenlink/internal/tools"
	"qwenlink/pkg/logger"
)

// Request modes reported to the UsageRecorder.
const (
	ModeChat   = "chat"
	ModeStream = "stream"
	ModeText   = "text"
)

// UsageRecorder receives observability signals from the service.
type UsageRecorder interface {
	RecordRequest(model, mode string)
	RecordUsage(model string, usage *Usage)
	RecordToolInvocation(function string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string)       {}
func (nopRecorder) RecordUsage(string, *Usage)         {}
func (nopRecorder) RecordToolInvocation(string, error) {}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithUsageRecorder sets the recorder for request, token and tool counts.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Service serves chat and text completions through a provider client.
// It holds no per-conversation state and is safe for concurrent use;
// a single History is not.
type Service struct {
	client   provider.Client
	modelID  string
	log      zerolog.Logger
	recorder UsageRecorder
}

// NewService creates a Service using modelID unless settings override it.
func NewService(client provider.Client, modelID string, opts ...Option) *Service {
	s := &Service{
		client:   client,
		modelID:  modelID,
		log:      logger.Component("chat"),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ModelID returns the default model.
func (s *Service) ModelID() string {
	return s.modelID
}

func (s *Service) model(ps *PromptSettings) string {
	if ps.ModelID != "" {
		return ps.ModelID
	}
	return s.modelID
}

// GetChatMessageContents sends history and returns the assistant reply.
//
// When the tool policy auto-invokes, requested calls are executed against a
// snapshot of catalog taken at the start of the call, their results are
// appended to history and the model is asked again, up to
// MaxAutoInvokeAttempts rounds. Tool failures are written into history as
// tool messages and never returned. The final reply is returned, not
// appended.
func (s *Service) GetChatMessageContents(ctx context.Context, history *History, settings any, catalog *tools.Catalog) ([]*Message, error) {
	if history == nil {
		return nil, ErrNilHistory
	}
	ps, err := FromSettings(settings)
	if err != nil {
		return nil, err
	}

	model := s.model(ps)
	policy := ps.ToolPolicy.clone()
	params := ps.toParameters()
	params.IncrementalOutput = provider.Bool(false)
	params.ResultFormat = provider.ResultFormatMessage

	var snapshot *tools.Catalog
	if policy.Enabled && catalog != nil {
		snapshot = catalog.Snapshot()
	}

	for attempt := 0; ; {
		var offered map[string]bool
		if policy.Enabled && snapshot != nil {
			fns := policy.offered(snapshot)
			params.Tools = tools.BuildDefinitions(fns)
			offered = make(map[string]bool, len(params.Tools))
			for _, def := range params.Tools {
				offered[def.Function.Name] = true
			}
		}

		s.recorder.RecordRequest(model, ModeChat)
		resp, err := s.client.Complete(ctx, provider.Request{
			Model:      model,
			Input:      provider.Input{Messages: ToProviderMessages(history)},
			Parameters: params,
		})
		if err != nil {
			return nil, err
		}

		meta := ToMetadata(resp)
		s.recordUsage(model, meta)

		choice, err := firstChoice(resp)
		if err != nil {
			return nil, err
		}
		msg := ToMessage(choice, model, meta)

		if !policy.AutoInvoke || !msg.HasToolCalls() {
			return []*Message{msg}, nil
		}

		history.Add(*msg)
		for _, call := range msg.ToolCalls {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			history.Add(Message{
				Role:       RoleTool,
				Name:       call.Name,
				Content:    s.dispatch(ctx, call, offered, snapshot),
				ToolCallID: call.ID,
			})
		}

		params.Tools = nil
		attempt++
		if attempt >= policy.MaxAutoInvokeAttempts {
			s.log.Debug().
				Int("attempts", attempt).
				Msg("Auto-invoke budget exhausted, further tool calls are returned to the caller")
			policy.AutoInvoke = false
		}
	}
}

// dispatch runs one tool call and returns the tool message content.
func (s *Service) dispatch(ctx context.Context, call ToolCallRequest, offered map[string]bool, catalog *tools.Catalog) string {
	if call.Type != provider.ToolTypeFunction {
		return fmt.Sprintf("Error: Tool call type %q is not supported", call.Type)
	}
	if !offered[call.Name] {
		s.log.Warn().Str("function", call.Name).Msg("Model requested a function that was not offered")
		return fmt.Sprintf("Error: Function %q was not offered in this request", call.Name)
	}
	fn, ok := catalog.Resolve(call.Name)
	if !ok {
		return fmt.Sprintf("Error: Function %q not found", call.Name)
	}

	args, err := tools.ParseArguments(call.Arguments)
	if err != nil {
		s.log.Warn().
			Str("function", call.Name).
			Str("tool_call_id", call.ID).
			Int("args_len", len(call.Arguments)).
			Err(err).
			Msg("Failed to parse tool call arguments")
		return fmt.Sprintf("Error: Function call arguments were invalid: %v", err)
	}

	result, err := invoke(ctx, fn, args)
	if err == nil {
		var content string
		if content, err = stringify(result); err == nil {
			s.recorder.RecordToolInvocation(call.Name, nil)
			s.log.Debug().Str("function", call.Name).Str("tool_call_id", call.ID).Msg("Function invoked")
			return content
		}
	}

	s.recorder.RecordToolInvocation(call.Name, err)
	s.log.Warn().Str("function", call.Name).Err(err).Msg("Function invocation failed")
	return fmt.Sprintf("Error: Exception while invoking function %q: %v", call.Name, err)
}

func invoke(ctx context.Context, fn tools.Function, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn.Invoke(ctx, args)
}

// stringify renders a function result as tool message content. Strings
// pass through; everything else is sent as JSON.
func stringify(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case json.RawMessage:
		return string(r), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

func (s *Service) recordUsage(model string, meta *Metadata) {
	if meta.Usage == nil {
		s.log.Debug().Str("request_id", meta.RequestID).Msg("Response carried no token usage")
		return
	}
	s.recorder.RecordUsage(model, meta.Usage)
	s.log.Debug().
		Str("model", model).
		Str("request_id", meta.RequestID).
		Int("input_tokens", meta.Usage.InputTokens).
		Int("output_tokens", meta.Usage.OutputTokens).
		Int("total_tokens", meta.Usage.TotalTokens).
		Msg("Token usage")
}

// GetStreamingChatMessageContents streams the assistant reply as deltas.
// Tool calls are surfaced in the deltas and never invoked, and no tool
// definitions are sent. An error is yielded once and ends the sequence.
// The underlying stream is closed when iteration ends for any reason.
func (s *Service) GetStreamingChatMessageContents(ctx context.Context, history *History, settings any) iter.Seq2[*StreamingMessage, error] {
	return func(yield func(*StreamingMessage, error) bool) {
		if history == nil {
			yield(nil, ErrNilHistory)
			return
		}
		ps, err := FromSettings(settings)
		if err != nil {
			yield(nil, err)
			return
		}

		model := s.model(ps)
		params := ps.toParameters()
		params.IncrementalOutput = provider.Bool(true)
		params.ResultFormat = provider.ResultFormatMessage

		req := provider.Request{
			Model:      model,
			Input:      provider.Input{Messages: ToProviderMessages(history)},
			Parameters: params,
		}
		for resp, err := range s.stream(ctx, req, ModeStream) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ToStreamingMessage(resp, model), nil) {
				return
			}
		}
	}
}

// stream opens a provider stream and yields its non-nil chunks. Usage is
// recorded once from the last chunk that carried it.
func (s *Service) stream(ctx context.Context, req provider.Request, mode string) iter.Seq2[*provider.Response, error] {
	return func(yield func(*provider.Response, error) bool) {
		s.recorder.RecordRequest(req.Model, mode)
		st, err := s.client.CompleteStream(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}

		var last *Metadata
		defer func() {
			if err := st.Close(); err != nil {
				s.log.Debug().Err(err).Msg("Failed to close stream")
			}
			if last != nil {
				s.recordUsage(req.Model, last)
			}
		}()

		for {
			resp, err := st.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if resp == nil {
				continue
			}
			if resp.Usage != nil {
				last = ToMetadata(resp)
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}
