package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"qwenlink/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testRequestID = "e764bfe3-c0b7-97a0-ae57-cd99e1580960"
	testModel     = "qwen-max"
)

type step struct {
	resp *provider.Response
	err  error
}

// scriptedClient replays queued responses and records every request.
type scriptedClient struct {
	mu       sync.Mutex
	steps    []step
	requests []provider.Request

	chunks  []*provider.Response
	recvErr error
	openErr error
	streams []*fakeStream
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) queue(resps ...*provider.Response) *scriptedClient {
	for _, r := range resps {
		c.steps = append(c.steps, step{resp: r})
	}
	return c
}

func (c *scriptedClient) record(req provider.Request) {
	if req.Parameters != nil {
		p := *req.Parameters
		req.Parameters = &p
	}
	c.requests = append(c.requests, req)
}

func (c *scriptedClient) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.steps) == 0 {
		return nil, errors.New("scripted client: no response left")
	}
	s := c.steps[0]
	c.steps = c.steps[1:]
	return s.resp, s.err
}

func (c *scriptedClient) CompleteStream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(req)
	if c.openErr != nil {
		return nil, c.openErr
	}
	s := newFakeStream(c.chunks, c.recvErr)
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *scriptedClient) lastRequest(t *testing.T) provider.Request {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatal("no request recorded")
	}
	return c.requests[len(c.requests)-1]
}

// fakeStream feeds chunks from a goroutine so abandoned streams show up as
// leaks.
type fakeStream struct {
	ch        chan *provider.Response
	done      chan struct{}
	err       error
	closeOnce sync.Once
	closed    atomic.Bool
}

func newFakeStream(chunks []*provider.Response, err error) *fakeStream {
	s := &fakeStream{
		ch:   make(chan *provider.Response),
		done: make(chan struct{}),
		err:  err,
	}
	go func() {
		defer close(s.ch)
		for _, c := range chunks {
			select {
			case s.ch <- c:
			case <-s.done:
				return
			}
		}
	}()
	return s
}

func (s *fakeStream) Recv() (*provider.Response, error) {
	select {
	case r, ok := <-s.ch:
		if ok {
			return r, nil
		}
	case <-s.done:
		return nil, io.ErrClosedPipe
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closed.Store(true)
	})
	return nil
}

type recorderCall struct {
	model string
	mode  string
	usage *Usage
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []recorderCall
	usages   []recorderCall
	tools    map[string][]error
}

func (r *fakeRecorder) RecordRequest(model, mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recorderCall{model: model, mode: mode})
}

func (r *fakeRecorder) RecordUsage(model string, usage *Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usages = append(r.usages, recorderCall{model: model, usage: usage})
}

func (r *fakeRecorder) RecordToolInvocation(function string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string][]error)
	}
	r.tools[function] = append(r.tools[function], err)
}

func testUsage() *provider.Usage {
	return &provider.Usage{InputTokens: 8, OutputTokens: 39, TotalTokens: 47}
}

func textResponse(content string) *provider.Response {
	return &provider.Response{
		Output: provider.Output{Choices: []provider.Choice{{
			FinishReason: provider.FinishReasonStop,
			Message:      provider.Message{Role: provider.RoleAssistant, Content: content},
		}}},
		Usage:     testUsage(),
		RequestID: testRequestID,
	}
}

func toolResponse(calls ...provider.ToolCall) *provider.Response {
	return &provider.Response{
		Output: provider.Output{Choices: []provider.Choice{{
			FinishReason: provider.FinishReasonToolCalls,
			Message:      provider.Message{Role: provider.RoleAssistant, ToolCalls: calls},
		}}},
		Usage:     testUsage(),
		RequestID: testRequestID,
	}
}

func functionCall(id, name, args string) provider.ToolCall {
	return provider.ToolCall{
		ID:       id,
		Type:     provider.ToolTypeFunction,
		Function: provider.FunctionCall{Name: name, Arguments: args},
	}
}

func chunk(content, finish string) *provider.Response {
	return &provider.Response{
		Output: provider.Output{Choices: []provider.Choice{{
			FinishReason: finish,
			Message:      provider.Message{Role: provider.RoleAssistant, Content: content},
		}}},
		RequestID: testRequestID,
	}
}

func scenarioHistory() *History {
	h := NewHistory()
	h.AddSystemMessage("You are a helpful assistant")
	h.AddUserMessage("请问 1+1 是多少")
	return h
}
