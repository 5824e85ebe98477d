package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"qwenlink/internal/provider"
)

func TestService_Streaming(t *testing.T) {
	last := chunk("2。", provider.FinishReasonStop)
	last.Usage = testUsage()
	client := &scriptedClient{chunks: []*provider.Response{
		chunk("1+1 ", provider.FinishReasonNull),
		chunk("等于 ", provider.FinishReasonNull),
		last,
	}}
	rec := &fakeRecorder{}
	svc := NewService(client, testModel, WithUsageRecorder(rec))

	var sb strings.Builder
	var deltas []*StreamingMessage
	for delta, err := range svc.GetStreamingChatMessageContents(context.Background(), scenarioHistory(), autoInvoke()) {
		require.NoError(t, err)
		deltas = append(deltas, delta)
		sb.WriteString(delta.Content)
	}

	require.Len(t, deltas, 3)
	assert.Equal(t, "1+1 等于 2。", sb.String())
	assert.Empty(t, deltas[0].FinishReason)
	assert.Equal(t, provider.FinishReasonStop, deltas[2].FinishReason)
	assert.Equal(t, testModel, deltas[0].ModelID)
	assert.Equal(t, testRequestID, deltas[0].Metadata.RequestID)
	require.NotNil(t, deltas[2].Metadata.Usage)
	assert.Equal(t, 47, deltas[2].Metadata.Usage.TotalTokens)

	req := client.lastRequest(t)
	require.NotNil(t, req.Parameters.IncrementalOutput)
	assert.True(t, *req.Parameters.IncrementalOutput)
	assert.Equal(t, provider.ResultFormatMessage, req.Parameters.ResultFormat)
	assert.Empty(t, req.Parameters.Tools, "no tools are sent when streaming")

	require.Len(t, client.streams, 1)
	assert.True(t, client.streams[0].closed.Load())

	require.Len(t, rec.requests, 1)
	assert.Equal(t, ModeStream, rec.requests[0].mode)
	require.Len(t, rec.usages, 1)
}

func TestService_StreamingSkipsEmptyChunks(t *testing.T) {
	last := chunk("2。", provider.FinishReasonStop)
	last.Usage = testUsage()
	client := &scriptedClient{chunks: []*provider.Response{
		chunk("1+1 等于 ", provider.FinishReasonNull),
		nil,
		last,
	}}
	rec := &fakeRecorder{}
	svc := NewService(client, testModel, WithUsageRecorder(rec))

	var sb strings.Builder
	n := 0
	for delta, err := range svc.GetStreamingChatMessageContents(context.Background(), scenarioHistory(), nil) {
		require.NoError(t, err)
		require.NotNil(t, delta)
		sb.WriteString(delta.Content)
		n++
	}

	assert.Equal(t, 2, n)
	assert.Equal(t, "1+1 等于 2。", sb.String())
	require.Len(t, rec.usages, 1)
	assert.True(t, client.streams[0].closed.Load())
}

func TestService_StreamingForcesIncremental(t *testing.T) {
	client := &scriptedClient{chunks: []*provider.Response{chunk("ok", provider.FinishReasonStop)}}
	svc := NewService(client, testModel)

	settings := &PromptSettings{IncrementalOutput: provider.Bool(false), ResultFormat: provider.ResultFormatText}
	for _, err := range svc.GetStreamingChatMessageContents(context.Background(), scenarioHistory(), settings) {
		require.NoError(t, err)
	}

	params := client.lastRequest(t).Parameters
	assert.True(t, *params.IncrementalOutput)
	assert.Equal(t, provider.ResultFormatMessage, params.ResultFormat)
}

func TestService_StreamingSurfacesToolCalls(t *testing.T) {
	toolChunk := &provider.Response{
		Output: provider.Output{Choices: []provider.Choice{{
			FinishReason: provider.FinishReasonToolCalls,
			Message: provider.Message{
				Role:      provider.RoleAssistant,
				ToolCalls: []provider.ToolCall{functionCall("call_1", "math-add", `{"a":1,"b":1}`)},
			},
		}}},
	}
	client := &scriptedClient{chunks: []*provider.Response{toolChunk}}
	history := scenarioHistory()

	var got []*StreamingMessage
	for delta, err := range NewService(client, testModel).GetStreamingChatMessageContents(context.Background(), history, autoInvoke()) {
		require.NoError(t, err)
		got = append(got, delta)
	}

	require.Len(t, got, 1)
	require.Len(t, got[0].ToolCalls, 1)
	assert.Equal(t, "math-add", got[0].ToolCalls[0].Name)
	assert.Equal(t, provider.FinishReasonToolCalls, got[0].FinishReason)
	assert.Equal(t, 2, history.Len(), "streaming never mutates history")
	assert.Len(t, client.requests, 1)
}

func TestService_StreamingUsageOnlyChunk(t *testing.T) {
	client := &scriptedClient{chunks: []*provider.Response{
		chunk("hi", provider.FinishReasonStop),
		{Usage: testUsage(), RequestID: testRequestID},
	}}

	var got []*StreamingMessage
	for delta, err := range NewService(client, testModel).GetStreamingChatMessageContents(context.Background(), scenarioHistory(), nil) {
		require.NoError(t, err)
		got = append(got, delta)
	}

	require.Len(t, got, 2)
	assert.Empty(t, got[1].Content)
	require.NotNil(t, got[1].Metadata.Usage)
	assert.Equal(t, 8, got[1].Metadata.Usage.InputTokens)
}

func TestService_StreamingEarlyBreak(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &scriptedClient{chunks: []*provider.Response{
		chunk("a", provider.FinishReasonNull),
		chunk("b", provider.FinishReasonNull),
		chunk("c", provider.FinishReasonStop),
	}}

	count := 0
	for _, err := range NewService(client, testModel).GetStreamingChatMessageContents(context.Background(), scenarioHistory(), nil) {
		require.NoError(t, err)
		count++
		break
	}

	assert.Equal(t, 1, count)
	require.Len(t, client.streams, 1)
	assert.True(t, client.streams[0].closed.Load())
}

func TestService_StreamingOpenError(t *testing.T) {
	openErr := provider.NewProviderError(provider.ErrCodeRateLimited, "throttled", "scripted", true)
	client := &scriptedClient{openErr: openErr}

	calls := 0
	for msg, err := range NewService(client, testModel).GetStreamingChatMessageContents(context.Background(), scenarioHistory(), nil) {
		calls++
		assert.Nil(t, msg)
		assert.ErrorIs(t, err, openErr)
	}
	assert.Equal(t, 1, calls)
}

func TestService_StreamingRecvError(t *testing.T) {
	recvErr := errors.New("connection reset")
	client := &scriptedClient{
		chunks:  []*provider.Response{chunk("partial", provider.FinishReasonNull)},
		recvErr: recvErr,
	}

	var msgs []*StreamingMessage
	var errs []error
	for msg, err := range NewService(client, testModel).GetStreamingChatMessageContents(context.Background(), scenarioHistory(), nil) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, msg)
	}

	require.Len(t, msgs, 1)
	assert.Equal(t, "partial", msgs[0].Content)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], recvErr)
	assert.True(t, client.streams[0].closed.Load())
}

func TestService_StreamingSettingsError(t *testing.T) {
	client := &scriptedClient{}

	calls := 0
	for _, err := range NewService(client, testModel).GetStreamingChatMessageContents(context.Background(), scenarioHistory(), "temperature=1") {
		calls++
		var convErr *SettingsConversionError
		assert.ErrorAs(t, err, &convErr)
	}
	assert.Equal(t, 1, calls)
	assert.Empty(t, client.requests)
}

func TestService_StreamingIsLazy(t *testing.T) {
	client := &scriptedClient{chunks: []*provider.Response{chunk("x", provider.FinishReasonStop)}}

	seq := NewService(client, testModel).GetStreamingChatMessageContents(context.Background(), scenarioHistory(), nil)
	assert.Empty(t, client.requests)

	for _, err := range seq {
		require.NoError(t, err)
	}
	assert.Len(t, client.requests, 1)
}
