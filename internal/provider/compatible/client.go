package compatible

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"qwenlink/internal/provider"
	"qwenlink/pkg/logger"
)

// Compile-time interface checks.
var (
	_ provider.Client   = (*Client)(nil)
	_ provider.Embedder = (*Client)(nil)
)

const providerName = "dashscope-compatible"

// Client talks to the OpenAI-compatible DashScope endpoint.
type Client struct {
	client *openai.Client
	cfg    Config
	log    zerolog.Logger
}

// New creates a compatible-mode client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	// No client-level timeout: it would also bound stream bodies.
	// Non-streaming calls get cfg.Timeout through their context.
	config.HTTPClient = &http.Client{}

	return &Client{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		log:    logger.Component(providerName),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// Complete sends a chat completion request and waits for the full response.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	oreq := c.buildRequest(req)
	c.log.Debug().
		Str("model", oreq.Model).
		Int("message_count", len(oreq.Messages)).
		Int("tool_count", len(oreq.Tools)).
		Msg("Compatible chat completion request")

	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, mapError(err)
	}
	return fromChatResponse(resp, isTextFormat(req)), nil
}

// CompleteStream opens a streaming chat completion.
func (c *Client) CompleteStream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	oreq := c.buildRequest(req)
	oreq.Stream = true
	oreq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	c.log.Debug().
		Str("model", oreq.Model).
		Int("message_count", len(oreq.Messages)).
		Msg("Compatible chat completion stream request")

	stream, err := c.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return nil, mapError(err)
	}
	return &chatStream{stream: stream, text: isTextFormat(req)}, nil
}

// Embed sends an embedding request.
func (c *Client) Embed(ctx context.Context, req provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: req.Input.Texts,
		Model: openai.EmbeddingModel(req.Model),
	})
	if err != nil {
		return nil, mapError(err)
	}

	out := &provider.EmbeddingResponse{
		Usage: &provider.EmbeddingUsage{TotalTokens: resp.Usage.TotalTokens},
	}
	for _, d := range resp.Data {
		out.Output.Embeddings = append(out.Output.Embeddings, provider.Embedding{
			TextIndex: d.Index,
			Embedding: d.Embedding,
		})
	}
	return out, nil
}

func (c *Client) buildRequest(req provider.Request) openai.ChatCompletionRequest {
	oreq, ignored := toChatRequest(req)
	if len(ignored) > 0 {
		c.log.Debug().Strs("parameters", ignored).Msg("Parameters not supported in compatible mode, ignored")
	}
	return oreq
}

func isTextFormat(req provider.Request) bool {
	if req.Parameters != nil && req.Parameters.ResultFormat == provider.ResultFormatText {
		return true
	}
	return len(req.Input.Messages) == 0 && req.Input.Prompt != ""
}

// mapError converts go-openai errors to *provider.ProviderError.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return provider.FromStatus(providerName, status, remoteCode(apiErr.Code), apiErr.Message, "")
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		pe := provider.FromStatus(providerName, reqErr.HTTPStatusCode, "", msg, "")
		pe.Cause = reqErr.Err
		return pe
	}

	return provider.NewNetworkError(providerName, err)
}

// remoteCode normalizes APIError.Code, which may be a string or a number.
func remoteCode(code any) string {
	switch v := code.(type) {
	case nil:
		return ""
	case string:
		if v == "invalid_api_key" {
			return "InvalidApiKey"
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}
