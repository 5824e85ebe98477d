package dashscope

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"qwenlink/internal/provider"
	"qwenlink/pkg/logger"
)

// Compile-time interface checks.
var (
	_ provider.Client   = (*Client)(nil)
	_ provider.Embedder = (*Client)(nil)
)

// ErrInvalidResponse is returned when a response body cannot be decoded.
var ErrInvalidResponse = errors.New("invalid response from dashscope")

const (
	generationPath = "/services/aigc/text-generation/generation"
	embeddingPath  = "/services/embeddings/text-embedding/text-embedding"
	providerName   = "dashscope"
)

// Client talks to the native DashScope API.
type Client struct {
	apiKey       string
	endpoint     string
	workspaceID  string
	httpClient   *http.Client // for non-streaming requests (has overall timeout)
	streamClient *http.Client // for SSE; only connection and header timeouts
	log          zerolog.Logger
}

// New creates a native DashScope client.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}

	return &Client{
		apiKey:      cfg.APIKey,
		endpoint:    strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		workspaceID: cfg.WorkspaceID,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		// http.Client.Timeout covers reading the body, which would cut long
		// SSE streams, so the stream client only bounds dial and headers.
		streamClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   15 * time.Second,
				ResponseHeaderTimeout: cfg.StreamTimeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		log: logger.Component(providerName),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// Complete sends a text-generation request and waits for the full response.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	c.log.Debug().
		Str("model", req.Model).
		Int("message_count", len(req.Input.Messages)).
		Msg("DashScope generation request")

	body, err := c.post(ctx, c.httpClient, generationPath, req, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, provider.NewNetworkError(providerName, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, provider.NewProviderError(provider.ErrCodeServiceUnavailable, "empty response body", providerName, true)
	}

	var resp provider.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.log.Error().Err(err).Str("body", string(data)).Msg("Failed to parse DashScope response")
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	c.log.Debug().Str("request_id", resp.RequestID).Msg("DashScope generation response")
	return &resp, nil
}

// CompleteStream sends a text-generation request in SSE mode.
func (c *Client) CompleteStream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	c.log.Debug().
		Str("model", req.Model).
		Int("message_count", len(req.Input.Messages)).
		Msg("DashScope stream request")

	body, err := c.post(ctx, c.streamClient, generationPath, req, true)
	if err != nil {
		return nil, err
	}
	return newStream(body, c.log), nil
}

// Embed sends a text-embedding request.
func (c *Client) Embed(ctx context.Context, req provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	body, err := c.post(ctx, c.httpClient, embeddingPath, req, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp provider.EmbeddingResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &resp, nil
}

// post sends payload and returns the body of a 200 response. Non-200
// responses are converted to *provider.ProviderError.
func (c *Client) post(ctx context.Context, hc *http.Client, path string, payload any, sse bool) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.workspaceID != "" {
		httpReq.Header.Set("X-DashScope-WorkSpace", c.workspaceID)
	}
	if sse {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("X-DashScope-SSE", "enable")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, provider.NewNetworkError(providerName, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		c.log.Error().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("DashScope error response")
		return nil, handleErrorResponse(resp.StatusCode, raw)
	}

	return resp.Body, nil
}

// errorBody is the DashScope error payload, used both for HTTP errors and
// for SSE "error" events.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func handleErrorResponse(status int, raw []byte) error {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || (eb.Code == "" && eb.Message == "") {
		eb.Message = strings.TrimSpace(string(raw))
	}
	return provider.FromStatus(providerName, status, eb.Code, eb.Message, eb.RequestID)
}

// newStream wraps an SSE body.
func newStream(body io.ReadCloser, log zerolog.Logger) *sseStream {
	return &sseStream{
		body:   body,
		reader: bufio.NewReaderSize(body, 64*1024),
		log:    log,
	}
}
