// Package embedding turns text into vectors with a DashScope embedding model.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"qwenlink/internal/provider"
	"qwenlink/internal/tokenizer"
)

// DefaultMaxTokens is the input limit assumed for embedding models.
const DefaultMaxTokens = 2048

// ErrEmptyResult is returned when the service answers without vectors.
var ErrEmptyResult = errors.New("embedding: response contained no embeddings")

// CountMismatchError is returned when a batch yields a different number of
// vectors than texts sent.
type CountMismatchError struct {
	Expected int
	Received int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("embedding: expected %d text embedding(s), but received %d", e.Expected, e.Received)
}

// Generator embeds text through an Embedder.
type Generator struct {
	embedder  provider.Embedder
	modelID   string
	textType  string
	tokenizer tokenizer.Tokenizer
	maxTokens int
}

// Option configures a Generator.
type Option func(*Generator)

// WithTokenizer replaces the default length tokenizer.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(g *Generator) {
		if t != nil {
			g.tokenizer = t
		}
	}
}

// WithMaxTokens sets the value reported by MaxTokens.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithTextType sets text_type, "query" or "document".
func WithTextType(textType string) Option {
	return func(g *Generator) {
		g.textType = textType
	}
}

// New creates a Generator for modelID.
func New(embedder provider.Embedder, modelID string, opts ...Option) *Generator {
	g := &Generator{
		embedder:  embedder,
		modelID:   modelID,
		tokenizer: tokenizer.LengthTokenizer{},
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ModelID returns the embedding model.
func (g *Generator) ModelID() string {
	return g.modelID
}

// MaxTokens returns the input limit of the model.
func (g *Generator) MaxTokens() int {
	return g.maxTokens
}

// CountTokens counts tokens with the configured tokenizer.
func (g *Generator) CountTokens(text string) int {
	return g.tokenizer.CountTokens(text)
}

// GenerateEmbedding embeds a single text.
func (g *Generator) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(resp.Output.Embeddings) == 0 {
		return nil, ErrEmptyResult
	}
	return resp.Output.Embeddings[0].Embedding, nil
}

// GenerateEmbeddings embeds texts in one call. The result is ordered like
// texts regardless of the order the service answers in.
func (g *Generator) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := g.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	got := resp.Output.Embeddings
	if len(got) != len(texts) {
		return nil, &CountMismatchError{Expected: len(texts), Received: len(got)}
	}

	sorted := slices.Clone(got)
	slices.SortStableFunc(sorted, func(a, b provider.Embedding) int {
		return a.TextIndex - b.TextIndex
	})

	out := make([][]float32, len(sorted))
	for i, e := range sorted {
		if e.TextIndex != i {
			return nil, fmt.Errorf("embedding: unexpected text_index %d", e.TextIndex)
		}
		out[i] = e.Embedding
	}
	return out, nil
}

func (g *Generator) embed(ctx context.Context, texts []string) (*provider.EmbeddingResponse, error) {
	req := provider.EmbeddingRequest{
		Model: g.modelID,
		Input: provider.EmbeddingInput{Texts: texts},
	}
	if g.textType != "" {
		req.Parameters = &provider.EmbeddingParameters{TextType: g.textType}
	}
	return g.embedder.Embed(ctx, req)
}
