// Package textgen generates text from a bare prompt for document pipelines
// that only need streamed tokens.
package textgen

import (
	"context"
	"errors"
	"io"
	"iter"
	"slices"

	"github.com/rs/zerolog"

	"qwenlink/internal/provider"
	"qwenlink/internal/tokenizer"
	"qwenlink/pkg/logger"
)

// DefaultMaxTokenTotal is the context size assumed for text models.
const DefaultMaxTokenTotal = 6000

// Options tune one generation. Zero values leave the service default.
type Options struct {
	Temperature     float64
	NucleusSampling float64
	// FrequencyPenalty is centered on 0. DashScope centers its repetition
	// penalty on 1, so the value is shifted by one.
	FrequencyPenalty     float64
	MaxTokens            int
	StopSequences        []string
	TokenSelectionBiases map[int]float64
}

// Generator streams text completions.
type Generator struct {
	client        provider.Client
	modelID       string
	tokenizer     tokenizer.Tokenizer
	maxTokenTotal int
	log           zerolog.Logger
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

// WithMaxTokenTotal sets the value reported by MaxTokenTotal.
func WithMaxTokenTotal(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokenTotal = n
		}
	}
}

// WithLogger sets the generator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// New creates a Generator for modelID.
func New(client provider.Client, modelID string, opts ...Option) *Generator {
	g := &Generator{
		client:        client,
		modelID:       modelID,
		tokenizer:     tokenizer.LengthTokenizer{},
		maxTokenTotal: DefaultMaxTokenTotal,
		log:           logger.Component("textgen"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CountTokens counts tokens with the configured tokenizer.
func (g *Generator) CountTokens(text string) int {
	return g.tokenizer.CountTokens(text)
}

// GetTokens splits text with the configured tokenizer.
func (g *Generator) GetTokens(text string) []string {
	return g.tokenizer.GetTokens(text)
}

// MaxTokenTotal returns the context size of the model.
func (g *Generator) MaxTokenTotal() int {
	return g.maxTokenTotal
}

// Generate streams the completion of prompt as text fragments.
func (g *Generator) Generate(ctx context.Context, prompt string, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if len(opts.TokenSelectionBiases) > 0 {
			g.log.Warn().Msg("TokenSelectionBiases is not supported by DashScope and will be ignored")
		}

		stream, err := g.client.CompleteStream(ctx, provider.Request{
			Model:      g.modelID,
			Input:      provider.Input{Prompt: prompt},
			Parameters: parameters(opts),
		})
		if err != nil {
			yield("", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(resp.Output.Text, nil) {
				return
			}
		}
	}
}

func parameters(opts Options) *provider.Parameters {
	p := &provider.Parameters{
		IncrementalOutput: provider.Bool(true),
		ResultFormat:      provider.ResultFormatText,
	}
	if opts.Temperature != 0 {
		p.Temperature = provider.Float(opts.Temperature)
	}
	if opts.NucleusSampling != 0 {
		p.TopP = provider.Float(opts.NucleusSampling)
	}
	if opts.FrequencyPenalty != 0 {
		p.RepetitionPenalty = provider.Float(opts.FrequencyPenalty + 1)
	}
	if opts.MaxTokens != 0 {
		p.MaxTokens = provider.Int(opts.MaxTokens)
	}
	if len(opts.StopSequences) > 0 {
		p.Stop = slices.Clone(opts.StopSequences)
	}
	return p
}
