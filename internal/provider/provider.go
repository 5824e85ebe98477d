// Package provider defines the DashScope client boundary and its wire types.
package provider

import "context"

// Client sends text-generation requests to DashScope.
type Client interface {
	// Name returns the transport name.
	Name() string

	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// CompleteStream sends a request and returns a stream of response chunks.
	// The caller must Close the stream, including when it stops reading early.
	CompleteStream(ctx context.Context, req Request) (Stream, error)
}

// Stream is a forward-only sequence of response chunks.
type Stream interface {
	// Recv returns the next chunk, or io.EOF when the stream is exhausted.
	Recv() (*Response, error)

	// Close releases the underlying transport. It is safe to call more than once.
	Close() error
}

// Embedder generates text embeddings.
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}
