package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwenlink/internal/provider"
)

type fakeEmbedder struct {
	resp *provider.EmbeddingResponse
	err  error
	req  provider.EmbeddingRequest
}

func (f *fakeEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	f.req = req
	return f.resp, f.err
}

func vectors(indexes ...int) *provider.EmbeddingResponse {
	resp := &provider.EmbeddingResponse{}
	for _, i := range indexes {
		resp.Output.Embeddings = append(resp.Output.Embeddings, provider.Embedding{
			TextIndex: i,
			Embedding: []float32{float32(i), 0.5},
		})
	}
	return resp
}

func TestGenerateEmbedding(t *testing.T) {
	f := &fakeEmbedder{resp: vectors(0)}
	g := New(f, "text-embedding-v2")

	vec, err := g.GenerateEmbedding(context.Background(), "代码")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vec)
	assert.Equal(t, "text-embedding-v2", f.req.Model)
	assert.Equal(t, []string{"代码"}, f.req.Input.Texts)
	assert.Nil(t, f.req.Parameters)
}

func TestGenerateEmbedding_Empty(t *testing.T) {
	g := New(&fakeEmbedder{resp: &provider.EmbeddingResponse{}}, "text-embedding-v2")

	_, err := g.GenerateEmbedding(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestGenerateEmbedding_Error(t *testing.T) {
	want := errors.New("boom")
	g := New(&fakeEmbedder{err: want}, "text-embedding-v2")

	_, err := g.GenerateEmbedding(context.Background(), "x")
	assert.ErrorIs(t, err, want)
}

func TestGenerateEmbeddings_Ordered(t *testing.T) {
	f := &fakeEmbedder{resp: vectors(2, 0, 1)}
	g := New(f, "text-embedding-v2", WithTextType("document"))

	vecs, err := g.GenerateEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
	require.NotNil(t, f.req.Parameters)
	assert.Equal(t, "document", f.req.Parameters.TextType)
}

func TestGenerateEmbeddings_CountMismatch(t *testing.T) {
	g := New(&fakeEmbedder{resp: vectors(0)}, "text-embedding-v2")

	_, err := g.GenerateEmbeddings(context.Background(), []string{"a", "b"})
	var mismatch *CountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "embedding: expected 2 text embedding(s), but received 1", err.Error())
}

func TestGenerateEmbeddings_Empty(t *testing.T) {
	f := &fakeEmbedder{}
	vecs, err := New(f, "m").GenerateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Empty(t, f.req.Model, "no request for an empty batch")
}

func TestLimits(t *testing.T) {
	g := New(&fakeEmbedder{}, "m")
	assert.Equal(t, DefaultMaxTokens, g.MaxTokens())
	assert.Equal(t, 3, g.CountTokens("abc"))
	assert.Equal(t, 512, New(&fakeEmbedder{}, "m", WithMaxTokens(512)).MaxTokens())
}
