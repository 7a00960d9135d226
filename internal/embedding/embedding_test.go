package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestHashingEmbedder(t *testing.T) {
	h := NewHashing(0)
	assert.Equal(t, "hashing-256", h.Model())

	a, err := h.Embed(context.Background(), "Senior Go engineer building distributed systems")
	require.NoError(t, err)
	require.Len(t, a, 256)

	again, err := h.Embed(context.Background(), "senior go ENGINEER building distributed systems")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Cosine(a, again), 1e-6, "embedding must be case and whitespace insensitive")

	related, err := h.Embed(context.Background(), "Go engineer for distributed backend systems")
	require.NoError(t, err)
	unrelated, err := h.Embed(context.Background(), "Pastry chef, croissants and sourdough")
	require.NoError(t, err)
	assert.Greater(t, Cosine(a, related), Cosine(a, unrelated))

	empty, err := h.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, Cosine(a, empty))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Embed(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

type countingEmbedder struct {
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if text == "fail" {
		return nil, errors.New("boom")
	}
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) Model() string { return "counting" }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCached(inner, 2)

	for i := 0; i < 3; i++ {
		v, err := cached.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{5}, v)
	}
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err := cached.Embed(context.Background(), "fail")
	require.Error(t, err)
	_, err = cached.Embed(context.Background(), "fail")
	require.Error(t, err)
	assert.Equal(t, int32(3), inner.calls.Load(), "errors must not be cached")

	_, _ = cached.Embed(context.Background(), "b")
	_, _ = cached.Embed(context.Background(), "c")
	assert.Equal(t, 2, cached.Len())
	assert.Equal(t, "counting", cached.Model())
}

type fakeEmbedAPI struct {
	model  string
	config *genai.EmbedContentConfig
	text   string
	resp   *genai.EmbedContentResponse
	err    error
}

func (f *fakeEmbedAPI) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.text = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func TestGeminiEmbed(t *testing.T) {
	api := &fakeEmbedAPI{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2, 0.3}}},
	}}
	g := newGemini(api, "", 3, zap.NewNop())

	vec, err := g.Embed(context.Background(), "  Go developer  ")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, defaultGeminiModel, api.model)
	assert.Equal(t, "Go developer", api.text)
	require.NotNil(t, api.config.OutputDimensionality)
	assert.Equal(t, int32(3), *api.config.OutputDimensionality)
	assert.Equal(t, "gemini/"+defaultGeminiModel, g.Model())
}

func TestGeminiEmbedErrors(t *testing.T) {
	g := newGemini(&fakeEmbedAPI{resp: &genai.EmbedContentResponse{}}, "m", 0, nil)
	_, err := g.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")

	_, err = g.Embed(context.Background(), "   ")
	require.Error(t, err)

	g = newGemini(&fakeEmbedAPI{err: errors.New("quota")}, "m", 0, nil)
	_, err = g.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")

	var nilGemini *Gemini
	_, err = nilGemini.Embed(context.Background(), "text")
	require.Error(t, err)
}
