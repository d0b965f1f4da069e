package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns deterministic vectors derived from the text length
// and records every call it receives.
type fakeEmbedder struct {
	dim        int
	err        error
	embedCalls []string
	batchCalls [][]string
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) vector(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedCalls = append(f.embedCalls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls = append(f.batchCalls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func TestCachingEmbedder_EmbedCachesRepeatedText(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	c, err := NewCachingEmbedder(inner, 16, nil)
	require.NoError(t, err)

	first, err := c.Embed(context.Background(), "deep learning")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "deep learning")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, inner.embedCalls, 1)
}

func TestCachingEmbedder_EmbedBatchForwardsOnlyMisses(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	c, err := NewCachingEmbedder(inner, 16, nil)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "alpha")
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	// Only the two uncached texts reach the inner embedder, as one batch.
	require.Len(t, inner.batchCalls, 1)
	assert.Equal(t, []string{"beta", "gamma"}, inner.batchCalls[0])

	// Results land at their original positions.
	assert.Equal(t, inner.vector("alpha"), vectors[0])
	assert.Equal(t, inner.vector("beta"), vectors[1])
	assert.Equal(t, inner.vector("gamma"), vectors[2])
}

func TestCachingEmbedder_FullyCachedBatchSkipsInner(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	c, err := NewCachingEmbedder(inner, 16, nil)
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"b", "a"})
	require.NoError(t, err)

	assert.Len(t, inner.batchCalls, 1)
}

func TestCachingEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &fakeEmbedder{dim: 2, err: errors.New("upstream down")}
	c, err := NewCachingEmbedder(inner, 16, nil)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "alpha")
	require.Error(t, err)

	// A later successful call still reaches the inner embedder.
	inner.err = nil
	vec, err := c.Embed(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, inner.vector("alpha"), vec)
	assert.Len(t, inner.embedCalls, 2)
}

func TestCachingEmbedder_EmptyBatch(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	c, err := NewCachingEmbedder(inner, 0, nil)
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestCachingEmbedder_Dimension(t *testing.T) {
	c, err := NewCachingEmbedder(&fakeEmbedder{dim: 1536}, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimension())
}
