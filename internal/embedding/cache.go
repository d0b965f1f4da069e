package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/helixir/literature-aggregation-service/internal/observability"
)

const defaultCacheSize = 4096

// CachingEmbedder wraps an Embedder with an in-memory LRU keyed by the
// SHA-256 of the input text. Repeated aggregation runs over overlapping
// result sets avoid re-embedding unchanged articles.
type CachingEmbedder struct {
	inner   Embedder
	cache   *lru.Cache[string, []float32]
	metrics *observability.Metrics
}

// NewCachingEmbedder wraps inner with an LRU of the given size. A size of
// zero uses the default. metrics may be nil.
func NewCachingEmbedder(inner Embedder, size int, metrics *observability.Metrics) (*CachingEmbedder, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachingEmbedder{inner: inner, cache: cache, metrics: metrics}, nil
}

// Dimension reports the wrapped embedder's vector width.
func (c *CachingEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Embed returns a cached vector when available, otherwise delegates to the
// wrapped embedder and caches the result.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		c.recordHit()
		return vec, nil
	}

	c.recordRequest()
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch serves cached vectors where possible and forwards only the
// misses to the wrapped embedder in a single batch call.
func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIndexes []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(cacheKey(text)); ok {
			c.recordHit()
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) > 0 {
		c.recordRequest()
		fetched, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range fetched {
			idx := missIndexes[j]
			vectors[idx] = vec
			c.cache.Add(cacheKey(texts[idx]), vec)
		}
	}

	return vectors, nil
}

func (c *CachingEmbedder) recordHit() {
	if c.metrics != nil {
		c.metrics.EmbeddingCacheHits.Inc()
	}
}

func (c *CachingEmbedder) recordRequest() {
	if c.metrics != nil {
		c.metrics.EmbeddingRequests.Inc()
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
