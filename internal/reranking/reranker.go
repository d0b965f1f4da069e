// Package reranking reorders scored candidates by blending their upstream
// quality score with a secondary relevance judgment, degrading to the
// original order when the secondary path fails.
package reranking

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/observability"
)

const (
	// poolSize caps how many leading candidates enter the rerank pool.
	poolSize = 100

	originalWeight  = 0.5
	secondaryWeight = 0.5
)

// RelevanceScorer judges how relevant each candidate snippet is to the
// query. Scores need not be normalized; the reranker min-max normalizes
// them across the pool.
type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, query string, candidates []*domain.Article) ([]float64, error)
}

// RankedResult is one reranked candidate.
type RankedResult struct {
	Article        *domain.Article `json:"article"`
	OriginalScore  float64         `json:"original_score"`
	SecondaryScore float64         `json:"secondary_score"`
	FinalScore     float64         `json:"final_score"`
	Rank           int             `json:"rank"`
}

// Reranker blends upstream quality scores with secondary relevance.
type Reranker struct {
	scorer  RelevanceScorer
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a Reranker. scorer may be nil, in which case every call
// degrades to the original ordering. metrics may be nil.
func New(scorer RelevanceScorer, logger zerolog.Logger, metrics *observability.Metrics) *Reranker {
	return &Reranker{
		scorer:  scorer,
		logger:  logger.With().Str("component", "reranker").Logger(),
		metrics: metrics,
	}
}

// Rerank scores the first poolSize candidates against the query, blends the
// normalized secondary scores with the upstream quality scores, and returns
// the top topK by final score. Candidates must arrive sorted by upstream
// score. Any secondary-path failure degrades to the original order; Rerank
// never returns an error to the caller.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []*domain.Article, topK int) []RankedResult {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RerankDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	pool := candidates
	if len(pool) > poolSize {
		pool = pool[:poolSize]
	}

	secondary, err := r.secondaryScores(ctx, query, pool)
	if err != nil {
		r.logger.Warn().Err(err).Str("query", query).Msg("secondary scoring failed, returning original order")
		if r.metrics != nil {
			r.metrics.RerankFallbacks.Inc()
		}
		return r.degraded(pool, topK)
	}

	normalized := minMaxNormalize(secondary)

	results := make([]RankedResult, len(pool))
	for i, article := range pool {
		original := originalScore(article)
		results[i] = RankedResult{
			Article:        article,
			OriginalScore:  original,
			SecondaryScore: normalized[i],
			FinalScore:     originalWeight*original + secondaryWeight*normalized[i],
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func (r *Reranker) secondaryScores(ctx context.Context, query string, pool []*domain.Article) ([]float64, error) {
	if r.scorer == nil {
		return nil, domain.ErrServiceUnavailable
	}
	scores, err := r.scorer.ScoreRelevance(ctx, query, pool)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(pool) {
		return nil, domain.NewExternalAPIError("reranker", 0, "score count mismatch", nil)
	}
	return scores, nil
}

// degraded returns the pool in its original order, truncated to topK.
func (r *Reranker) degraded(pool []*domain.Article, topK int) []RankedResult {
	n := len(pool)
	if n > topK {
		n = topK
	}
	results := make([]RankedResult, n)
	for i := 0; i < n; i++ {
		original := originalScore(pool[i])
		results[i] = RankedResult{
			Article:       pool[i],
			OriginalScore: original,
			FinalScore:    original,
			Rank:          i + 1,
		}
	}
	return results
}

// originalScore maps the upstream quality total onto [0,1].
func originalScore(article *domain.Article) float64 {
	if article.Quality == nil {
		return 0
	}
	return article.Quality.Total / 100
}

// minMaxNormalize scales scores to [0,1] across the pool. When every score
// is equal the range is zero; the pool normalizes to a constant 0.5 instead
// of dividing by zero.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}
