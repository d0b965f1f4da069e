package reranking

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

// HeuristicScorer is the deterministic fallback relevance judge used when
// no model endpoint is configured: title-term overlap with the query, plus
// log-dampened citations, plus a recency bonus. Scores are unnormalized;
// the reranker normalizes across the pool.
type HeuristicScorer struct {
	// now is replaceable for deterministic tests.
	now func() time.Time
}

// NewHeuristicScorer creates the fallback scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{now: time.Now}
}

// ScoreRelevance never fails; it exists so the heuristic satisfies
// RelevanceScorer.
func (h *HeuristicScorer) ScoreRelevance(_ context.Context, query string, candidates []*domain.Article) ([]float64, error) {
	queryTerms := termSet(query)
	now := h.now()

	scores := make([]float64, len(candidates))
	for i, article := range candidates {
		scores[i] = h.score(queryTerms, article, now)
	}
	return scores, nil
}

func (h *HeuristicScorer) score(queryTerms map[string]struct{}, article *domain.Article, now time.Time) float64 {
	score := termOverlap(queryTerms, article.Title) * 10

	if article.CitationCount > 0 {
		score += math.Log10(float64(article.CitationCount)+1) * 2
	}

	switch age := article.Age(now); {
	case age <= 1:
		score += 3
	case age <= 3:
		score += 2
	case age <= 5:
		score += 1
	}

	return score
}

// termOverlap reports the fraction of query terms present in the text.
func termOverlap(queryTerms map[string]struct{}, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	textTerms := termSet(text)
	matched := 0
	for term := range queryTerms {
		if _, ok := textTerms[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

func termSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}
