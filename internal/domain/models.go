// Package domain provides domain models and business logic for the
// literature aggregation service.
package domain

import "github.com/google/uuid"

// SourceType represents the external source API that provided article data.
type SourceType string

const (
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeCrossref        SourceType = "crossref"
)

// PriorityTier buckets articles by quality score for downstream triage.
type PriorityTier string

const (
	// PriorityP1 marks excellent articles that should always be kept.
	PriorityP1 PriorityTier = "P1"
	// PriorityP2 marks good articles.
	PriorityP2 PriorityTier = "P2"
	// PriorityP3 marks acceptable articles.
	PriorityP3 PriorityTier = "P3"
	// PriorityDiscarded marks articles below the minimum acceptable score.
	// Discarded articles are dropped from all downstream stages.
	PriorityDiscarded PriorityTier = "discarded"
)

// Kept returns true for tiers that survive classification.
func (p PriorityTier) Kept() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3:
		return true
	default:
		return false
	}
}

// QualityMetrics holds the per-factor breakdown of an article's quality
// score. All factor scores are in points before weighting; Total is the
// weighted composite plus bonuses, clamped to [0,100].
type QualityMetrics struct {
	CitationScore  float64 `json:"citation_score"`
	TrendScore     float64 `json:"trend_score"`
	ImpactScore    float64 `json:"impact_score"`
	RecencyScore   float64 `json:"recency_score"`
	RelevanceScore float64 `json:"relevance_score"`
	AuthorScore    float64 `json:"author_score"`
	BonusScore     float64 `json:"bonus_score"`
	Total          float64 `json:"total"`
}

// Cluster groups semantically similar articles. Clusters are ephemeral:
// recomputed on every clustering invocation and never persisted here.
type Cluster struct {
	// ID is the cluster number, starting from 1.
	ID int

	// ArticleIDs lists the members of the cluster.
	ArticleIDs []uuid.UUID

	// Centroid is the unit-length mean of the member embeddings.
	Centroid []float32

	// TopicKeywords are the most frequent non-stopword terms across
	// member titles and abstracts, most frequent first.
	TopicKeywords []string

	// AvgSimilarity is the average pairwise cosine similarity between
	// members, in [-1,1]. Zero for single-member clusters.
	AvgSimilarity float64
}

// Size returns the number of member articles.
func (c *Cluster) Size() int {
	return len(c.ArticleIDs)
}

// EdgeType classifies a semantic edge.
type EdgeType string

const (
	// EdgeTypeSimilarity is an edge validated or proposed from embedding
	// similarity between the endpoint articles.
	EdgeTypeSimilarity EdgeType = "similarity"
	// EdgeTypeCitation is a caller-supplied citation relationship.
	EdgeTypeCitation EdgeType = "citation"
)

// SemanticEdge is a relationship between two articles in a literature graph.
// Ephemeral; produced by the clustering engine and consumed by callers.
type SemanticEdge struct {
	SourceArticleID uuid.UUID
	TargetArticleID uuid.UUID
	Similarity      float64
	Type            EdgeType
}
