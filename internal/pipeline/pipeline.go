// Package pipeline composes the aggregation stages: fan-out search,
// scoring, optional clustering, and reranking.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-aggregation-service/internal/aggregator"
	"github.com/helixir/literature-aggregation-service/internal/clustering"
	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/reranking"
)

const defaultTopK = 25

// Options controls a single pipeline run.
type Options struct {
	// Filters constrain the search across all sources.
	Filters aggregator.Filters

	// Sources restricts the fan-out to the given source types. Empty
	// means all enabled sources.
	Sources []domain.SourceType

	// PerSourceLimit caps how many results each source may return. Zero
	// uses each adapter's default.
	PerSourceLimit int

	// EnableClustering turns on the clustering stage. Clustering failures
	// degrade the run (no clusters) rather than failing it.
	EnableClustering bool

	// ClusterOptions configures the clustering stage when enabled.
	ClusterOptions clustering.Options

	// TopK bounds the final ranked output. Zero uses the default.
	TopK int
}

// Output is the result of a pipeline run.
type Output struct {
	// Articles are the deduplicated, scored articles that survived
	// classification, in upstream score order.
	Articles []*domain.Article `json:"articles"`

	// Ranked is the final reranked list, truncated to TopK.
	Ranked []reranking.RankedResult `json:"ranked"`

	// Clusters, SemanticEdges, and OrphanArticles are present only when
	// clustering ran successfully.
	Clustering *clustering.Result `json:"clustering,omitempty"`

	// Stats summarizes the run.
	Stats RunStats `json:"stats"`
}

// RunStats aggregates per-stage counters for one run.
type RunStats struct {
	Discovered int           `json:"discovered"`
	Duplicates int           `json:"duplicates"`
	Scored     int           `json:"scored"`
	Discarded  int           `json:"discarded"`
	Duration   time.Duration `json:"duration"`
}

// Scorer enriches articles with quality metrics and drops discards.
type Scorer interface {
	EnrichAll(articles []*domain.Article) []*domain.Article
}

// Pipeline wires the stages together. The clustering engine is optional;
// when nil, EnableClustering is ignored.
type Pipeline struct {
	aggregator *aggregator.Aggregator
	scorer     Scorer
	clusterer  *clustering.Engine
	reranker   *reranking.Reranker
	logger     zerolog.Logger
}

// New assembles a pipeline.
func New(agg *aggregator.Aggregator, scorer Scorer, clusterer *clustering.Engine, reranker *reranking.Reranker, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		aggregator: agg,
		scorer:     scorer,
		clusterer:  clusterer,
		reranker:   reranker,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes query through every stage. Partial source failure and
// degraded optional stages reduce the output, never fail the run.
func (p *Pipeline) Run(ctx context.Context, query string, opts Options) *Output {
	start := time.Now()
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	agg := p.aggregator.SearchSubset(ctx, query, opts.Sources, opts.PerSourceLimit, opts.Filters)

	out := &Output{
		Stats: RunStats{
			Discovered: len(agg.Articles) + agg.DuplicatesRemoved,
			Duplicates: agg.DuplicatesRemoved,
		},
	}

	kept := p.scorer.EnrichAll(agg.Articles)
	out.Stats.Scored = len(kept)
	out.Stats.Discarded = len(agg.Articles) - len(kept)

	// The reranker expects its pool ordered by upstream score; scoring
	// preserves aggregation order, so reorder here.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Quality.Total > kept[j].Quality.Total
	})
	out.Articles = kept

	if opts.EnableClustering && p.clusterer != nil && len(kept) > 0 {
		result, cerr := p.clusterer.Cluster(ctx, kept, opts.ClusterOptions)
		if cerr != nil {
			p.logger.Warn().Err(cerr).Msg("clustering degraded, continuing without clusters")
		} else {
			out.Clustering = result
		}
	}

	out.Ranked = p.reranker.Rerank(ctx, query, kept, topK)
	out.Stats.Duration = time.Since(start)

	p.logger.Info().
		Str("query", query).
		Int("discovered", out.Stats.Discovered).
		Int("duplicates", out.Stats.Duplicates).
		Int("kept", out.Stats.Scored).
		Int("ranked", len(out.Ranked)).
		Dur("duration", out.Stats.Duration).
		Msg("pipeline run complete")

	return out
}
