// Package clustering groups articles by embedding similarity and validates
// relationship graphs built on top of them.
package clustering

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/embedding"
	"github.com/helixir/literature-aggregation-service/internal/observability"
)

// Algorithm selects the clustering strategy.
type Algorithm string

const (
	AlgorithmKMeans Algorithm = "kmeans"
	AlgorithmDBSCAN Algorithm = "dbscan"
)

const (
	defaultMinClusterSize      = 2
	defaultSimilarityThreshold = 0.7
	defaultEps                 = 0.3
	defaultBatchSize           = 10
	defaultBatchPause          = 200 * time.Millisecond
)

// Options configures a clustering run.
type Options struct {
	// Algorithm is kmeans or dbscan. Defaults to kmeans.
	Algorithm Algorithm

	// MaxClusters caps k for k-means. Zero means no cap beyond the
	// default k heuristic.
	MaxClusters int

	// MinClusterSize is the minimum surviving cluster size; smaller
	// clusters are dissolved into orphans.
	MinClusterSize int

	// SimilarityThreshold is the cosine similarity above which intra-
	// cluster semantic edges are emitted and missing graph edges proposed.
	SimilarityThreshold float64

	// Eps is the cosine distance neighborhood radius for dbscan.
	Eps float64

	// Seed fixes the random source for reproducible k-means runs. Zero
	// seeds from the wall clock.
	Seed int64

	// CharBudget truncates the per-article embedding text. Zero uses the
	// default.
	CharBudget int

	// EmbedBatchSize and EmbedBatchPause shape the load sent to the
	// embedding collaborator.
	EmbedBatchSize  int
	EmbedBatchPause time.Duration
}

func (o *Options) applyDefaults() {
	if o.Algorithm == "" {
		o.Algorithm = AlgorithmKMeans
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = defaultMinClusterSize
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = defaultSimilarityThreshold
	}
	if o.Eps <= 0 {
		o.Eps = defaultEps
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = defaultBatchSize
	}
	if o.EmbedBatchPause <= 0 {
		o.EmbedBatchPause = defaultBatchPause
	}
}

// Statistics summarizes a clustering run.
type Statistics struct {
	TotalArticles    int           `json:"total_articles"`
	ClusteredCount   int           `json:"clustered_count"`
	OrphanCount      int           `json:"orphan_count"`
	ClusterCount     int           `json:"cluster_count"`
	Algorithm        Algorithm     `json:"algorithm"`
	Duration         time.Duration `json:"duration"`
	EmbeddedArticles int           `json:"embedded_articles"`
}

// Result is the output of a clustering run. Clusters and edges are
// ephemeral: recomputed per invocation, never persisted here.
type Result struct {
	Clusters       []*domain.Cluster     `json:"clusters"`
	SemanticEdges  []domain.SemanticEdge `json:"semantic_edges"`
	OrphanArticles []uuid.UUID           `json:"orphan_articles"`
	Statistics     Statistics            `json:"statistics"`
}

// Engine embeds articles and clusters them.
type Engine struct {
	embedder embedding.Embedder
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewEngine creates a clustering engine. metrics may be nil.
func NewEngine(embedder embedding.Embedder, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		embedder: embedder,
		logger:   logger.With().Str("component", "clustering").Logger(),
		metrics:  metrics,
	}
}

// Cluster embeds any articles lacking vectors, runs the configured
// algorithm, dissolves undersized clusters into orphans, and derives topic
// keywords, intra-cluster similarity, and semantic edges.
func (e *Engine) Cluster(ctx context.Context, articles []*domain.Article, opts Options) (*Result, error) {
	opts.applyDefaults()
	start := time.Now()

	embedded, err := e.ensureEmbeddings(ctx, articles, opts)
	if err != nil {
		return nil, fmt.Errorf("embed articles: %w", err)
	}

	result := e.run(articles, opts)
	result.Statistics.EmbeddedArticles = embedded
	result.Statistics.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.ClusteringDuration.WithLabelValues(string(opts.Algorithm)).Observe(result.Statistics.Duration.Seconds())
		e.metrics.ClustersFormed.Observe(float64(result.Statistics.ClusterCount))
		e.metrics.OrphanArticles.Add(float64(result.Statistics.OrphanCount))
	}

	e.logger.Info().
		Str("algorithm", string(opts.Algorithm)).
		Int("articles", result.Statistics.TotalArticles).
		Int("clusters", result.Statistics.ClusterCount).
		Int("orphans", result.Statistics.OrphanCount).
		Dur("duration", result.Statistics.Duration).
		Msg("clustering complete")

	return result, nil
}

// ensureEmbeddings fetches vectors for articles missing them, in fixed-size
// batches with a pause between launches so the embedding collaborator is
// not flooded. Returns how many articles needed embedding.
func (e *Engine) ensureEmbeddings(ctx context.Context, articles []*domain.Article, opts Options) (int, error) {
	var pending []*domain.Article
	for _, a := range articles {
		if len(a.Embedding) == 0 {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)

	for start := 0; start < len(pending); start += opts.EmbedBatchSize {
		end := start + opts.EmbedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if start > 0 {
			select {
			case <-time.After(opts.EmbedBatchPause):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, a := range batch {
				texts[i] = EmbeddingText(a, opts.CharBudget)
			}
			vectors, err := e.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
			for i, a := range batch {
				a.Embedding = vectors[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(pending), nil
}

// run executes the selected algorithm over articles that have embeddings.
// Articles without embeddings become orphans.
func (e *Engine) run(articles []*domain.Article, opts Options) *Result {
	result := &Result{
		Statistics: Statistics{
			TotalArticles: len(articles),
			Algorithm:     opts.Algorithm,
		},
	}

	var clusterable []*domain.Article
	var vectors [][]float64
	for _, a := range articles {
		a.ClusterID = 0
		if len(a.Embedding) == 0 {
			result.OrphanArticles = append(result.OrphanArticles, a.ID)
			continue
		}
		clusterable = append(clusterable, a)
		vectors = append(vectors, toFloat64(a.Embedding))
	}

	if len(clusterable) < opts.MinClusterSize {
		for _, a := range clusterable {
			result.OrphanArticles = append(result.OrphanArticles, a.ID)
		}
		result.Statistics.OrphanCount = len(result.OrphanArticles)
		return result
	}

	var assignments []int
	var centroids [][]float64
	switch opts.Algorithm {
	case AlgorithmDBSCAN:
		var formed int
		assignments, formed = dbscan(vectors, opts.Eps, opts.MinClusterSize)
		centroids = make([][]float64, formed)
	default:
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		k := defaultK(len(clusterable), opts.MaxClusters)
		assignments, centroids = kmeans(vectors, k, rng)
	}

	e.collect(result, clusterable, vectors, assignments, centroids, opts)
	return result
}

// collect groups members by assignment, dissolves undersized clusters into
// orphans, and fills in per-cluster derived data and semantic edges.
func (e *Engine) collect(result *Result, articles []*domain.Article, vectors [][]float64, assignments []int, centroids [][]float64, opts Options) {
	groups := make(map[int][]int)
	for i, c := range assignments {
		if c < 0 {
			result.OrphanArticles = append(result.OrphanArticles, articles[i].ID)
			continue
		}
		groups[c] = append(groups[c], i)
	}

	nextID := 1
	for c := 0; c < len(centroids); c++ {
		members, ok := groups[c]
		if !ok {
			continue
		}

		if len(members) < opts.MinClusterSize {
			for _, i := range members {
				result.OrphanArticles = append(result.OrphanArticles, articles[i].ID)
			}
			continue
		}

		memberArticles := make([]*domain.Article, len(members))
		memberVectors := make([][]float64, len(members))
		ids := make([]uuid.UUID, len(members))
		for j, i := range members {
			memberArticles[j] = articles[i]
			memberVectors[j] = vectors[i]
			ids[j] = articles[i].ID
		}

		centroid := meanVector(memberVectors)
		normalize(centroid)

		cluster := &domain.Cluster{
			ID:            nextID,
			ArticleIDs:    ids,
			Centroid:      toFloat32(centroid),
			TopicKeywords: topicKeywords(memberArticles),
			AvgSimilarity: avgPairwiseSimilarity(memberVectors),
		}
		for _, a := range memberArticles {
			a.ClusterID = cluster.ID
		}
		result.Clusters = append(result.Clusters, cluster)
		result.SemanticEdges = append(result.SemanticEdges,
			intraClusterEdges(memberArticles, memberVectors, opts.SimilarityThreshold)...)

		nextID++
	}

	result.Statistics.ClusterCount = len(result.Clusters)
	result.Statistics.OrphanCount = len(result.OrphanArticles)
	result.Statistics.ClusteredCount = result.Statistics.TotalArticles - result.Statistics.OrphanCount
}

// avgPairwiseSimilarity computes the mean cosine similarity over all member
// pairs. Single-member groups report 1.
func avgPairwiseSimilarity(vectors [][]float64) float64 {
	n := len(vectors)
	if n < 2 {
		return 1
	}
	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += cosineSimilarity(vectors[i], vectors[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// intraClusterEdges emits similarity edges for member pairs at or above the
// threshold.
func intraClusterEdges(articles []*domain.Article, vectors [][]float64, threshold float64) []domain.SemanticEdge {
	var edges []domain.SemanticEdge
	for i := 0; i < len(articles); i++ {
		for j := i + 1; j < len(articles); j++ {
			sim := cosineSimilarity(vectors[i], vectors[j])
			if sim >= threshold {
				edges = append(edges, domain.SemanticEdge{
					SourceArticleID: articles[i].ID,
					TargetArticleID: articles[j].ID,
					Similarity:      sim,
					Type:            domain.EdgeTypeSimilarity,
				})
			}
		}
	}
	return edges
}
