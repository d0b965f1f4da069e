package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the literature aggregation
// service, organized by pipeline stage: source access, aggregation, scoring,
// clustering, and reranking.
type Metrics struct {
	// SourceSearchesTotal counts searches dispatched to each source. Retries
	// inside the gateway do not bump this; a search counts once.
	SourceSearchesTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed source API requests, labeled by source and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes source search duration in seconds, labeled by source.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// BreakerRejections counts calls rejected by an open circuit breaker, labeled by source.
	BreakerRejections *prometheus.CounterVec

	// SearchesStarted counts aggregate searches initiated.
	SearchesStarted prometheus.Counter

	// ArticlesPerSource observes the distribution of articles returned per source per search.
	ArticlesPerSource *prometheus.HistogramVec

	// ArticlesDiscovered counts unique articles surviving deduplication.
	ArticlesDiscovered prometheus.Counter

	// ArticlesDuplicate counts articles removed by cross-source deduplication.
	ArticlesDuplicate prometheus.Counter

	// ArticlesByTier counts scored articles by priority tier.
	ArticlesByTier *prometheus.CounterVec

	// ClusteringDuration observes clustering runs in seconds, labeled by algorithm.
	ClusteringDuration *prometheus.HistogramVec

	// ClustersFormed observes the number of clusters per clustering run.
	ClustersFormed prometheus.Histogram

	// OrphanArticles counts articles left unclustered across all runs.
	OrphanArticles prometheus.Counter

	// EmbeddingRequests counts embedding batch requests.
	EmbeddingRequests prometheus.Counter

	// EmbeddingCacheHits counts embedding cache hits.
	EmbeddingCacheHits prometheus.Counter

	// RerankDuration observes rerank invocations in seconds.
	RerankDuration prometheus.Histogram

	// RerankFallbacks counts rerank invocations that degraded to the
	// original ordering because the secondary scorer failed.
	RerankFallbacks prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered with the default
// Prometheus registry. The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return newMetrics(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics instance registered with the given
// registerer. Used in tests to avoid duplicate registration on the default
// registry.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	return newMetrics(namespace, reg)
}

func newMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SourceSearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_searches_total",
			Help:      "Total number of searches dispatched per source",
		}, []string{"source"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed source API requests",
		}, []string{"source", "error_type"}),
		SourceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of source searches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		SourceRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limited responses from source APIs",
		}, []string{"source"}),
		BreakerRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_rejections_total",
			Help:      "Total number of calls rejected by an open circuit breaker",
		}, []string{"source"}),

		SearchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of aggregate searches started",
		}),
		ArticlesPerSource: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_per_source",
			Help:      "Distribution of articles returned per source per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}, []string{"source"}),
		ArticlesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_discovered_total",
			Help:      "Total number of unique articles surviving deduplication",
		}),
		ArticlesDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_duplicate_total",
			Help:      "Total number of articles removed by deduplication",
		}),
		ArticlesByTier: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_by_tier_total",
			Help:      "Total number of scored articles by priority tier",
		}, []string{"tier"}),

		ClusteringDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clustering_duration_seconds",
			Help:      "Duration of clustering runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"algorithm"}),
		ClustersFormed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clusters_formed",
			Help:      "Number of clusters formed per clustering run",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
		OrphanArticles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_articles_total",
			Help:      "Total number of articles left unclustered",
		}),
		EmbeddingRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding batch requests",
		}),
		EmbeddingCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_hits_total",
			Help:      "Total number of embedding cache hits",
		}),

		RerankDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rerank_duration_seconds",
			Help:      "Duration of rerank invocations in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		RerankFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallbacks_total",
			Help:      "Total number of rerank invocations degraded to original ordering",
		}),
	}
}
