// Package observability provides logging and metrics support for the
// literature aggregation service.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("query", query).Msg("aggregate search started")
//
// Add search context to a logger:
//
//	logger = observability.WithSearchContext(logger, query, "arxiv")
//
// # Metrics
//
// Initialize metrics once per process:
//
//	metrics := observability.NewMetrics("literature_aggregation")
//
// Record metrics:
//
//	metrics.SearchesStarted.Inc()
//	metrics.SourceSearchesTotal.WithLabelValues("openalex").Inc()
//	metrics.ArticlesDiscovered.Add(42)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - query: the user's search query
//   - source: source adapter name (arxiv, openalex, etc.)
//   - article_id: process-local article identifier
//   - canonical_id: cross-source article identity
//   - stage: pipeline stage (aggregate, score, cluster, rerank)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
