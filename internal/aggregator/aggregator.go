// Package aggregator fans a search query out to all configured source
// adapters concurrently, tolerates partial failure, and deduplicates the
// combined results.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/observability"
	"github.com/helixir/literature-aggregation-service/internal/sources"
)

// DefaultSourceTimeout bounds a single source call when no timeout is
// configured.
const DefaultSourceTimeout = 30 * time.Second

// Filters is the closed set of options recognized by aggregate searches.
// Each field maps directly onto sources.SearchParams; see that type for the
// documented effect of each filter.
type Filters struct {
	YearFrom         int
	YearTo           int
	MinCitations     int
	OpenAccessOnly   bool
	IncludePreprints bool
	RequiredFormats  []domain.FullTextFormat
}

// params builds per-source search parameters from the filters.
func (f Filters) params(query string, perSourceLimit int) sources.SearchParams {
	return sources.SearchParams{
		Query:            query,
		YearFrom:         f.YearFrom,
		YearTo:           f.YearTo,
		MaxResults:       perSourceLimit,
		MinCitations:     f.MinCitations,
		OpenAccessOnly:   f.OpenAccessOnly,
		IncludePreprints: f.IncludePreprints,
		RequiredFormats:  f.RequiredFormats,
	}
}

// Result is the outcome of an aggregate search. Articles is never nil; an
// all-sources-failed run yields an empty slice, not an error.
type Result struct {
	Articles          []*domain.Article `json:"articles"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
	SourcesQueried    int               `json:"sources_queried"`
}

// sourceResult holds the outcome of one source's search.
type sourceResult struct {
	source   domain.SourceType
	articles []*domain.Article
	err      error
}

// Aggregator coordinates concurrent searches across a source registry.
// A failing, slow, or panicking source yields an empty result for that
// source without affecting others; the aggregate search never fails
// wholesale, it only loses recall.
type Aggregator struct {
	registry      *sources.Registry
	logger        zerolog.Logger
	metrics       *observability.Metrics
	sourceTimeout time.Duration
}

// New creates an Aggregator over the given registry.
// metrics may be nil, in which case no metrics are recorded.
// sourceTimeout bounds each individual source call; zero uses
// DefaultSourceTimeout.
func New(registry *sources.Registry, logger zerolog.Logger, metrics *observability.Metrics, sourceTimeout time.Duration) *Aggregator {
	if sourceTimeout == 0 {
		sourceTimeout = DefaultSourceTimeout
	}
	return &Aggregator{
		registry:      registry,
		logger:        logger.With().Str("component", "aggregator").Logger(),
		metrics:       metrics,
		sourceTimeout: sourceTimeout,
	}
}

// SearchAll searches all enabled sources concurrently and returns the
// deduplicated union of their results. It never returns an error: with all
// sources failing the result is simply empty.
func (a *Aggregator) SearchAll(ctx context.Context, query string, perSourceLimit int, filters Filters) *Result {
	return a.search(ctx, a.registry.EnabledSources(), filters.params(query, perSourceLimit))
}

// SearchSubset restricts the fan-out to the named sources, for targeted
// re-queries. Unknown or disabled source types are skipped; an empty
// sourceTypes means all enabled sources.
func (a *Aggregator) SearchSubset(ctx context.Context, query string, sourceTypes []domain.SourceType, perSourceLimit int, filters Filters) *Result {
	return a.search(ctx, a.registry.Subset(sourceTypes), filters.params(query, perSourceLimit))
}

// search fans out to the given adapters, collects partial results, and
// deduplicates. Each call is individually isolated: errors, timeouts, and
// panics all resolve to an empty per-source result.
func (a *Aggregator) search(ctx context.Context, adapters []sources.SourceAdapter, params sources.SearchParams) *Result {
	if a.metrics != nil {
		a.metrics.SearchesStarted.Inc()
	}
	if len(adapters) == 0 {
		return &Result{Articles: []*domain.Article{}}
	}

	resultChan := make(chan sourceResult, len(adapters))
	var wg sync.WaitGroup

	for _, adapter := range adapters {
		wg.Add(1)
		go func(s sources.SourceAdapter) {
			defer wg.Done()
			resultChan <- a.searchOne(ctx, s, params)
		}(adapter)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]sourceResult, 0, len(adapters))
	for result := range resultChan {
		results = append(results, result)
	}

	// Completion order is nondeterministic; sort by source type so dedup
	// selection is stable across runs.
	sort.Slice(results, func(i, j int) bool {
		return results[i].source < results[j].source
	})

	var combined []*domain.Article
	for _, result := range results {
		if result.err != nil {
			a.logSourceFailure(result.source, result.err)
			continue
		}
		if a.metrics != nil {
			a.metrics.ArticlesPerSource.WithLabelValues(string(result.source)).Observe(float64(len(result.articles)))
		}
		for _, article := range result.articles {
			if params.Matches(article) {
				combined = append(combined, article)
			}
		}
	}

	unique, duplicates := Deduplicate(combined)
	if unique == nil {
		unique = []*domain.Article{}
	}
	if a.metrics != nil {
		a.metrics.ArticlesDiscovered.Add(float64(len(unique)))
		a.metrics.ArticlesDuplicate.Add(float64(duplicates))
	}

	a.logger.Info().
		Str("query", params.Query).
		Int("sources", len(adapters)).
		Int("articles", len(unique)).
		Int("duplicates", duplicates).
		Msg("aggregate search completed")

	return &Result{
		Articles:          unique,
		DuplicatesRemoved: duplicates,
		SourcesQueried:    len(adapters),
	}
}

// searchOne runs a single source search with its own timeout and panic
// isolation.
func (a *Aggregator) searchOne(ctx context.Context, adapter sources.SourceAdapter, params sources.SearchParams) (result sourceResult) {
	result.source = adapter.SourceType()

	defer func() {
		if r := recover(); r != nil {
			result.articles = nil
			result.err = fmt.Errorf("source panicked: %v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	start := time.Now()
	if a.metrics != nil {
		a.metrics.SourceSearchesTotal.WithLabelValues(string(result.source)).Inc()
	}

	searchResult, err := adapter.Search(callCtx, params)
	if a.metrics != nil {
		a.metrics.SourceRequestDuration.WithLabelValues(string(result.source)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		result.err = err
		return result
	}

	result.articles = searchResult.Articles
	return result
}

// logSourceFailure logs a per-source failure, distinguishing circuit-open
// rejections from genuine request failures.
func (a *Aggregator) logSourceFailure(source domain.SourceType, err error) {
	switch {
	case errors.Is(err, domain.ErrCircuitOpen):
		if a.metrics != nil {
			a.metrics.BreakerRejections.WithLabelValues(string(source)).Inc()
		}
		a.logger.Warn().
			Str("source", string(source)).
			Err(err).
			Msg("source skipped: circuit breaker open")
	case errors.Is(err, domain.ErrRateLimited):
		if a.metrics != nil {
			a.metrics.SourceRateLimited.WithLabelValues(string(source)).Inc()
		}
		a.logger.Warn().
			Str("source", string(source)).
			Err(err).
			Msg("source rate limited")
	default:
		if a.metrics != nil {
			a.metrics.SourceRequestsFailed.WithLabelValues(string(source), errorType(err)).Inc()
		}
		a.logger.Warn().
			Str("source", string(source)).
			Err(err).
			Msg("source search failed")
	}
}

// errorType buckets an error for the failure metric label.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
