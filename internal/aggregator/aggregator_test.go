package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/observability"
	"github.com/helixir/literature-aggregation-service/internal/sources"
)

// fakeAdapter is a scriptable SourceAdapter for aggregator tests.
type fakeAdapter struct {
	source   domain.SourceType
	articles []*domain.Article
	err      error
	panics   bool
	delay    time.Duration
}

func (f *fakeAdapter) Search(ctx context.Context, params sources.SearchParams) (*sources.SearchResult, error) {
	if f.panics {
		panic("adapter bug")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &sources.SearchResult{Articles: f.articles, Source: f.source}, nil
}

func (f *fakeAdapter) GetByID(context.Context, string) (*domain.Article, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeAdapter) SourceType() domain.SourceType { return f.source }
func (f *fakeAdapter) Name() string                  { return string(f.source) }
func (f *fakeAdapter) IsEnabled() bool               { return true }

func article(doi, title string, source domain.SourceType) *domain.Article {
	return &domain.Article{
		ID:     uuid.New(),
		DOI:    doi,
		Title:  title,
		Source: source,
	}
}

func newTestAggregator(adapters ...sources.SourceAdapter) *Aggregator {
	registry := sources.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	return New(registry, zerolog.Nop(), nil, time.Second)
}

func TestSearchAll_DisjointSourcesCombine(t *testing.T) {
	agg := newTestAggregator(
		&fakeAdapter{source: domain.SourceTypeArXiv, articles: []*domain.Article{article("", "Paper A", domain.SourceTypeArXiv)}},
		&fakeAdapter{source: domain.SourceTypeOpenAlex, articles: []*domain.Article{article("10.1/b", "Paper B", domain.SourceTypeOpenAlex)}},
		&fakeAdapter{source: domain.SourceTypeCrossref, articles: []*domain.Article{article("10.1/c", "Paper C", domain.SourceTypeCrossref)}},
	)

	result := agg.SearchAll(context.Background(), "query", 10, Filters{IncludePreprints: true})

	assert.Len(t, result.Articles, 3)
	assert.Equal(t, 0, result.DuplicatesRemoved)
	assert.Equal(t, 3, result.SourcesQueried)
}

func TestSearchAll_CountsOneSearchPerSource(t *testing.T) {
	metrics := observability.NewMetricsWithRegistry("aggregator_searches_test", prometheus.NewRegistry())
	registry := sources.NewRegistry()
	registry.Register(&fakeAdapter{source: domain.SourceTypeArXiv, articles: []*domain.Article{article("", "Paper A", domain.SourceTypeArXiv)}})
	registry.Register(&fakeAdapter{source: domain.SourceTypeOpenAlex, err: errors.New("network down")})
	agg := New(registry, zerolog.Nop(), metrics, time.Second)

	agg.SearchAll(context.Background(), "query", 10, Filters{IncludePreprints: true})
	agg.SearchAll(context.Background(), "query", 10, Filters{IncludePreprints: true})

	// One increment per dispatched search, whether or not the source
	// succeeded. Gateway-level retries never show up here.
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SourceSearchesTotal.WithLabelValues("arxiv")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SourceSearchesTotal.WithLabelValues("openalex")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SearchesStarted))
}

func TestSearchAll_AllSourcesFailingReturnsEmpty(t *testing.T) {
	agg := newTestAggregator(
		&fakeAdapter{source: domain.SourceTypeArXiv, err: errors.New("network down")},
		&fakeAdapter{source: domain.SourceTypeOpenAlex, err: domain.NewCircuitOpenError("openalex", time.Now())},
	)

	result := agg.SearchAll(context.Background(), "query", 10, Filters{IncludePreprints: true})

	require.NotNil(t, result.Articles)
	assert.Empty(t, result.Articles)
}

func TestSearchAll_PartialFailureReducesRecallOnly(t *testing.T) {
	agg := newTestAggregator(
		&fakeAdapter{source: domain.SourceTypeArXiv, err: errors.New("boom")},
		&fakeAdapter{source: domain.SourceTypeOpenAlex, articles: []*domain.Article{article("10.1/b", "Paper B", domain.SourceTypeOpenAlex)}},
	)

	result := agg.SearchAll(context.Background(), "query", 10, Filters{IncludePreprints: true})
	assert.Len(t, result.Articles, 1)
}

func TestSearchAll_PanickingSourceIsIsolated(t *testing.T) {
	agg := newTestAggregator(
		&fakeAdapter{source: domain.SourceTypeArXiv, panics: true},
		&fakeAdapter{source: domain.SourceTypeCrossref, articles: []*domain.Article{article("10.1/c", "Paper C", domain.SourceTypeCrossref)}},
	)

	result := agg.SearchAll(context.Background(), "query", 10, Filters{IncludePreprints: true})
	assert.Len(t, result.Articles, 1)
}

func TestSearchAll_SlowSourceTimesOut(t *testing.T) {
	registry := sources.NewRegistry()
	registry.Register(&fakeAdapter{source: domain.SourceTypeArXiv, delay: time.Minute})
	registry.Register(&fakeAdapter{source: domain.SourceTypeOpenAlex, articles: []*domain.Article{article("10.1/b", "Paper B", domain.SourceTypeOpenAlex)}})
	agg := New(registry, zerolog.Nop(), nil, 50*time.Millisecond)

	start := time.Now()
	result := agg.SearchAll(context.Background(), "query", 10, Filters{IncludePreprints: true})

	assert.Len(t, result.Articles, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSearchAll_CrossSourceDeduplication(t *testing.T) {
	// The arXiv record sorts first by source type, so it wins.
	arxivCopy := article("10.1/X", "Shared Paper", domain.SourceTypeArXiv)
	crossrefCopy := article("10.1/x", "Shared Paper", domain.SourceTypeCrossref)

	agg := newTestAggregator(
		&fakeAdapter{source: domain.SourceTypeCrossref, articles: []*domain.Article{crossrefCopy}},
		&fakeAdapter{source: domain.SourceTypeArXiv, articles: []*domain.Article{arxivCopy}},
	)

	result := agg.SearchAll(context.Background(), "query", 10, Filters{IncludePreprints: true})

	require.Len(t, result.Articles, 1)
	assert.Equal(t, 1, result.DuplicatesRemoved)
	assert.Same(t, arxivCopy, result.Articles[0])
}

func TestSearchAll_AppliesPostFilters(t *testing.T) {
	cited := article("10.1/a", "Cited", domain.SourceTypeOpenAlex)
	cited.CitationCount = 50
	uncited := article("10.1/b", "Uncited", domain.SourceTypeOpenAlex)

	agg := newTestAggregator(
		&fakeAdapter{source: domain.SourceTypeOpenAlex, articles: []*domain.Article{cited, uncited}},
	)

	result := agg.SearchAll(context.Background(), "query", 10, Filters{MinCitations: 10, IncludePreprints: true})

	require.Len(t, result.Articles, 1)
	assert.Equal(t, "Cited", result.Articles[0].Title)
}

func TestSearchSubset_RestrictsSources(t *testing.T) {
	agg := newTestAggregator(
		&fakeAdapter{source: domain.SourceTypeArXiv, articles: []*domain.Article{article("10.1/a", "A", domain.SourceTypeArXiv)}},
		&fakeAdapter{source: domain.SourceTypeOpenAlex, articles: []*domain.Article{article("10.1/b", "B", domain.SourceTypeOpenAlex)}},
	)

	result := agg.SearchSubset(context.Background(), "query",
		[]domain.SourceType{domain.SourceTypeArXiv}, 10, Filters{IncludePreprints: true})

	require.Len(t, result.Articles, 1)
	assert.Equal(t, "A", result.Articles[0].Title)
	assert.Equal(t, 1, result.SourcesQueried)
}

func TestSearchAll_NoSourcesRegistered(t *testing.T) {
	agg := newTestAggregator()

	result := agg.SearchAll(context.Background(), "query", 10, Filters{})
	require.NotNil(t, result.Articles)
	assert.Empty(t, result.Articles)
}
