package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-aggregation-service/internal/aggregator"
	"github.com/helixir/literature-aggregation-service/internal/clustering"
	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/reranking"
	"github.com/helixir/literature-aggregation-service/internal/scoring"
	"github.com/helixir/literature-aggregation-service/internal/sources"
)

// fakeSource returns a fixed article set for any query.
type fakeSource struct {
	source   domain.SourceType
	articles []*domain.Article
}

func (f *fakeSource) Search(_ context.Context, _ sources.SearchParams) (*sources.SearchResult, error) {
	return &sources.SearchResult{Articles: f.articles, Source: f.source}, nil
}

func (f *fakeSource) GetByID(context.Context, string) (*domain.Article, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeSource) SourceType() domain.SourceType { return f.source }
func (f *fakeSource) Name() string                  { return string(f.source) }
func (f *fakeSource) IsEnabled() bool               { return true }

// fixedEmbedder returns the same vector for every text, or fails.
type fixedEmbedder struct {
	err error
}

func (f *fixedEmbedder) Dimension() int { return 2 }

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newTestPipeline(t *testing.T, embedErr error, adapters ...sources.SourceAdapter) *Pipeline {
	t.Helper()

	registry := sources.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	agg := aggregator.New(registry, zerolog.Nop(), nil, time.Second)

	scorer, err := scoring.New(scoring.Config{Thresholds: scoring.DefaultThresholds()}, zerolog.Nop(), nil)
	require.NoError(t, err)

	clusterer := clustering.NewEngine(&fixedEmbedder{err: embedErr}, zerolog.Nop(), nil)
	reranker := reranking.New(reranking.NewHeuristicScorer(), zerolog.Nop(), nil)

	return New(agg, scorer, clusterer, reranker, zerolog.Nop())
}

func TestRun_EndToEnd(t *testing.T) {
	thisYear := time.Now().Year()

	// A and B share a DOI; A's source sorts first and wins dedup. C is old
	// and uncited, so scoring discards it.
	a := &domain.Article{
		ID: uuid.New(), Title: "Strong Paper", DOI: "10.1234/X",
		Source: domain.SourceTypeArXiv, CitationCount: 120,
		PublicationYear: thisYear, Venue: "Nature", Relevance: 0.9, OpenAccess: true,
	}
	b := &domain.Article{
		ID: uuid.New(), Title: "Strong Paper (mirror)", DOI: "10.1234/X",
		Source: domain.SourceTypeCrossref, CitationCount: 5,
		PublicationYear: thisYear - 5,
	}
	c := &domain.Article{
		ID: uuid.New(), Title: "Stale Paper", DOI: "10.1234/Y",
		Source: domain.SourceTypeOpenAlex, PublicationYear: thisYear - 15,
	}

	p := newTestPipeline(t, nil,
		&fakeSource{source: domain.SourceTypeArXiv, articles: []*domain.Article{a}},
		&fakeSource{source: domain.SourceTypeCrossref, articles: []*domain.Article{b}},
		&fakeSource{source: domain.SourceTypeOpenAlex, articles: []*domain.Article{c}},
	)

	out := p.Run(context.Background(), "strong paper", Options{
		Filters: aggregator.Filters{IncludePreprints: true},
	})

	assert.Equal(t, 3, out.Stats.Discovered)
	assert.Equal(t, 1, out.Stats.Duplicates)
	assert.Equal(t, 1, out.Stats.Scored)
	assert.Equal(t, 1, out.Stats.Discarded)

	require.Len(t, out.Articles, 1)
	assert.Equal(t, a.ID, out.Articles[0].ID)
	assert.Equal(t, domain.PriorityP1, out.Articles[0].Priority)

	require.Len(t, out.Ranked, 1)
	assert.Equal(t, a.ID, out.Ranked[0].Article.ID)
	assert.Equal(t, 1, out.Ranked[0].Rank)
	assert.Nil(t, out.Clustering)
}

func TestRun_ClusteringDegradesOnEmbeddingFailure(t *testing.T) {
	thisYear := time.Now().Year()
	articles := []*domain.Article{
		{ID: uuid.New(), Title: "One", DOI: "10.1/a", CitationCount: 120, PublicationYear: thisYear, Venue: "Nature", Relevance: 0.9, OpenAccess: true},
		{ID: uuid.New(), Title: "Two", DOI: "10.1/b", CitationCount: 150, PublicationYear: thisYear, Venue: "Science", Relevance: 0.9, OpenAccess: true},
	}

	p := newTestPipeline(t, errors.New("embedding service down"),
		&fakeSource{source: domain.SourceTypeArXiv, articles: articles})

	out := p.Run(context.Background(), "q", Options{
		Filters:          aggregator.Filters{IncludePreprints: true},
		EnableClustering: true,
	})

	// The run survives without clusters.
	assert.Nil(t, out.Clustering)
	assert.Len(t, out.Ranked, 2)
}

func TestRun_ClusteringAttachesResult(t *testing.T) {
	thisYear := time.Now().Year()
	articles := []*domain.Article{
		{ID: uuid.New(), Title: "One", DOI: "10.1/a", CitationCount: 120, PublicationYear: thisYear, Venue: "Nature", Relevance: 0.9, OpenAccess: true},
		{ID: uuid.New(), Title: "Two", DOI: "10.1/b", CitationCount: 150, PublicationYear: thisYear, Venue: "Science", Relevance: 0.9, OpenAccess: true},
	}

	p := newTestPipeline(t, nil,
		&fakeSource{source: domain.SourceTypeArXiv, articles: articles})

	out := p.Run(context.Background(), "q", Options{
		Filters:          aggregator.Filters{IncludePreprints: true},
		EnableClustering: true,
		ClusterOptions:   clustering.Options{Seed: 1, MaxClusters: 1},
	})

	require.NotNil(t, out.Clustering)
	assert.Equal(t, 2, out.Clustering.Statistics.TotalArticles)
}

func TestRun_RanksByScoreWhenRerankerDegraded(t *testing.T) {
	thisYear := time.Now().Year()

	// The weak article's source sorts first during aggregation; only the
	// score reordering puts the strong article ahead when the reranker has
	// no secondary scorer and falls back to input order.
	weak := &domain.Article{
		ID: uuid.New(), Title: "Weak Paper", DOI: "10.1/weak",
		Source: domain.SourceTypeArXiv, CitationCount: 3,
		PublicationYear: thisYear - 4,
	}
	strong := &domain.Article{
		ID: uuid.New(), Title: "Strong Paper", DOI: "10.1/strong",
		Source: domain.SourceTypeCrossref, CitationCount: 150,
		PublicationYear: thisYear, Venue: "Nature", Relevance: 0.9, OpenAccess: true,
	}

	registry := sources.NewRegistry()
	registry.Register(&fakeSource{source: domain.SourceTypeArXiv, articles: []*domain.Article{weak}})
	registry.Register(&fakeSource{source: domain.SourceTypeCrossref, articles: []*domain.Article{strong}})
	agg := aggregator.New(registry, zerolog.Nop(), nil, time.Second)

	scorer, err := scoring.New(scoring.Config{Thresholds: scoring.DefaultThresholds()}, zerolog.Nop(), nil)
	require.NoError(t, err)

	p := New(agg, scorer, nil, reranking.New(nil, zerolog.Nop(), nil), zerolog.Nop())

	out := p.Run(context.Background(), "strong paper", Options{
		Filters: aggregator.Filters{IncludePreprints: true},
	})

	require.Len(t, out.Articles, 2)
	assert.Equal(t, strong.ID, out.Articles[0].ID)
	assert.GreaterOrEqual(t, out.Articles[0].Quality.Total, out.Articles[1].Quality.Total)

	require.Len(t, out.Ranked, 2)
	assert.Equal(t, strong.ID, out.Ranked[0].Article.ID)
	assert.Equal(t, weak.ID, out.Ranked[1].Article.ID)
}

func TestRun_TopKTruncatesRanked(t *testing.T) {
	thisYear := time.Now().Year()
	var articles []*domain.Article
	for i := 0; i < 5; i++ {
		articles = append(articles, &domain.Article{
			ID: uuid.New(), Title: "Paper", DOI: uuid.NewString(),
			CitationCount: 100 + i, PublicationYear: thisYear,
			Venue: "Nature", Relevance: 0.9, OpenAccess: true,
		})
	}

	p := newTestPipeline(t, nil,
		&fakeSource{source: domain.SourceTypeArXiv, articles: articles})

	out := p.Run(context.Background(), "paper", Options{
		Filters: aggregator.Filters{IncludePreprints: true},
		TopK:    2,
	})

	assert.Len(t, out.Articles, 5)
	assert.Len(t, out.Ranked, 2)
}

func TestRun_NoSources(t *testing.T) {
	p := newTestPipeline(t, nil)

	out := p.Run(context.Background(), "anything", Options{})

	assert.Empty(t, out.Articles)
	assert.Empty(t, out.Ranked)
	assert.Equal(t, 0, out.Stats.Discovered)
}
