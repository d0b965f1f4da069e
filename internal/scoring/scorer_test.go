package scoring

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestScorer(t *testing.T, cfg Config) *Scorer {
	t.Helper()
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	s, err := New(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	s.now = func() time.Time { return testNow }
	return s
}

func TestNew_RejectsInvalidThresholds(t *testing.T) {
	_, err := New(Config{
		Thresholds: Thresholds{P1: 50, P2: 75, P3: 30, MinAcceptable: 20},
	}, zerolog.Nop(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds")
}

func TestScore_AlwaysWithinBounds(t *testing.T) {
	s := newTestScorer(t, Config{})

	articles := []*domain.Article{
		{},
		{CitationCount: 1_000_000, PublicationYear: 2025, Relevance: 1,
			OpenAccess: true, Preprint: true, Venue: "Nature",
			FullTextFormat: domain.FullTextFormatXML},
		{CitationCount: -5, PublicationYear: 1950, Relevance: -2},
		{CitationCount: 10, PublicationYear: 2020, Relevance: 0.5},
	}

	for _, a := range articles {
		m := s.Score(a)
		assert.GreaterOrEqual(t, m.Total, 0.0)
		assert.LessOrEqual(t, m.Total, 100.0)
	}
}

func TestCitationScore_Brackets(t *testing.T) {
	assert.Equal(t, 0.0, citationScore(0))
	assert.Equal(t, 7.5, citationScore(5))
	// log10(50) ~= 1.699 -> 15 + 8.49
	assert.InDelta(t, 23.49, citationScore(50), 0.01)
	// log10(120/100) ~= 0.0792 -> 25 + 0.198
	assert.InDelta(t, 25.2, citationScore(120), 0.01)
	// Very large counts stay capped.
	assert.LessOrEqual(t, citationScore(10_000_000), 30.0)
}

func TestTrendScore_CappedAt20(t *testing.T) {
	assert.Equal(t, 0.0, trendScore(0, 5))
	// 120 citations over 1 year = high velocity, capped.
	assert.LessOrEqual(t, trendScore(100_000, 1), 20.0)
	// 4 citations/year scales linearly.
	assert.InDelta(t, 8.0, trendScore(20, 5), 0.01)
}

func TestRecencyScore_Brackets(t *testing.T) {
	assert.Equal(t, 15.0, recencyScore(0))
	assert.Equal(t, 15.0, recencyScore(1))
	assert.Equal(t, 12.0, recencyScore(3))
	assert.Equal(t, 9.0, recencyScore(5))
	assert.Equal(t, 5.0, recencyScore(10))
	assert.Equal(t, 2.0, recencyScore(30))
}

func TestVenueTiers_SubstringMatching(t *testing.T) {
	v := DefaultVenues()

	assert.Equal(t, 20.0, v.ImpactScore("Nature Machine Intelligence"))
	assert.Equal(t, 20.0, v.ImpactScore("NeurIPS 2024 Workshop"))
	assert.Equal(t, 12.0, v.ImpactScore("PLOS ONE"))
	assert.Equal(t, 12.0, v.ImpactScore("IEEE Transactions on Robotics"))
	assert.Equal(t, 5.0, v.ImpactScore("Obscure Regional Journal"))
	assert.Equal(t, 5.0, v.ImpactScore(""))
}

func TestBonuses(t *testing.T) {
	s := newTestScorer(t, Config{})

	base := &domain.Article{CitationCount: 50, PublicationYear: 2023, Relevance: 0.5}
	withBonuses := &domain.Article{
		CitationCount: 50, PublicationYear: 2023, Relevance: 0.5,
		OpenAccess: true, Preprint: true, FullTextFormat: domain.FullTextFormatXML,
	}

	plain := s.Score(base)
	boosted := s.Score(withBonuses)

	// +5 open access, +3 preprint, +8 XML.
	assert.InDelta(t, 16.0, boosted.Total-plain.Total, 0.001)
	assert.Equal(t, 16.0, boosted.BonusScore)
}

func TestFormatBonus_Ordering(t *testing.T) {
	// More structured formats earn more.
	assert.Greater(t, formatBonus(domain.FullTextFormatXML), formatBonus(domain.FullTextFormatLaTeX))
	assert.Greater(t, formatBonus(domain.FullTextFormatLaTeX), formatBonus(domain.FullTextFormatHTML))
	assert.Greater(t, formatBonus(domain.FullTextFormatHTML), formatBonus(domain.FullTextFormatPDF))
	assert.Equal(t, 0.0, formatBonus(domain.FullTextFormatNone))
}

func TestClassify_Thresholds(t *testing.T) {
	s := newTestScorer(t, Config{
		Thresholds: Thresholds{P1: 75, P2: 50, P3: 30, MinAcceptable: 20},
	})

	tests := []struct {
		total float64
		want  domain.PriorityTier
	}{
		{80, domain.PriorityP1},
		{75, domain.PriorityP1},
		{60, domain.PriorityP2},
		{35, domain.PriorityP3},
		{25, domain.PriorityP3},
		{15, domain.PriorityDiscarded},
	}

	for _, tt := range tests {
		got := s.Classify(&domain.QualityMetrics{Total: tt.total})
		assert.Equal(t, tt.want, got, "total=%v", tt.total)
	}
}

func TestEnrich_SetsQualityAndPriority(t *testing.T) {
	s := newTestScorer(t, Config{})

	// Recent, heavily cited, open access article lands in P1.
	strong := &domain.Article{
		CitationCount:   120,
		PublicationYear: 2024,
		Relevance:       0.9,
		OpenAccess:      true,
		Venue:           "Nature",
		FullTextFormat:  domain.FullTextFormatXML,
	}
	s.Enrich(strong)
	require.NotNil(t, strong.Quality)
	assert.Equal(t, domain.PriorityP1, strong.Priority)

	// Old, uncited, no bonuses is discarded.
	weak := &domain.Article{PublicationYear: 2010}
	s.Enrich(weak)
	assert.Equal(t, domain.PriorityDiscarded, weak.Priority)
}

func TestEnrichAll_DropsDiscardedPreservesOrder(t *testing.T) {
	s := newTestScorer(t, Config{})

	a := &domain.Article{Title: "A", CitationCount: 120, PublicationYear: 2024, Relevance: 0.9, OpenAccess: true, Venue: "Nature"}
	b := &domain.Article{Title: "B", PublicationYear: 2010}
	c := &domain.Article{Title: "C", CitationCount: 40, PublicationYear: 2023, Relevance: 0.7, OpenAccess: true}

	kept := s.EnrichAll([]*domain.Article{a, b, c})

	require.Len(t, kept, 2)
	assert.Equal(t, "A", kept[0].Title)
	assert.Equal(t, "C", kept[1].Title)
}

func TestCustomAuthorSignal(t *testing.T) {
	high := newTestScorer(t, Config{
		AuthorSignal: func(*domain.Article) float64 { return 1 },
	})
	low := newTestScorer(t, Config{
		AuthorSignal: func(*domain.Article) float64 { return 0 },
	})

	a := &domain.Article{CitationCount: 10, PublicationYear: 2023}
	diff := high.Score(a).AuthorScore - low.Score(a).AuthorScore
	assert.Equal(t, maxAuthorScore, diff)
}
