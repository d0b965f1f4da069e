// Package scoring computes bounded multi-factor quality scores for articles
// and classifies them into priority tiers.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/observability"
)

// Factor caps. The fixed factor weights (citations 0.30, trend 0.20, impact
// 0.20, recency 0.15, relevance 0.10, author 0.05) are expressed as point
// caps summing to 100 before bonuses.
const (
	maxCitationScore  = 30.0
	maxTrendScore     = 20.0
	maxImpactScore    = 20.0
	maxRecencyScore   = 15.0
	maxRelevanceScore = 10.0
	maxAuthorScore    = 5.0

	openAccessBonus = 5.0
	preprintBonus   = 3.0
	maxFormatBonus  = 8.0
)

// AuthorSignal supplies an author-reputation signal in [0,1] for an article.
// There is no real H-index integration yet; the default signal returns a
// neutral constant.
type AuthorSignal func(article *domain.Article) float64

// defaultAuthorSignal is the placeholder reputation signal.
func defaultAuthorSignal(_ *domain.Article) float64 {
	return 0.5
}

// Thresholds holds the priority tier boundaries. All values are quality
// scores in [0,100] and must satisfy P1 > P2 > P3 >= MinAcceptable.
type Thresholds struct {
	P1            float64
	P2            float64
	P3            float64
	MinAcceptable float64
}

// DefaultThresholds returns the standard tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		P1:            75,
		P2:            50,
		P3:            30,
		MinAcceptable: 20,
	}
}

// Validate checks the threshold ordering and ranges. A violating
// configuration is a fatal startup error, never silently corrected.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"p1": t.P1, "p2": t.P2, "p3": t.P3, "min_acceptable": t.MinAcceptable,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("threshold %s out of range [0,100]: %g", name, v)
		}
	}
	if !(t.P1 > t.P2 && t.P2 > t.P3 && t.P3 >= t.MinAcceptable) {
		return fmt.Errorf("thresholds must satisfy P1 > P2 > P3 >= min_acceptable, got P1=%g P2=%g P3=%g min=%g",
			t.P1, t.P2, t.P3, t.MinAcceptable)
	}
	return nil
}

// Config holds scorer configuration.
type Config struct {
	// Thresholds are the tier boundaries; see Thresholds.Validate.
	Thresholds Thresholds

	// Venues overrides the curated venue tier lists. Nil uses DefaultVenues.
	Venues *VenueTiers

	// AuthorSignal overrides the author-reputation input. Nil uses the
	// neutral placeholder.
	AuthorSignal AuthorSignal
}

// Scorer assigns quality metrics and priority tiers to articles.
type Scorer struct {
	thresholds   Thresholds
	venues       *VenueTiers
	authorSignal AuthorSignal
	logger       zerolog.Logger
	metrics      *observability.Metrics

	// now is replaceable for deterministic tests.
	now func() time.Time
}

// New creates a Scorer. metrics may be nil. Returns an error when the
// threshold configuration is invalid; callers must treat that as fatal.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (*Scorer, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}

	venues := cfg.Venues
	if venues == nil {
		venues = DefaultVenues()
	}
	signal := cfg.AuthorSignal
	if signal == nil {
		signal = defaultAuthorSignal
	}

	return &Scorer{
		thresholds:   cfg.Thresholds,
		venues:       venues,
		authorSignal: signal,
		logger:       logger.With().Str("component", "scorer").Logger(),
		metrics:      metrics,
		now:          time.Now,
	}, nil
}

// Score computes the quality metrics for an article. The returned total is
// always within [0,100]. The article is not mutated; use Enrich to attach
// metrics and a priority tier in place.
func (s *Scorer) Score(article *domain.Article) *domain.QualityMetrics {
	now := s.now()
	age := article.Age(now)

	m := &domain.QualityMetrics{
		CitationScore:  citationScore(article.CitationCount),
		TrendScore:     trendScore(article.CitationCount, age),
		ImpactScore:    s.venues.ImpactScore(article.Venue),
		RecencyScore:   recencyScore(age),
		RelevanceScore: clamp(article.Relevance, 0, 1) * maxRelevanceScore,
		AuthorScore:    clamp(s.authorSignal(article), 0, 1) * maxAuthorScore,
	}

	m.BonusScore = bonusScore(article)
	base := m.CitationScore + m.TrendScore + m.ImpactScore + m.RecencyScore + m.RelevanceScore + m.AuthorScore
	m.Total = clamp(base+m.BonusScore, 0, 100)
	return m
}

// Classify maps a quality score onto a priority tier. It is a pure
// threshold function: scores below the minimum acceptable are discarded,
// otherwise the highest matching tier wins.
func (s *Scorer) Classify(m *domain.QualityMetrics) domain.PriorityTier {
	switch {
	case m.Total < s.thresholds.MinAcceptable:
		return domain.PriorityDiscarded
	case m.Total >= s.thresholds.P1:
		return domain.PriorityP1
	case m.Total >= s.thresholds.P2:
		return domain.PriorityP2
	default:
		return domain.PriorityP3
	}
}

// Enrich scores and classifies an article in place.
func (s *Scorer) Enrich(article *domain.Article) {
	m := s.Score(article)
	article.Quality = m
	article.Priority = s.Classify(m)

	if s.metrics != nil {
		s.metrics.ArticlesByTier.WithLabelValues(string(article.Priority)).Inc()
	}
}

// EnrichAll scores every article and returns those that survive
// classification, preserving input order. Discarded articles are dropped
// from all downstream stages.
func (s *Scorer) EnrichAll(articles []*domain.Article) []*domain.Article {
	kept := make([]*domain.Article, 0, len(articles))
	discarded := 0

	for _, article := range articles {
		s.Enrich(article)
		if article.Priority.Kept() {
			kept = append(kept, article)
		} else {
			discarded++
		}
	}

	s.logger.Debug().
		Int("scored", len(articles)).
		Int("kept", len(kept)).
		Int("discarded", discarded).
		Msg("articles scored")

	return kept
}

// citationScore maps a citation count onto [0,30] with logarithmic damping:
// counts below 10 scale linearly, counts below 100 grow with log10, and
// counts of 100 or more approach the cap slowly.
func citationScore(citations int) float64 {
	c := float64(citations)
	switch {
	case citations <= 0:
		return 0
	case citations < 10:
		return c * 1.5
	case citations < 100:
		return 15 + math.Log10(c)*5
	default:
		return math.Min(maxCitationScore, 25+math.Log10(c/100)*2.5)
	}
}

// trendScore maps citations per year since publication onto [0,20] with the
// same logarithmic damping shape as citationScore.
func trendScore(citations, age int) float64 {
	if citations <= 0 {
		return 0
	}
	years := age
	if years < 1 {
		years = 1
	}
	perYear := float64(citations) / float64(years)
	if perYear < 5 {
		return perYear * 2
	}
	return math.Min(maxTrendScore, 10+math.Log10(perYear)*5)
}

// recencyScore maps article age in years onto a bracketed score.
func recencyScore(age int) float64 {
	switch {
	case age <= 1:
		return 15
	case age <= 3:
		return 12
	case age <= 5:
		return 9
	case age <= 10:
		return 5
	default:
		return 2
	}
}

// bonusScore computes the additive bonuses: open access, structured
// full-text format quality, and preprint-repository provenance.
func bonusScore(article *domain.Article) float64 {
	bonus := 0.0
	if article.OpenAccess {
		bonus += openAccessBonus
	}
	if article.Preprint {
		bonus += preprintBonus
	}
	bonus += formatBonus(article.FullTextFormat)
	return bonus
}

// formatBonus rewards more structured full-text formats, up to 8 points.
func formatBonus(format domain.FullTextFormat) float64 {
	switch format {
	case domain.FullTextFormatXML:
		return maxFormatBonus
	case domain.FullTextFormatLaTeX:
		return 6
	case domain.FullTextFormatHTML:
		return 4
	case domain.FullTextFormatPDF:
		return 2
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
