package sources

import (
	"context"
	"time"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

// SearchParams defines the parameters for searching academic articles.
// It is a closed filter set: every recognized option is an explicit field
// with a documented effect, rather than an open-ended bag of properties.
// All fields except Query are optional.
type SearchParams struct {
	// Query is the search query string (required).
	// The format may vary by source - some support boolean operators or
	// field-specific searches.
	Query string

	// YearFrom filters articles published in or after this year.
	// Zero applies no lower bound.
	YearFrom int

	// YearTo filters articles published in or before this year.
	// Zero applies no upper bound.
	YearTo int

	// MaxResults limits the number of articles returned in a single request.
	// Sources may have their own maximum limits that override this value.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// Offset specifies the starting position for paginated results.
	Offset int

	// IncludePreprints includes preprint versions of articles when true.
	IncludePreprints bool

	// OpenAccessOnly filters results to only include open access articles.
	OpenAccessOnly bool

	// MinCitations filters articles to only include those with at least
	// this many citations. A value of 0 applies no citation filter.
	MinCitations int

	// RequiredFormats restricts results to articles whose full text is
	// available in one of the listed formats. Sources that cannot filter
	// server-side rely on the aggregator's post-filter. Empty applies no
	// format filter.
	RequiredFormats []domain.FullTextFormat
}

// Matches reports whether an article satisfies the client-side filters.
// Sources apply what they can server-side; the aggregator applies this
// post-filter so filter semantics are uniform across sources.
func (p SearchParams) Matches(article *domain.Article) bool {
	if p.YearFrom > 0 && article.PublicationYear > 0 && article.PublicationYear < p.YearFrom {
		return false
	}
	if p.YearTo > 0 && article.PublicationYear > 0 && article.PublicationYear > p.YearTo {
		return false
	}
	if p.OpenAccessOnly && !article.OpenAccess {
		return false
	}
	if !p.IncludePreprints && article.Preprint {
		return false
	}
	if p.MinCitations > 0 && article.CitationCount < p.MinCitations {
		return false
	}
	if len(p.RequiredFormats) > 0 {
		found := false
		for _, f := range p.RequiredFormats {
			if article.FullTextFormat == f {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SearchResult contains the results from a source search operation.
type SearchResult struct {
	// Articles contains the articles returned by the search.
	// May be empty if no articles match the search criteria.
	Articles []*domain.Article

	// TotalResults is the total number of articles matching the query,
	// regardless of pagination limits. This value is provided by the
	// source API and may be an estimate for large result sets.
	TotalResults int

	// HasMore indicates whether additional results are available
	// beyond the current page.
	HasMore bool

	// NextOffset is the offset value to use for fetching the next page
	// of results. Only meaningful when HasMore is true.
	NextOffset int

	// Source identifies which source provided these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// SourceAdapter defines the interface that all source clients must implement.
// Each academic database or API (arXiv, OpenAlex, Semantic Scholar, Crossref)
// provides its own implementation; resilience state lives in the composed
// Gateway each adapter holds, not in any shared base.
type SourceAdapter interface {
	// Search queries the source for articles matching the given parameters.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Route all I/O through their Gateway
	//   - Transform source-specific responses to domain.Article
	//   - Include appropriate error wrapping with source context
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID retrieves a specific article by its source-specific identifier.
	// The id format is source-specific (e.g. DOI, arXiv ID).
	//
	// Returns domain.ErrNotFound if the article does not exist.
	GetByID(ctx context.Context, id string) (*domain.Article, error)

	// SourceType returns the type identifier for this source.
	// Used for attribution, deduplication, and routing.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this source.
	// Used for logging, metrics, and display purposes.
	Name() string

	// IsEnabled returns whether this source is currently enabled and
	// available for searches. A source may be disabled due to
	// configuration or missing API keys.
	IsEnabled() bool
}
