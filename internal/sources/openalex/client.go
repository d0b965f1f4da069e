package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/sources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit (10 requests per second).
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	sourceName = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	BaseURL string

	// Gateway configures the resilience layer for this source.
	Gateway sources.GatewayConfig

	// MailTo is an optional contact email; OpenAlex routes requests with
	// a mailto parameter into their faster "polite pool".
	MailTo string

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	c.Gateway.Source = sourceName
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = DefaultTimeout
	}
	if c.Gateway.RateLimit == 0 {
		c.Gateway.RateLimit = DefaultRateLimit
	}
	if c.Gateway.BurstSize == 0 {
		c.Gateway.BurstSize = DefaultBurstSize
	}
}

// Client implements the sources.SourceAdapter interface for OpenAlex.
type Client struct {
	config  Config
	gateway *sources.Gateway
}

// Ensure Client implements SourceAdapter interface.
var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config:  cfg,
		gateway: sources.NewGateway(cfg.Gateway),
	}
}

// NewWithGateway creates a new OpenAlex client with an externally
// constructed gateway. This is useful for testing with mock servers.
func NewWithGateway(cfg Config, gateway *sources.Gateway) *Client {
	cfg.applyDefaults()

	return &Client{
		config:  cfg,
		gateway: gateway,
	}
}

// Gateway returns the gateway owned by this client.
func (c *Client) Gateway() *sources.Gateway {
	return c.gateway
}

// Search queries OpenAlex for articles matching the given parameters.
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var response SearchResponse
	if err := c.getJSON(ctx, searchURL, &response); err != nil {
		return nil, err
	}

	articles := make([]*domain.Article, 0, len(response.Results))
	for i := range response.Results {
		article := c.workToArticle(&response.Results[i])
		if article != nil {
			articles = append(articles, article)
		}
	}

	nextOffset := params.Offset + len(articles)
	hasMore := nextOffset < response.Meta.Count

	return &sources.SearchResult{
		Articles:       articles,
		TotalResults:   response.Meta.Count,
		HasMore:        hasMore,
		NextOffset:     nextOffset,
		Source:         domain.SourceTypeOpenAlex,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a specific work by its OpenAlex ID or DOI.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/works/" + url.PathEscape(id)

	var work Work
	if err := c.getJSON(ctx, baseURL.String(), &work); err != nil {
		return nil, err
	}

	article := c.workToArticle(&work)
	if article == nil {
		return nil, domain.NewNotFoundError("article", id)
	}
	return article, nil
}

// getJSON executes a GET request through the gateway and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.gateway.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.NewNotFoundError("article", rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the OpenAlex works search URL.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/works"

	query := url.Values{}
	query.Set("search", params.Query)

	if filters := buildFilters(params); len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
	}

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	query.Set("per-page", strconv.Itoa(maxResults))

	if params.Offset > 0 {
		// OpenAlex pages are 1-based.
		query.Set("page", strconv.Itoa(params.Offset/maxResults+1))
	}

	if c.config.MailTo != "" {
		query.Set("mailto", c.config.MailTo)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildFilters constructs the filter query string components.
func buildFilters(params sources.SearchParams) []string {
	var filters []string

	if params.YearFrom > 0 {
		filters = append(filters, fmt.Sprintf("from_publication_date:%d-01-01", params.YearFrom))
	}
	if params.YearTo > 0 {
		filters = append(filters, fmt.Sprintf("to_publication_date:%d-12-31", params.YearTo))
	}
	if params.OpenAccessOnly {
		filters = append(filters, "is_oa:true")
	}
	if params.MinCitations > 0 {
		filters = append(filters, fmt.Sprintf("cited_by_count:>%d", params.MinCitations-1))
	}
	if !params.IncludePreprints {
		filters = append(filters, "type:!preprint")
	}

	return filters
}

// workToArticle converts an OpenAlex work to a domain Article.
func (c *Client) workToArticle(work *Work) *domain.Article {
	if work == nil {
		return nil
	}

	title := strings.TrimSpace(work.Title)
	if title == "" {
		title = strings.TrimSpace(work.DisplayName)
	}

	doi := normalizeDOI(work.DOI)
	openAlexID := normalizeOpenAlexID(work.ID)

	canonicalID := domain.GenerateCanonicalID(doi, openAlexID, domain.SourceTypeOpenAlex, title)
	if canonicalID == "" {
		return nil
	}

	var pubDate *time.Time
	if work.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", work.PublicationDate); err == nil {
			pubDate = &t
		}
	}

	authors := make([]domain.Author, 0, len(work.Authorships))
	for _, authorship := range work.Authorships {
		name := strings.TrimSpace(authorship.Author.DisplayName)
		if name == "" {
			continue
		}
		author := domain.Author{
			Name:  name,
			ORCID: normalizeORCID(authorship.Author.Orcid),
		}
		if len(authorship.Institutions) > 0 {
			author.Affiliation = authorship.Institutions[0].DisplayName
		}
		authors = append(authors, author)
	}

	openAccess := false
	pdfURL := ""
	if work.OpenAccess != nil {
		openAccess = work.OpenAccess.IsOA
		pdfURL = work.OpenAccess.OAURL
	}

	venue := ""
	format := domain.FullTextFormatNone
	if work.PrimaryLocation != nil {
		if work.PrimaryLocation.Source != nil {
			venue = work.PrimaryLocation.Source.DisplayName
		}
		if work.PrimaryLocation.PDFURL != "" {
			pdfURL = work.PrimaryLocation.PDFURL
		}
	}
	if pdfURL != "" {
		format = domain.FullTextFormatPDF
	}

	return &domain.Article{
		ID:              uuid.New(),
		CanonicalID:     canonicalID,
		DOI:             doi,
		SourceID:        openAlexID,
		Title:           title,
		Abstract:        reconstructAbstract(work.AbstractInvertedIndex),
		Authors:         authors,
		PublicationDate: pubDate,
		PublicationYear: work.PublicationYear,
		Venue:           venue,
		Source:          domain.SourceTypeOpenAlex,
		OpenAccess:      openAccess,
		Preprint:        work.Type == "preprint",
		CitationCount:   work.CitedByCount,
		PDFURL:          pdfURL,
		FullTextFormat:  format,
	}
}

// normalizeDOI strips the https://doi.org/ prefix OpenAlex uses.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	return doi
}

// normalizeOpenAlexID strips the https://openalex.org/ prefix.
func normalizeOpenAlexID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "https://openalex.org/")
	return id
}

// normalizeORCID strips the https://orcid.org/ prefix.
func normalizeORCID(orcid string) string {
	orcid = strings.TrimSpace(orcid)
	orcid = strings.TrimPrefix(orcid, "https://orcid.org/")
	return orcid
}

// reconstructAbstract rebuilds the abstract text from OpenAlex's inverted
// index representation (word -> list of positions).
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type positioned struct {
		word string
		pos  int
	}

	var words []positioned
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			words = append(words, positioned{word: word, pos: pos})
		}
	}

	sort.Slice(words, func(i, j int) bool {
		return words[i].pos < words[j].pos
	})

	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w.word)
	}
	return sb.String()
}
