// Package arxiv implements the sources.SourceAdapter interface for the
// arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/sources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second),
	// per arXiv's API guidelines.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the full URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Gateway configures the resilience layer for this source. The Source
	// field is set automatically.
	Gateway sources.GatewayConfig

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

// Client implements the sources.SourceAdapter interface for arXiv.
type Client struct {
	config  Config
	gateway *sources.Gateway
}

// Ensure Client implements SourceAdapter interface.
var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config:  cfg,
		gateway: sources.NewGateway(cfg.Gateway),
	}
}

// NewWithGateway creates a new arXiv client with an externally constructed
// gateway. This is useful for testing with mock servers.
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

// Search queries arXiv for articles matching the given parameters.
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	feed, err := c.fetchFeed(req)
	if err != nil {
		return nil, err
	}

	articles := make([]*domain.Article, 0, len(feed.Entries))
	for i := range feed.Entries {
		article := c.entryToArticle(&feed.Entries[i])
		if article != nil {
			articles = append(articles, article)
		}
	}

	nextOffset := params.Offset + len(articles)
	hasMore := nextOffset < feed.TotalResults

	return &sources.SearchResult{
		Articles:       articles,
		TotalResults:   feed.TotalResults,
		HasMore:        hasMore,
		NextOffset:     nextOffset,
		Source:         domain.SourceTypeArXiv,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a specific article by its arXiv ID.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	query := url.Values{}
	query.Set("id_list", id)
	baseURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	feed, err := c.fetchFeed(req)
	if err != nil {
		return nil, err
	}

	if len(feed.Entries) == 0 {
		return nil, domain.NewNotFoundError("article", id)
	}

	article := c.entryToArticle(&feed.Entries[0])
	if article == nil {
		return nil, domain.NewNotFoundError("article", id)
	}

	return article, nil
}

// fetchFeed executes the request through the gateway and decodes the Atom feed.
func (c *Client) fetchFeed(req *http.Request) (*Feed, error) {
	resp, err := c.gateway.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &feed, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	query := url.Values{}

	searchQuery := "all:" + params.Query
	if dateFilter := buildDateFilter(params.YearFrom, params.YearTo); dateFilter != "" {
		searchQuery = searchQuery + " AND " + dateFilter
	}
	query.Set("search_query", searchQuery)

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	query.Set("max_results", strconv.Itoa(maxResults))

	if params.Offset > 0 {
		query.Set("start", strconv.Itoa(params.Offset))
	}

	// Sort by submission date (newest first).
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildDateFilter constructs the arXiv submittedDate filter from year bounds.
func buildDateFilter(yearFrom, yearTo int) string {
	if yearFrom == 0 && yearTo == 0 {
		return ""
	}

	fromStr := "*"
	if yearFrom > 0 {
		fromStr = fmt.Sprintf("%d01010000", yearFrom)
	}

	toStr := "*"
	if yearTo > 0 {
		toStr = fmt.Sprintf("%d12312359", yearTo)
	}

	return fmt.Sprintf("submittedDate:[%s TO %s]", fromStr, toStr)
}

// entryToArticle converts an arXiv Atom entry to a domain Article.
func (c *Client) entryToArticle(entry *Entry) *domain.Article {
	if entry == nil {
		return nil
	}

	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	doi := strings.TrimSpace(entry.DOI)
	title := normalizeWhitespace(entry.Title)

	canonicalID := domain.GenerateCanonicalID(doi, arxivID, domain.SourceTypeArXiv, title)
	if canonicalID == "" {
		return nil
	}

	var pubDate *time.Time
	var pubYear int
	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			pubDate = &t
			pubYear = t.Year()
		}
	}

	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	// Extract PDF URL from links.
	pdfURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = "http://arxiv.org/pdf/" + arxivID
	}

	return &domain.Article{
		ID:              uuid.New(),
		CanonicalID:     canonicalID,
		DOI:             doi,
		SourceID:        arxivID,
		Title:           title,
		Abstract:        normalizeWhitespace(entry.Summary),
		Authors:         authors,
		PublicationDate: pubDate,
		PublicationYear: pubYear,
		Venue:           normalizeWhitespace(entry.JournalRef),
		Source:          domain.SourceTypeArXiv,
		OpenAccess:      true, // arXiv articles are always open access
		Preprint:        true,
		PDFURL:          pdfURL,
		FullTextFormat:  domain.FullTextFormatPDF,
	}
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
// arXiv titles and abstracts include leading whitespace and newlines.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
