package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/sources"
)

const (
	// DefaultBaseURL is the default Semantic Scholar Graph API base URL.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit (1 request per second for
	// unauthenticated clients; pass an API key for higher limits).
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	// searchFields lists the paper fields requested from the API.
	searchFields = "paperId,title,abstract,year,publicationDate,venue,journal,authors,citationCount,isOpenAccess,openAccessPdf,externalIds,publicationTypes"

	sourceName = "Semantic Scholar"
)

// Config holds configuration for the Semantic Scholar client.
type Config struct {
	// BaseURL is the Semantic Scholar Graph API base URL.
	BaseURL string

	// Gateway configures the resilience layer for this source. An API key
	// set on Gateway.APIKey is sent as the x-api-key header.
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
	if c.Gateway.APIKey != "" && c.Gateway.APIKeyHeader == "" {
		c.Gateway.APIKeyHeader = "x-api-key"
	}
}

// Client implements the sources.SourceAdapter interface for Semantic Scholar.
type Client struct {
	config  Config
	gateway *sources.Gateway
}

// Ensure Client implements SourceAdapter interface.
var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new Semantic Scholar client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config:  cfg,
		gateway: sources.NewGateway(cfg.Gateway),
	}
}

// NewWithGateway creates a new Semantic Scholar client with an externally
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

// Search queries Semantic Scholar for articles matching the given parameters.
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

	articles := make([]*domain.Article, 0, len(response.Data))
	for i := range response.Data {
		article := c.resultToArticle(&response.Data[i])
		if article != nil {
			articles = append(articles, article)
		}
	}

	return &sources.SearchResult{
		Articles:       articles,
		TotalResults:   response.Total,
		HasMore:        response.Next > 0,
		NextOffset:     response.Next,
		Source:         domain.SourceTypeSemanticScholar,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a specific paper by its Semantic Scholar ID or DOI.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	// JoinPath escapes slashes in DOI-form identifiers without re-escaping
	// the percent sign.
	paperURL := baseURL.JoinPath("paper", id)

	query := url.Values{}
	query.Set("fields", searchFields)
	paperURL.RawQuery = query.Encode()

	var result PaperResult
	if err := c.getJSON(ctx, paperURL.String(), &result); err != nil {
		return nil, err
	}

	article := c.resultToArticle(&result)
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
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the paper search URL.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/paper/search"

	query := url.Values{}
	query.Set("query", params.Query)
	query.Set("fields", searchFields)

	if params.YearFrom > 0 || params.YearTo > 0 {
		query.Set("year", yearRange(params.YearFrom, params.YearTo))
	}
	if params.OpenAccessOnly {
		query.Set("openAccessPdf", "")
	}
	if params.MinCitations > 0 {
		query.Set("minCitationCount", strconv.Itoa(params.MinCitations))
	}

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	query.Set("limit", strconv.Itoa(maxResults))

	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// yearRange formats the Semantic Scholar year filter ("2020-2023", "2020-", "-2023").
func yearRange(from, to int) string {
	switch {
	case from > 0 && to > 0:
		return fmt.Sprintf("%d-%d", from, to)
	case from > 0:
		return fmt.Sprintf("%d-", from)
	default:
		return fmt.Sprintf("-%d", to)
	}
}

// resultToArticle converts a Semantic Scholar paper to a domain Article.
func (c *Client) resultToArticle(result *PaperResult) *domain.Article {
	if result == nil || result.PaperID == "" {
		return nil
	}

	doi := ""
	if result.ExternalIDs != nil {
		doi = strings.TrimSpace(result.ExternalIDs.DOI)
	}

	title := strings.TrimSpace(result.Title)
	canonicalID := domain.GenerateCanonicalID(doi, result.PaperID, domain.SourceTypeSemanticScholar, title)
	if canonicalID == "" {
		return nil
	}

	var pubDate *time.Time
	if result.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", result.PublicationDate); err == nil {
			pubDate = &t
		}
	}

	authors := make([]domain.Author, 0, len(result.Authors))
	for _, a := range result.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: name})
	}

	venue := strings.TrimSpace(result.Venue)
	if venue == "" && result.Journal != nil {
		venue = strings.TrimSpace(result.Journal.Name)
	}

	pdfURL := ""
	format := domain.FullTextFormatNone
	if result.OpenAccessPDF != nil && result.OpenAccessPDF.URL != "" {
		pdfURL = result.OpenAccessPDF.URL
		format = domain.FullTextFormatPDF
	}

	preprint := false
	for _, pt := range result.PublicationTypes {
		if strings.EqualFold(pt, "preprint") {
			preprint = true
			break
		}
	}

	return &domain.Article{
		ID:              uuid.New(),
		CanonicalID:     canonicalID,
		DOI:             doi,
		SourceID:        result.PaperID,
		Title:           title,
		Abstract:        strings.TrimSpace(result.Abstract),
		Authors:         authors,
		PublicationDate: pubDate,
		PublicationYear: result.Year,
		Venue:           venue,
		Source:          domain.SourceTypeSemanticScholar,
		OpenAccess:      result.IsOpenAccess,
		Preprint:        preprint,
		CitationCount:   result.CitationCount,
		PDFURL:          pdfURL,
		FullTextFormat:  format,
	}
}
