package crossref

import (
	"context"
	"encoding/json"
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
	// DefaultBaseURL is the default Crossref API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit (5 requests per second,
	// well under Crossref's polite-pool allowance).
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	sourceName = "Crossref"
)

// jatsTagRegex strips JATS XML tags from Crossref abstracts.
var jatsTagRegex = regexp.MustCompile(`<[^>]+>`)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the Crossref API base URL.
	BaseURL string

	// Gateway configures the resilience layer for this source.
	Gateway sources.GatewayConfig

	// MailTo is an optional contact email; Crossref routes requests with
	// a mailto parameter into their polite pool.
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

// Client implements the sources.SourceAdapter interface for Crossref.
type Client struct {
	config  Config
	gateway *sources.Gateway
}

// Ensure Client implements SourceAdapter interface.
var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new Crossref client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config:  cfg,
		gateway: sources.NewGateway(cfg.Gateway),
	}
}

// NewWithGateway creates a new Crossref client with an externally
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

// Search queries Crossref for works matching the given parameters.
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var response WorksResponse
	if err := c.getJSON(ctx, searchURL, &response); err != nil {
		return nil, err
	}

	articles := make([]*domain.Article, 0, len(response.Message.Items))
	for i := range response.Message.Items {
		article := c.workToArticle(&response.Message.Items[i])
		if article != nil {
			articles = append(articles, article)
		}
	}

	nextOffset := params.Offset + len(articles)
	hasMore := nextOffset < response.Message.TotalResults

	return &sources.SearchResult{
		Articles:       articles,
		TotalResults:   response.Message.TotalResults,
		HasMore:        hasMore,
		NextOffset:     nextOffset,
		Source:         domain.SourceTypeCrossref,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a specific work by its DOI.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	// JoinPath escapes the DOI's slash without re-escaping the percent sign.
	workURL := baseURL.JoinPath("works", id)

	var response WorkResponse
	if err := c.getJSON(ctx, workURL.String(), &response); err != nil {
		return nil, err
	}

	article := c.workToArticle(&response.Message)
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
	return domain.SourceTypeCrossref
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the Crossref works search URL.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/works"

	query := url.Values{}
	query.Set("query.bibliographic", params.Query)

	var filters []string
	if params.YearFrom > 0 {
		filters = append(filters, fmt.Sprintf("from-pub-date:%d-01-01", params.YearFrom))
	}
	if params.YearTo > 0 {
		filters = append(filters, fmt.Sprintf("until-pub-date:%d-12-31", params.YearTo))
	}
	if len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
	}

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	query.Set("rows", strconv.Itoa(maxResults))

	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}

	if c.config.MailTo != "" {
		query.Set("mailto", c.config.MailTo)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// workToArticle converts a Crossref work to a domain Article.
func (c *Client) workToArticle(work *Work) *domain.Article {
	if work == nil {
		return nil
	}

	doi := strings.TrimSpace(work.DOI)
	title := ""
	if len(work.Title) > 0 {
		title = strings.Join(strings.Fields(work.Title[0]), " ")
	}

	canonicalID := domain.GenerateCanonicalID(doi, doi, domain.SourceTypeCrossref, title)
	if canonicalID == "" {
		return nil
	}

	authors := make([]domain.Author, 0, len(work.Author))
	for _, a := range work.Author {
		name := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		if name == "" {
			continue
		}
		author := domain.Author{
			Name:  name,
			ORCID: strings.TrimPrefix(strings.TrimSpace(a.ORCID), "http://orcid.org/"),
		}
		if len(a.Affiliation) > 0 {
			author.Affiliation = a.Affiliation[0].Name
		}
		authors = append(authors, author)
	}

	venue := ""
	if len(work.ContainerTitle) > 0 {
		venue = work.ContainerTitle[0]
	}

	pdfURL := ""
	format := domain.FullTextFormatNone
	for _, link := range work.Link {
		switch link.ContentType {
		case "application/pdf":
			pdfURL = link.URL
			format = domain.FullTextFormatPDF
		case "application/xml", "text/xml":
			if pdfURL == "" {
				pdfURL = link.URL
			}
			format = domain.FullTextFormatXML
		}
	}

	// Treat an attached license as a proxy for open access; Crossref has no
	// dedicated OA flag.
	openAccess := len(work.License) > 0

	return &domain.Article{
		ID:              uuid.New(),
		CanonicalID:     canonicalID,
		DOI:             doi,
		SourceID:        doi,
		Title:           title,
		Abstract:        stripJATS(work.Abstract),
		Authors:         authors,
		PublicationYear: work.Issued.Year(),
		Venue:           venue,
		Source:          domain.SourceTypeCrossref,
		OpenAccess:      openAccess,
		Preprint:        work.Type == "posted-content",
		CitationCount:   work.IsReferencedByCount,
		PDFURL:          pdfURL,
		FullTextFormat:  format,
	}
}

// stripJATS removes JATS XML markup from a Crossref abstract.
func stripJATS(abstract string) string {
	if abstract == "" {
		return ""
	}
	text := jatsTagRegex.ReplaceAllString(abstract, " ")
	return strings.Join(strings.Fields(text), " ")
}
