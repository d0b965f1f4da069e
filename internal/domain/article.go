package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author represents an article author with optional affiliation and ORCID.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if a.Affiliation != "" {
		sb.WriteString(" (")
		sb.WriteString(a.Affiliation)
		sb.WriteString(")")
	}

	if a.ORCID != "" {
		sb.WriteString(" [")
		sb.WriteString(a.ORCID)
		sb.WriteString("]")
	}

	return sb.String()
}

// FullTextFormat describes the structure of an article's available full text.
// More structured formats carry a higher quality bonus during scoring.
type FullTextFormat string

const (
	FullTextFormatNone  FullTextFormat = ""
	FullTextFormatPDF   FullTextFormat = "pdf"
	FullTextFormatHTML  FullTextFormat = "html"
	FullTextFormatXML   FullTextFormat = "xml"
	FullTextFormatLaTeX FullTextFormat = "latex"
)

// Article is the central entity of the aggregation pipeline. It is created by
// a source adapter from one external record, enriched in place by the quality
// scorer (Quality, Priority) and the clustering engine (ClusterID), and never
// mutated by the aggregator beyond dedup selection.
type Article struct {
	// ID is a process-local identifier assigned at creation.
	ID uuid.UUID

	// CanonicalID is the cross-source identity used for attribution.
	// Never empty; see GenerateCanonicalID for the priority order.
	CanonicalID string

	// DOI is the Digital Object Identifier, if known.
	DOI string

	// SourceID is the identifier assigned by the originating source
	// (e.g. arXiv ID, OpenAlex work ID).
	SourceID string

	Title    string
	Abstract string

	// Introduction holds introduction text when the adapter could extract
	// it. Used only to enrich the clustering embedding text.
	Introduction string

	Authors         []Author
	PublicationDate *time.Time
	PublicationYear int
	Venue           string

	// Source identifies the adapter that produced this article.
	Source SourceType

	OpenAccess bool

	// Preprint marks articles that came from a preprint repository.
	Preprint bool

	CitationCount  int
	PDFURL         string
	FullTextFormat FullTextFormat

	// Embedding is the semantic vector for this article, populated by the
	// clustering engine. Ephemeral; never persisted by this service.
	Embedding []float32

	// Relevance is the caller-supplied semantic similarity of this article
	// to the search query, in [0,1]. Zero when no signal is available.
	Relevance float64

	// Quality is populated by the quality scorer.
	Quality *QualityMetrics

	// Priority is the tier assigned by classification, empty until scored.
	Priority PriorityTier

	// ClusterID is the cluster this article was assigned to. Clusters are
	// numbered from 1; zero means unassigned or orphan.
	ClusterID int
}

// GenerateCanonicalID generates a canonical identifier for an article.
// Priority order: DOI > source-specific ID > normalized title.
// Returns empty string only when all three are absent.
func GenerateCanonicalID(doi, sourceID string, source SourceType, title string) string {
	if d := strings.TrimSpace(doi); d != "" {
		return "doi:" + strings.ToLower(d)
	}
	if sid := strings.TrimSpace(sourceID); sid != "" {
		return string(source) + ":" + sid
	}
	if t := NormalizeTitle(title); t != "" {
		return "title:" + t
	}
	return ""
}

// DedupKey returns the cross-source deduplication key for the article:
// the lowercased DOI when present, otherwise the normalized title.
func (a *Article) DedupKey() string {
	if d := strings.TrimSpace(a.DOI); d != "" {
		return "doi:" + strings.ToLower(d)
	}
	return "title:" + NormalizeTitle(a.Title)
}

// NormalizeTitle lowercases a title, collapses internal whitespace and trims
// the result, so that trivially different renderings of the same title
// compare equal during deduplication.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// HasIdentifier returns true if the article has a canonical identifier.
func (a *Article) HasIdentifier() bool {
	return a.CanonicalID != ""
}

// Age returns the article's age in whole years relative to now.
// Returns 0 for articles without a publication year or published this year.
func (a *Article) Age(now time.Time) int {
	if a.PublicationYear <= 0 {
		return 0
	}
	age := now.Year() - a.PublicationYear
	if age < 0 {
		return 0
	}
	return age
}
