// Package semanticscholar provides a client for the Semantic Scholar API.
//
// Semantic Scholar is a free, AI-powered research tool for scientific
// literature. This package implements the sources.SourceAdapter interface
// for searching and retrieving academic articles from the Graph API.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset for the next page of results.
	// A value of 0 indicates no more results.
	Next int `json:"next"`

	// Data contains the list of papers returned by the search.
	Data []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the Semantic Scholar API response.
type PaperResult struct {
	PaperID          string         `json:"paperId"`
	Title            string         `json:"title"`
	Abstract         string         `json:"abstract"`
	Year             int            `json:"year"`
	PublicationDate  string         `json:"publicationDate"` // YYYY-MM-DD
	Venue            string         `json:"venue"`
	Journal          *Journal       `json:"journal,omitempty"`
	Authors          []Author       `json:"authors"`
	CitationCount    int            `json:"citationCount"`
	IsOpenAccess     bool           `json:"isOpenAccess"`
	OpenAccessPDF    *OpenAccessPDF `json:"openAccessPdf,omitempty"`
	ExternalIDs      *ExternalIDs   `json:"externalIds,omitempty"`
	PublicationTypes []string       `json:"publicationTypes,omitempty"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	DOI           string `json:"DOI,omitempty"`
	ArXiv         string `json:"ArXiv,omitempty"`
	PubMed        string `json:"PubMed,omitempty"`
	PubMedCentral string `json:"PubMedCentral,omitempty"`
}

// Journal contains journal-specific information.
type Journal struct {
	Name   string `json:"name,omitempty"`
	Volume string `json:"volume,omitempty"`
	Pages  string `json:"pages,omitempty"`
}

// Author represents a paper author in the Semantic Scholar API.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// OpenAccessPDF contains information about an open access PDF.
type OpenAccessPDF struct {
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"` // e.g. "HYBRID", "GOLD", "GREEN"
}
