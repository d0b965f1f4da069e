// Package crossref provides a client for the Crossref REST API.
//
// Crossref is the DOI registration agency for scholarly publishing and
// exposes metadata for over 150 million works. This package implements the
// sources.SourceAdapter interface for searching and retrieving articles.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorksResponse represents the response from the /works search endpoint.
type WorksResponse struct {
	Status  string       `json:"status"`
	Message WorksMessage `json:"message"`
}

// WorksMessage contains the search results and pagination info.
type WorksMessage struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// WorkResponse represents the response from the /works/{doi} endpoint.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work represents a single work in the Crossref API.
type Work struct {
	DOI                 string    `json:"DOI"`
	Title               []string  `json:"title"`
	ContainerTitle      []string  `json:"container-title"`
	Author              []Author  `json:"author"`
	Issued              DateParts `json:"issued"`
	IsReferencedByCount int       `json:"is-referenced-by-count"`
	Type                string    `json:"type"`
	Link                []Link    `json:"link"`
	License             []License `json:"license"`

	// Abstract is JATS XML when present; tags are stripped on parse.
	Abstract string `json:"abstract"`
}

// Author represents a work author.
type Author struct {
	Given       string        `json:"given"`
	Family      string        `json:"family"`
	ORCID       string        `json:"ORCID"`
	Affiliation []Affiliation `json:"affiliation"`
}

// Affiliation represents an author affiliation.
type Affiliation struct {
	Name string `json:"name"`
}

// DateParts holds Crossref's nested date representation:
// [[year, month, day]] with month and day optional.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 when absent.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Link represents a full-text link for a work.
type Link struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}

// License represents a license attached to a work.
type License struct {
	URL string `json:"URL"`
}
