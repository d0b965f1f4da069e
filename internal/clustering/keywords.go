package clustering

import (
	"sort"
	"strings"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

const topKeywords = 5

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "using": {}, "via": {}, "we": {},
	"with": {}, "their": {}, "these": {}, "which": {}, "can": {}, "our": {},
	"new": {}, "based": {}, "towards": {}, "toward": {},
}

// topicKeywords extracts the most frequent non-stopword terms across member
// titles and abstracts. Ties break alphabetically for stable output.
func topicKeywords(members []*domain.Article) []string {
	counts := make(map[string]int)
	for _, article := range members {
		for _, term := range tokenize(article.Title) {
			counts[term]++
		}
		for _, term := range tokenize(article.Abstract) {
			counts[term]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > topKeywords {
		terms = terms[:topKeywords]
	}
	return terms
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	var terms []string
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
