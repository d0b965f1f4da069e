package clustering

import (
	"strings"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

// defaultCharBudget bounds the text sent to the embedding collaborator per
// article.
const defaultCharBudget = 8000

// EmbeddingText builds the weighted text an article is embedded from: the
// title repeated three times, the abstract twice, and the introduction once,
// truncated to the character budget. Repetition weights the title highest
// in the resulting vector.
func EmbeddingText(article *domain.Article, charBudget int) string {
	if charBudget <= 0 {
		charBudget = defaultCharBudget
	}

	var b strings.Builder
	title := strings.TrimSpace(article.Title)
	abstract := strings.TrimSpace(article.Abstract)
	intro := strings.TrimSpace(article.Introduction)

	for i := 0; i < 3 && title != ""; i++ {
		b.WriteString(title)
		b.WriteString(" ")
	}
	for i := 0; i < 2 && abstract != ""; i++ {
		b.WriteString(abstract)
		b.WriteString(" ")
	}
	if intro != "" {
		b.WriteString(intro)
	}

	text := strings.TrimSpace(b.String())
	if len(text) > charBudget {
		text = text[:charBudget]
	}
	return text
}
