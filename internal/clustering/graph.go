package clustering

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

// validEdgeSimilarity is the cosine similarity an existing edge must reach
// to be considered valid.
const validEdgeSimilarity = 0.5

// EdgeCheck is the verdict for one caller-supplied edge.
type EdgeCheck struct {
	Edge       domain.SemanticEdge `json:"edge"`
	Valid      bool                `json:"valid"`
	Similarity float64             `json:"similarity"`
	Reason     string              `json:"reason,omitempty"`
}

// GraphValidation is the result of checking a relationship graph against
// article embeddings.
type GraphValidation struct {
	Checked       []EdgeCheck           `json:"checked"`
	ProposedEdges []domain.SemanticEdge `json:"proposed_edges"`
}

// ValidateGraphEdges checks each caller-supplied edge against the cosine
// similarity of its endpoints' embeddings, and proposes edges for article
// pairs above the proposal threshold that the input graph lacks. Articles
// without embeddings invalidate their edges with a reason rather than
// failing the call.
func (e *Engine) ValidateGraphEdges(edges []domain.SemanticEdge, articles []*domain.Article, proposalThreshold float64) *GraphValidation {
	if proposalThreshold <= 0 {
		proposalThreshold = defaultSimilarityThreshold
	}

	byID := make(map[uuid.UUID][]float64, len(articles))
	for _, a := range articles {
		if len(a.Embedding) > 0 {
			byID[a.ID] = toFloat64(a.Embedding)
		}
	}

	existing := make(map[[2]uuid.UUID]struct{}, len(edges))
	out := &GraphValidation{Checked: make([]EdgeCheck, 0, len(edges))}

	for _, edge := range edges {
		existing[pairKey(edge.SourceArticleID, edge.TargetArticleID)] = struct{}{}

		check := EdgeCheck{Edge: edge}
		src, srcOK := byID[edge.SourceArticleID]
		dst, dstOK := byID[edge.TargetArticleID]
		switch {
		case !srcOK:
			check.Reason = fmt.Sprintf("source article %s has no embedding", edge.SourceArticleID)
		case !dstOK:
			check.Reason = fmt.Sprintf("target article %s has no embedding", edge.TargetArticleID)
		default:
			check.Similarity = cosineSimilarity(src, dst)
			if check.Similarity >= validEdgeSimilarity {
				check.Valid = true
			} else {
				check.Reason = fmt.Sprintf("similarity %.3f below %.2f", check.Similarity, validEdgeSimilarity)
			}
		}
		out.Checked = append(out.Checked, check)
	}

	for i := 0; i < len(articles); i++ {
		src, ok := byID[articles[i].ID]
		if !ok {
			continue
		}
		for j := i + 1; j < len(articles); j++ {
			dst, ok := byID[articles[j].ID]
			if !ok {
				continue
			}
			if _, seen := existing[pairKey(articles[i].ID, articles[j].ID)]; seen {
				continue
			}
			if sim := cosineSimilarity(src, dst); sim >= proposalThreshold {
				out.ProposedEdges = append(out.ProposedEdges, domain.SemanticEdge{
					SourceArticleID: articles[i].ID,
					TargetArticleID: articles[j].ID,
					Similarity:      sim,
					Type:            domain.EdgeTypeSimilarity,
				})
			}
		}
	}

	return out
}

// pairKey builds an order-independent key for an article pair.
func pairKey(a, b uuid.UUID) [2]uuid.UUID {
	if b.String() < a.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}
