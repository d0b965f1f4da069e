package clustering

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

func TestValidateGraphEdges(t *testing.T) {
	e := newTestEngine()

	similar1 := embeddedArticle("a", []float32{1, 0})
	similar2 := embeddedArticle("b", []float32{0.99, 0.14})
	distant := embeddedArticle("c", []float32{0, 1})
	noVector := &domain.Article{ID: uuid.New(), Title: "d"}
	articles := []*domain.Article{similar1, similar2, distant, noVector}

	edges := []domain.SemanticEdge{
		{SourceArticleID: similar1.ID, TargetArticleID: similar2.ID, Type: domain.EdgeTypeSimilarity},
		{SourceArticleID: similar1.ID, TargetArticleID: distant.ID, Type: domain.EdgeTypeSimilarity},
		{SourceArticleID: similar1.ID, TargetArticleID: noVector.ID, Type: domain.EdgeTypeSimilarity},
	}

	out := e.ValidateGraphEdges(edges, articles, 0.9)
	require.Len(t, out.Checked, 3)

	// Cosine-similar endpoints make a valid edge.
	assert.True(t, out.Checked[0].Valid)
	assert.GreaterOrEqual(t, out.Checked[0].Similarity, 0.9)
	assert.Empty(t, out.Checked[0].Reason)

	// Near-orthogonal endpoints fail the similarity floor.
	assert.False(t, out.Checked[1].Valid)
	assert.Contains(t, out.Checked[1].Reason, "below")

	// A missing embedding invalidates the edge with a reason instead of
	// failing the call.
	assert.False(t, out.Checked[2].Valid)
	assert.Contains(t, out.Checked[2].Reason, "no embedding")
}

func TestValidateGraphEdges_ProposesMissingEdges(t *testing.T) {
	e := newTestEngine()

	a := embeddedArticle("a", []float32{1, 0})
	b := embeddedArticle("b", []float32{0.99, 0.14})
	c := embeddedArticle("c", []float32{0, 1})

	out := e.ValidateGraphEdges(nil, []*domain.Article{a, b, c}, 0.9)

	// Only the similar, unlinked pair is proposed.
	require.Len(t, out.ProposedEdges, 1)
	proposed := out.ProposedEdges[0]
	assert.ElementsMatch(t,
		[]uuid.UUID{a.ID, b.ID},
		[]uuid.UUID{proposed.SourceArticleID, proposed.TargetArticleID})
	assert.GreaterOrEqual(t, proposed.Similarity, 0.9)
}

func TestValidateGraphEdges_ExistingEdgeNotReproposed(t *testing.T) {
	e := newTestEngine()

	a := embeddedArticle("a", []float32{1, 0})
	b := embeddedArticle("b", []float32{0.99, 0.14})

	// Edge supplied in reverse direction still suppresses the proposal.
	edges := []domain.SemanticEdge{
		{SourceArticleID: b.ID, TargetArticleID: a.ID, Type: domain.EdgeTypeSimilarity},
	}

	out := e.ValidateGraphEdges(edges, []*domain.Article{a, b}, 0.9)
	assert.Empty(t, out.ProposedEdges)
}
