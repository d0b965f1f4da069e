package reranking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

func TestNewModelScorer_RequiresBaseURL(t *testing.T) {
	_, err := NewModelScorer(ModelConfig{})
	require.Error(t, err)
}

func TestModelScorer_ScoreRelevance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "protein folding", req.Query)
		require.Len(t, req.Documents, 2)
		assert.Equal(t, "First. About proteins.", req.Documents[0])

		// Results arrive out of order; the index field maps them back.
		_, _ = w.Write([]byte(`{"results":[
			{"index":1,"relevance_score":0.9},
			{"index":0,"relevance_score":0.2}
		]}`))
	}))
	defer srv.Close()

	m, err := NewModelScorer(ModelConfig{BaseURL: srv.URL, APIKey: "secret", Model: "rerank-v1"})
	require.NoError(t, err)

	candidates := []*domain.Article{
		{Title: "First", Abstract: "About proteins."},
		{Title: "Second"},
	}
	scores, err := m.ScoreRelevance(context.Background(), "protein folding", candidates)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.9}, scores)
}

func TestModelScorer_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.5}]}`))
	}))
	defer srv.Close()

	m, err := NewModelScorer(ModelConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = m.ScoreRelevance(context.Background(), "q", []*domain.Article{{Title: "a"}, {Title: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestModelScorer_UpstreamErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m, err := NewModelScorer(ModelConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = m.ScoreRelevance(context.Background(), "q", []*domain.Article{{Title: "a"}})
	var apiErr *domain.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestModelScorer_SnippetTruncation(t *testing.T) {
	m, err := NewModelScorer(ModelConfig{BaseURL: "http://localhost", SnippetLength: 10})
	require.NoError(t, err)

	s := m.snippet(&domain.Article{Title: "A very long title indeed", Abstract: "plus more"})
	assert.Len(t, s, 10)
}
