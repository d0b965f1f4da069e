package embedding

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

func TestNewClient_RequiresBaseURLAndModel(t *testing.T) {
	_, err := NewClient(Config{Model: "text-embedding-3-small"})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://api.openai.com"})
	require.Error(t, err)
}

func TestClient_EmbedBatchSortsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"first", "second"}, req.Input)

		// Out-of-order response; the index field is authoritative.
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.2,0.2]},
			{"index":0,"embedding":[0.1,0.1]}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret", Model: "text-embedding-3-small", Dimension: 2})
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.1}, vectors[0])
	assert.Equal(t, []float32{0.2, 0.2}, vectors[1])
}

func TestClient_EmbedBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "m", Dimension: 1})
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestClient_EmbedBatchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)

	var apiErr *domain.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "https://api.openai.com", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, defaultDimension, c.Dimension())
}
