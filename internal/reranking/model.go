package reranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

const (
	defaultModelTimeout  = 30 * time.Second
	defaultSnippetLength = 512
)

// ModelConfig holds settings for a cross-encoder rerank endpoint.
type ModelConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	SnippetLength int
}

func (c *ModelConfig) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultModelTimeout
	}
	if c.SnippetLength <= 0 {
		c.SnippetLength = defaultSnippetLength
	}
}

// ModelScorer calls a rerank endpoint that scores (query, snippet) pairs.
type ModelScorer struct {
	cfg        ModelConfig
	httpClient *http.Client
}

// NewModelScorer creates a remote relevance scorer.
func NewModelScorer(cfg ModelConfig) (*ModelScorer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("reranking: model base URL is required")
	}
	cfg.applyDefaults()

	return &ModelScorer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// ScoreRelevance posts the query with one snippet per candidate and returns
// the model's relevance scores in candidate order.
func (m *ModelScorer) ScoreRelevance(ctx context.Context, query string, candidates []*domain.Article) ([]float64, error) {
	documents := make([]string, len(candidates))
	for i, article := range candidates {
		documents[i] = m.snippet(article)
	}

	body, err := json.Marshal(rerankRequest{Model: m.cfg.Model, Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalAPIError("reranker", 0, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, domain.NewExternalAPIError("reranker", resp.StatusCode, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalAPIError("reranker", resp.StatusCode, string(data), nil)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(parsed.Results) != len(candidates) {
		return nil, fmt.Errorf("rerank response count mismatch: want %d, got %d", len(candidates), len(parsed.Results))
	}

	scores := make([]float64, len(candidates))
	for _, item := range parsed.Results {
		if item.Index < 0 || item.Index >= len(scores) {
			return nil, fmt.Errorf("rerank response index %d out of range", item.Index)
		}
		scores[item.Index] = item.RelevanceScore
	}
	return scores, nil
}

// snippet builds the document text sent to the model: title plus as much of
// the abstract as the snippet budget allows.
func (m *ModelScorer) snippet(article *domain.Article) string {
	text := article.Title
	if article.Abstract != "" {
		text += ". " + article.Abstract
	}
	if len(text) > m.cfg.SnippetLength {
		text = text[:m.cfg.SnippetLength]
	}
	return text
}
