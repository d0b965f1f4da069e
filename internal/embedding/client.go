package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultDimension = 1536
)

// Config holds settings for the OpenAI-compatible embeddings endpoint.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Dimension == 0 {
		c.Dimension = defaultDimension
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Client calls an OpenAI-compatible /v1/embeddings endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a remote embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding: base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding: model is required")
	}
	cfg.applyDefaults()

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Dimension reports the configured vector width.
func (c *Client) Dimension() int {
	return c.cfg.Dimension
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := c.cfg.BaseURL + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalAPIError("embedding", 0, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, domain.NewExternalAPIError("embedding", resp.StatusCode, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalAPIError("embedding", resp.StatusCode, string(data), nil)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, domain.NewExternalAPIError("embedding", resp.StatusCode, parsed.Error.Message, nil)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response count mismatch: want %d, got %d", len(texts), len(parsed.Data))
	}

	// The API may return vectors out of order; the index field is
	// authoritative.
	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("embedding response item %d is empty", i)
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
