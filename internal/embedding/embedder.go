// Package embedding provides text embedding clients for the clustering
// stage: a remote OpenAI-compatible HTTP client and an LRU caching wrapper.
package embedding

import "context"

// Embedder converts text into dense vectors.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the vector width produced by this embedder.
	Dimension() int
}
