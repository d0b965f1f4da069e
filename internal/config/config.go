// Package config provides configuration management for the literature
// aggregation service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/literature-aggregation-service/internal/clustering"
	"github.com/helixir/literature-aggregation-service/internal/scoring"
)

// Config holds all configuration for the literature aggregation service.
type Config struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Sources contains per-source gateway and adapter settings.
	Sources SourcesConfig `mapstructure:"sources"`
	// Scoring contains quality scoring thresholds.
	Scoring ScoringConfig `mapstructure:"scoring"`
	// Clustering contains clustering engine settings.
	Clustering ClusteringConfig `mapstructure:"clustering"`
	// Reranking contains reranker settings.
	Reranking RerankingConfig `mapstructure:"reranking"`
	// Embedding contains embedding client settings.
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	// Pipeline contains end-to-end run settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Addr is the listen address for the metrics endpoint.
	Addr string `mapstructure:"addr"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// SourcesConfig holds configuration for all literature source APIs.
type SourcesConfig struct {
	// ArXiv contains arXiv API settings.
	ArXiv SourceConfig `mapstructure:"arxiv"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex SourceConfig `mapstructure:"openalex"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar SourceConfig `mapstructure:"semantic_scholar"`
	// Crossref contains Crossref API settings.
	Crossref SourceConfig `mapstructure:"crossref"`
	// Timeout bounds a single source call within the aggregate fan-out.
	Timeout time.Duration `mapstructure:"timeout"`
	// MailTo is the contact address sent to APIs with polite pools
	// (OpenAlex, Crossref).
	MailTo string `mapstructure:"mail_to"`
}

// SourceConfig holds configuration for a single literature source API,
// including its gateway resilience settings.
type SourceConfig struct {
	// Enabled controls whether this source participates in searches.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g.
	// LITAGG_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for a single API call.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the sustained requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the token bucket capacity.
	BurstSize int `mapstructure:"burst_size"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
	// MaxRetries is the retry attempt cap for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// InitialDelay is the first retry backoff delay.
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	// MaxDelay caps the retry backoff delay.
	MaxDelay time.Duration `mapstructure:"max_delay"`
	// FailureThreshold is consecutive failures before the circuit opens.
	FailureThreshold int `mapstructure:"failure_threshold"`
	// ResetTimeout is how long an open circuit waits before a half-open
	// trial.
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// ScoringConfig holds quality scoring thresholds.
type ScoringConfig struct {
	// P1Threshold is the minimum score for tier P1.
	P1Threshold float64 `mapstructure:"p1_threshold"`
	// P2Threshold is the minimum score for tier P2.
	P2Threshold float64 `mapstructure:"p2_threshold"`
	// P3Threshold is the minimum score for tier P3.
	P3Threshold float64 `mapstructure:"p3_threshold"`
	// MinAcceptable is the score below which articles are discarded.
	MinAcceptable float64 `mapstructure:"min_acceptable"`
}

// Thresholds converts the scoring configuration into scorer thresholds.
func (c ScoringConfig) Thresholds() scoring.Thresholds {
	return scoring.Thresholds{
		P1:            c.P1Threshold,
		P2:            c.P2Threshold,
		P3:            c.P3Threshold,
		MinAcceptable: c.MinAcceptable,
	}
}

// ClusteringConfig holds clustering engine settings.
type ClusteringConfig struct {
	// Enabled turns on the clustering stage.
	Enabled bool `mapstructure:"enabled"`
	// Algorithm is kmeans or dbscan.
	Algorithm string `mapstructure:"algorithm"`
	// MaxClusters caps k for k-means.
	MaxClusters int `mapstructure:"max_clusters"`
	// MinClusterSize is the minimum surviving cluster size.
	MinClusterSize int `mapstructure:"min_cluster_size"`
	// SimilarityThreshold is the cosine similarity for semantic edges.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// Eps is the cosine distance neighborhood radius for dbscan.
	Eps float64 `mapstructure:"eps"`
	// Seed fixes the random source for reproducible k-means runs.
	Seed int64 `mapstructure:"seed"`
	// CharBudget truncates per-article embedding text.
	CharBudget int `mapstructure:"char_budget"`
	// EmbedBatchSize is how many articles are embedded per batch call.
	EmbedBatchSize int `mapstructure:"embed_batch_size"`
	// EmbedBatchPause is the pause between embedding batch launches.
	EmbedBatchPause time.Duration `mapstructure:"embed_batch_pause"`
}

// Options converts the clustering configuration into engine options.
func (c ClusteringConfig) Options() clustering.Options {
	return clustering.Options{
		Algorithm:           clustering.Algorithm(c.Algorithm),
		MaxClusters:         c.MaxClusters,
		MinClusterSize:      c.MinClusterSize,
		SimilarityThreshold: c.SimilarityThreshold,
		Eps:                 c.Eps,
		Seed:                c.Seed,
		CharBudget:          c.CharBudget,
		EmbedBatchSize:      c.EmbedBatchSize,
		EmbedBatchPause:     c.EmbedBatchPause,
	}
}

// RerankingConfig holds reranker settings.
type RerankingConfig struct {
	// ModelBaseURL is the cross-encoder rerank endpoint. Empty selects
	// the deterministic heuristic scorer.
	ModelBaseURL string `mapstructure:"model_base_url"`
	// ModelAPIKey is the rerank endpoint key (loaded from
	// LITAGG_RERANKING_MODEL_API_KEY).
	ModelAPIKey string `mapstructure:"-"`
	// Model is the rerank model name.
	Model string `mapstructure:"model"`
	// Timeout is the timeout for model calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// SnippetLength truncates per-candidate document text.
	SnippetLength int `mapstructure:"snippet_length"`
}

// EmbeddingConfig holds embedding client settings.
type EmbeddingConfig struct {
	// BaseURL is the OpenAI-compatible embeddings endpoint.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the embeddings key (loaded from LITAGG_EMBEDDING_API_KEY).
	APIKey string `mapstructure:"-"`
	// Model is the embedding model name.
	Model string `mapstructure:"model"`
	// Dimension is the vector width the model produces.
	Dimension int `mapstructure:"dimension"`
	// Timeout is the timeout for embedding calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// CacheSize is the LRU capacity for cached vectors.
	CacheSize int `mapstructure:"cache_size"`
}

// PipelineConfig holds end-to-end run settings.
type PipelineConfig struct {
	// PerSourceLimit caps how many results each source may return.
	PerSourceLimit int `mapstructure:"per_source_limit"`
	// TopK bounds the final ranked output.
	TopK int `mapstructure:"top_k"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("LITAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/literature-aggregation-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment
// variables. These fields are tagged with mapstructure:"-" to prevent
// loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Sources.ArXiv.APIKey = os.Getenv("LITAGG_SOURCES_ARXIV_API_KEY")
	cfg.Sources.OpenAlex.APIKey = os.Getenv("LITAGG_SOURCES_OPENALEX_API_KEY")
	cfg.Sources.SemanticScholar.APIKey = os.Getenv("LITAGG_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.Sources.Crossref.APIKey = os.Getenv("LITAGG_SOURCES_CROSSREF_API_KEY")

	cfg.Embedding.APIKey = os.Getenv("LITAGG_EMBEDDING_API_KEY")
	cfg.Reranking.ModelAPIKey = os.Getenv("LITAGG_RERANKING_MODEL_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9091")
	v.SetDefault("metrics.path", "/metrics")

	// Source defaults - arXiv
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("sources.arxiv.burst_size", 3)
	v.SetDefault("sources.arxiv.max_results", 100)

	// Source defaults - OpenAlex
	v.SetDefault("sources.openalex.enabled", true)
	v.SetDefault("sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("sources.openalex.timeout", "30s")
	v.SetDefault("sources.openalex.rate_limit", 10.0)
	v.SetDefault("sources.openalex.burst_size", 10)
	v.SetDefault("sources.openalex.max_results", 200)

	// Source defaults - Semantic Scholar
	v.SetDefault("sources.semantic_scholar.enabled", true)
	v.SetDefault("sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("sources.semantic_scholar.timeout", "30s")
	v.SetDefault("sources.semantic_scholar.rate_limit", 1.0) // 1 req/sec without API key
	v.SetDefault("sources.semantic_scholar.burst_size", 1)
	v.SetDefault("sources.semantic_scholar.max_results", 100)

	// Source defaults - Crossref
	v.SetDefault("sources.crossref.enabled", true)
	v.SetDefault("sources.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("sources.crossref.timeout", "30s")
	v.SetDefault("sources.crossref.rate_limit", 5.0)
	v.SetDefault("sources.crossref.burst_size", 5)
	v.SetDefault("sources.crossref.max_results", 100)

	// Gateway resilience defaults shared by every source
	for _, source := range []string{"arxiv", "openalex", "semantic_scholar", "crossref"} {
		v.SetDefault("sources."+source+".max_retries", 3)
		v.SetDefault("sources."+source+".initial_delay", "1s")
		v.SetDefault("sources."+source+".max_delay", "30s")
		v.SetDefault("sources."+source+".failure_threshold", 5)
		v.SetDefault("sources."+source+".reset_timeout", "60s")
	}

	v.SetDefault("sources.timeout", "30s")
	v.SetDefault("sources.mail_to", "")

	// Scoring defaults
	v.SetDefault("scoring.p1_threshold", 75.0)
	v.SetDefault("scoring.p2_threshold", 50.0)
	v.SetDefault("scoring.p3_threshold", 30.0)
	v.SetDefault("scoring.min_acceptable", 20.0)

	// Clustering defaults
	v.SetDefault("clustering.enabled", false)
	v.SetDefault("clustering.algorithm", "kmeans")
	v.SetDefault("clustering.max_clusters", 10)
	v.SetDefault("clustering.min_cluster_size", 2)
	v.SetDefault("clustering.similarity_threshold", 0.7)
	v.SetDefault("clustering.eps", 0.3)
	v.SetDefault("clustering.seed", 0)
	v.SetDefault("clustering.char_budget", 8000)
	v.SetDefault("clustering.embed_batch_size", 10)
	v.SetDefault("clustering.embed_batch_pause", "200ms")

	// Reranking defaults (empty model base URL selects the heuristic)
	v.SetDefault("reranking.model_base_url", "")
	v.SetDefault("reranking.model", "")
	v.SetDefault("reranking.timeout", "30s")
	v.SetDefault("reranking.snippet_length", 512)

	// Embedding defaults
	v.SetDefault("embedding.base_url", "https://api.openai.com")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.timeout", "60s")
	v.SetDefault("embedding.cache_size", 4096)

	// Pipeline defaults
	v.SetDefault("pipeline.per_source_limit", 50)
	v.SetDefault("pipeline.top_k", 25)
}

// Validate validates the configuration. Threshold-ordering violations are
// fatal here, never silently corrected.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if err := c.Scoring.Thresholds().Validate(); err != nil {
		return err
	}

	switch c.Clustering.Algorithm {
	case string(clustering.AlgorithmKMeans), string(clustering.AlgorithmDBSCAN):
	default:
		return fmt.Errorf("invalid clustering algorithm: %s", c.Clustering.Algorithm)
	}
	if c.Clustering.MinClusterSize < 1 {
		return fmt.Errorf("clustering min_cluster_size must be positive")
	}
	if c.Clustering.Eps <= 0 || c.Clustering.Eps >= 1 {
		return fmt.Errorf("clustering eps must be in (0,1)")
	}
	if c.Clustering.SimilarityThreshold <= 0 || c.Clustering.SimilarityThreshold > 1 {
		return fmt.Errorf("clustering similarity_threshold must be in (0,1]")
	}

	for name, source := range map[string]SourceConfig{
		"arxiv":            c.Sources.ArXiv,
		"openalex":         c.Sources.OpenAlex,
		"semantic_scholar": c.Sources.SemanticScholar,
		"crossref":         c.Sources.Crossref,
	} {
		if !source.Enabled {
			continue
		}
		if source.BaseURL == "" {
			return fmt.Errorf("source %s: base_url is required", name)
		}
		if source.RateLimit <= 0 {
			return fmt.Errorf("source %s: rate_limit must be positive", name)
		}
		if source.FailureThreshold < 1 {
			return fmt.Errorf("source %s: failure_threshold must be positive", name)
		}
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if c.Pipeline.TopK < 1 {
		return fmt.Errorf("pipeline top_k must be positive")
	}

	return nil
}
