// Package main provides the entry point for one-shot literature
// aggregation runs: it searches the configured sources, scores and
// optionally clusters the results, and prints the ranked output as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-aggregation-service/internal/aggregator"
	"github.com/helixir/literature-aggregation-service/internal/clustering"
	"github.com/helixir/literature-aggregation-service/internal/config"
	"github.com/helixir/literature-aggregation-service/internal/domain"
	"github.com/helixir/literature-aggregation-service/internal/embedding"
	"github.com/helixir/literature-aggregation-service/internal/observability"
	"github.com/helixir/literature-aggregation-service/internal/pipeline"
	"github.com/helixir/literature-aggregation-service/internal/reranking"
	"github.com/helixir/literature-aggregation-service/internal/scoring"
	"github.com/helixir/literature-aggregation-service/internal/sources"
	"github.com/helixir/literature-aggregation-service/internal/sources/arxiv"
	"github.com/helixir/literature-aggregation-service/internal/sources/crossref"
	"github.com/helixir/literature-aggregation-service/internal/sources/openalex"
	"github.com/helixir/literature-aggregation-service/internal/sources/semanticscholar"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		query           = flag.String("query", "", "search query (required)")
		sourceList      = flag.String("sources", "", "comma-separated source types (default: all enabled)")
		yearFrom        = flag.Int("year-from", 0, "earliest publication year")
		yearTo          = flag.Int("year-to", 0, "latest publication year")
		minCitations    = flag.Int("min-citations", 0, "minimum citation count")
		openAccessOnly  = flag.Bool("open-access", false, "restrict to open access articles")
		includePreprint = flag.Bool("include-preprints", true, "include preprint articles")
		topK            = flag.Int("top-k", 0, "ranked output size (default from config)")
		cluster         = flag.Bool("cluster", false, "enable the clustering stage")
	)
	flag.Parse()

	if *query == "" {
		flag.Usage()
		return errors.New("query is required")
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "aggregator-cli").Logger()
	logger.Info().Msg("literature-aggregation-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("litagg")
	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics, logger)
	}

	registry := buildRegistry(cfg)

	agg := aggregator.New(registry, logger, metrics, cfg.Sources.Timeout)

	scorer, err := scoring.New(scoring.Config{Thresholds: cfg.Scoring.Thresholds()}, logger, metrics)
	if err != nil {
		return err
	}

	var clusterer *clustering.Engine
	if *cluster || cfg.Clustering.Enabled {
		embedClient, err := embedding.NewClient(embedding.Config{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
		if err != nil {
			return fmt.Errorf("create embedding client: %w", err)
		}
		cached, err := embedding.NewCachingEmbedder(embedClient, cfg.Embedding.CacheSize, metrics)
		if err != nil {
			return err
		}
		clusterer = clustering.NewEngine(cached, logger, metrics)
	}

	reranker := reranking.New(buildRelevanceScorer(cfg, logger), logger, metrics)

	p := pipeline.New(agg, scorer, clusterer, reranker, logger)

	output := p.Run(ctx, *query, pipeline.Options{
		Filters: aggregator.Filters{
			YearFrom:         *yearFrom,
			YearTo:           *yearTo,
			MinCitations:     *minCitations,
			OpenAccessOnly:   *openAccessOnly,
			IncludePreprints: *includePreprint,
		},
		Sources:          parseSourceTypes(*sourceList),
		PerSourceLimit:   cfg.Pipeline.PerSourceLimit,
		EnableClustering: *cluster || cfg.Clustering.Enabled,
		ClusterOptions:   cfg.Clustering.Options(),
		TopK:             pickTopK(*topK, cfg.Pipeline.TopK),
	})

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// buildRegistry constructs and registers every enabled source adapter with
// its gateway resilience settings.
func buildRegistry(cfg *config.Config) *sources.Registry {
	registry := sources.NewRegistry()

	if cfg.Sources.ArXiv.Enabled {
		registry.Register(arxiv.New(arxiv.Config{
			BaseURL:    cfg.Sources.ArXiv.BaseURL,
			Gateway:    gatewayConfig(domain.SourceTypeArXiv, cfg.Sources.ArXiv),
			MaxResults: cfg.Sources.ArXiv.MaxResults,
			Enabled:    true,
		}))
	}
	if cfg.Sources.OpenAlex.Enabled {
		registry.Register(openalex.New(openalex.Config{
			BaseURL:    cfg.Sources.OpenAlex.BaseURL,
			Gateway:    gatewayConfig(domain.SourceTypeOpenAlex, cfg.Sources.OpenAlex),
			MaxResults: cfg.Sources.OpenAlex.MaxResults,
			MailTo:     cfg.Sources.MailTo,
			Enabled:    true,
		}))
	}
	if cfg.Sources.SemanticScholar.Enabled {
		registry.Register(semanticscholar.New(semanticscholar.Config{
			BaseURL:    cfg.Sources.SemanticScholar.BaseURL,
			Gateway:    gatewayConfig(domain.SourceTypeSemanticScholar, cfg.Sources.SemanticScholar),
			MaxResults: cfg.Sources.SemanticScholar.MaxResults,
			Enabled:    true,
		}))
	}
	if cfg.Sources.Crossref.Enabled {
		registry.Register(crossref.New(crossref.Config{
			BaseURL:    cfg.Sources.Crossref.BaseURL,
			Gateway:    gatewayConfig(domain.SourceTypeCrossref, cfg.Sources.Crossref),
			MaxResults: cfg.Sources.Crossref.MaxResults,
			MailTo:     cfg.Sources.MailTo,
			Enabled:    true,
		}))
	}

	return registry
}

// gatewayConfig maps one source's configuration onto its gateway settings.
func gatewayConfig(source domain.SourceType, src config.SourceConfig) sources.GatewayConfig {
	return sources.GatewayConfig{
		Source:           string(source),
		Timeout:          src.Timeout,
		RateLimit:        src.RateLimit,
		BurstSize:        src.BurstSize,
		MaxRetries:       src.MaxRetries,
		InitialDelay:     src.InitialDelay,
		MaxDelay:         src.MaxDelay,
		FailureThreshold: src.FailureThreshold,
		ResetTimeout:     src.ResetTimeout,
		APIKey:           src.APIKey,
	}
}

// buildRelevanceScorer selects the cross-encoder model when configured,
// otherwise the deterministic heuristic.
func buildRelevanceScorer(cfg *config.Config, logger zerolog.Logger) reranking.RelevanceScorer {
	if cfg.Reranking.ModelBaseURL == "" {
		return reranking.NewHeuristicScorer()
	}
	scorer, err := reranking.NewModelScorer(reranking.ModelConfig{
		BaseURL:       cfg.Reranking.ModelBaseURL,
		APIKey:        cfg.Reranking.ModelAPIKey,
		Model:         cfg.Reranking.Model,
		Timeout:       cfg.Reranking.Timeout,
		SnippetLength: cfg.Reranking.SnippetLength,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("model scorer unavailable, using heuristic")
		return reranking.NewHeuristicScorer()
	}
	return scorer
}

// startMetricsServer exposes Prometheus metrics in the background for the
// duration of the run.
func startMetricsServer(cfg config.MetricsConfig, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("metrics server stopped")
		}
	}()
}

func parseSourceTypes(list string) []domain.SourceType {
	if list == "" {
		return nil
	}
	var types []domain.SourceType
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, domain.SourceType(part))
		}
	}
	return types
}

func pickTopK(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}
