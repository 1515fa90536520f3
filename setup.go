package cirro

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nimbium/cirro/pkg/alert"
	"github.com/nimbium/cirro/pkg/catalog"
	"github.com/nimbium/cirro/pkg/config"
	"github.com/nimbium/cirro/pkg/embedder"
	"github.com/nimbium/cirro/pkg/judge"
	"github.com/nimbium/cirro/pkg/logger"
	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/rerank"
	"github.com/nimbium/cirro/pkg/retrieval"
	"github.com/nimbium/cirro/pkg/scoring"
	"github.com/nimbium/cirro/pkg/telemetry"
)

// NewPipelineLogger builds the process logger: colored text or JSON to
// stderr per the log config, wrapped with the Parquet and SQL telemetry
// sinks when those are configured. Telemetry trouble degrades to the
// plain logger with a warning rather than failing startup.
func NewPipelineLogger(logCfg config.LogConfig, telCfg config.TelemetryConfig) *slog.Logger {
	level := logger.ParseLevel(logCfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if logCfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = logger.NewColorHandler(os.Stderr, opts)
	}

	if telCfg.ParquetPath != "" {
		if err := os.MkdirAll(telCfg.ParquetPath, 0o755); err != nil {
			slog.New(handler).Warn("failed to create telemetry directory", "path", telCfg.ParquetPath, "error", err)
		} else if ph, err := telemetry.NewParquetHandler(handler, telCfg.ParquetPath); err != nil {
			slog.New(handler).Warn("failed to enable parquet log sink", "error", err)
		} else {
			handler = ph
		}
	}
	if telCfg.SQLDSN != "" {
		if sh, err := telemetry.NewSQLHandlerFromDSN(handler, telCfg.SQLDSN); err != nil {
			slog.New(handler).Warn("failed to enable sql log sink", "error", err)
		} else {
			handler = sh
		}
	}
	return slog.New(handler)
}

// BuildNLPClient assembles the language model stack from config: one
// base client per configured model, each wrapped with retries and,
// when enabled, a circuit breaker; a usage router across them when
// there is more than one; token tracking outermost. Models without an
// API key or base URL are skipped, and with nothing left the result is
// nil, meaning keyword parsing and no summaries.
func BuildNLPClient(cfg *config.Config, alerter alert.Alerter, logger *slog.Logger) (nlp.Client, error) {
	if alerter == nil {
		alerter = &alert.NoOpAlerter{}
	}

	providers := make(map[string]nlp.Client, len(cfg.NLP.Models))
	for name, mc := range cfg.NLP.Models {
		if mc.APIKey == "" && mc.BaseURL == "" {
			logger.Debug("skipping model with no API key or base URL", "model", name)
			continue
		}
		base, err := buildModelClient(mc)
		if err != nil {
			return nil, fmt.Errorf("failed to build %q model client: %w", name, err)
		}
		var client nlp.Client = nlp.NewRetryClient(base, nlp.DefaultRetryConfig(), logger)
		if cfg.CircuitBreaker.Enabled {
			client = nlp.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, logger, name)
		}
		providers[name] = client
	}
	if len(providers) == 0 {
		return nil, nil
	}

	var client nlp.Client
	if len(providers) == 1 {
		for _, only := range providers {
			client = only
		}
	} else {
		routed, err := nlp.NewRouterClient(providers, cfg.NLP.RouterRules, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build model router: %w", err)
		}
		client = routed
	}

	if cfg.Telemetry.TokenPath != "" {
		if err := os.MkdirAll(cfg.Telemetry.TokenPath, 0o755); err != nil {
			logger.Warn("failed to create token tracking directory", "path", cfg.Telemetry.TokenPath, "error", err)
		} else if tracker, err := nlp.NewTokenTracker(cfg.Telemetry.TokenPath, logger); err != nil {
			logger.Warn("failed to initialize token tracker", "error", err)
		} else {
			client = nlp.NewTokenTrackingClient(client, tracker)
			logger.Info("token tracking enabled", "path", cfg.Telemetry.TokenPath)
		}
	}
	return client, nil
}

func buildModelClient(mc config.NLPModelConfig) (nlp.Client, error) {
	llmCfg := nlp.NewLLMConfig().
		WithAPIKey(mc.APIKey).
		WithModel(mc.Model).
		WithTemperature(mc.Temperature)
	if mc.BaseURL != "" {
		llmCfg = llmCfg.WithBaseURL(mc.BaseURL)
	}
	if mc.MaxTokens > 0 {
		llmCfg = llmCfg.WithMaxTokens(mc.MaxTokens)
	}

	switch mc.Provider {
	case "openai", "openai_compatible":
		return nlp.NewOpenAIClient(llmCfg)
	case "anthropic":
		return nlp.NewAnthropicClient(llmCfg), nil
	case "gemini", "google":
		return nlp.NewGeminiClient(llmCfg), nil
	case "azure":
		return nlp.NewAzureOpenAIClient(&nlp.AzureOpenAIConfig{LLMConfig: llmCfg}), nil
	default:
		return nil, fmt.Errorf("unsupported NLP provider: %s", mc.Provider)
	}
}

// BuildEmbedder creates the embedding client from config, or nil when
// embedding is unconfigured or missing its API key. A nil embedder
// runs the pipeline sparse-only.
func BuildEmbedder(cfg *config.Config, logger *slog.Logger) (embedder.Client, error) {
	ec := cfg.Embedding
	if ec.Provider == "" {
		return nil, nil
	}
	if ec.Provider == string(embedder.ProviderOpenAI) && ec.APIKey == "" && ec.BaseURL == "" {
		logger.Warn("embedding provider configured without an API key, dense retrieval disabled")
		return nil, nil
	}
	client, err := embedder.NewClient(embedder.Provider(ec.Provider), ec.APIKey, embedder.Config{
		Model:      ec.Model,
		BaseURL:    ec.BaseURL,
		Dimensions: ec.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build embedder: %w", err)
	}
	return client, nil
}

// BuildJudge creates the pairwise comparison oracle from config: an
// LLM judge with the configured per-call timeout, rate limited when a
// requests-per-second cap is set. Nil when reranking is disabled or no
// model client exists; the pipeline then passes fused order through.
func BuildJudge(cfg *config.Config, nlpClient nlp.Client, logger *slog.Logger) rerank.Oracle {
	rc := cfg.Pipeline.Rerank
	if !rc.Enabled || nlpClient == nil {
		return nil
	}
	var oracle rerank.Oracle = judge.NewLLMJudge(nlpClient, judge.Config{
		Timeout: time.Duration(rc.TimeoutSeconds) * time.Second,
	}, logger)
	if rc.RequestsPerSecond > 0 {
		oracle = judge.NewRateLimited(oracle, rc.RequestsPerSecond)
	}
	return oracle
}

// ConfigFromFile maps the file configuration onto pipeline knobs.
func ConfigFromFile(cfg *config.Config) *Config {
	return &Config{
		FusionKRRF:          cfg.Pipeline.Fusion.RankConstant,
		FusionTopK:          cfg.Pipeline.Fusion.TopK,
		MaxRerankCandidates: cfg.Pipeline.Rerank.MaxCandidates,
		KPasses:             cfg.Pipeline.Rerank.Passes,
		TopKResults:         cfg.Pipeline.Scoring.TopK,
		ScoringWeights: scoring.Weights{
			Relevance:      cfg.Pipeline.Scoring.RelevanceWeight,
			CostEfficiency: cfg.Pipeline.Scoring.CostEfficiencyWeight,
			CapacityMatch:  cfg.Pipeline.Scoring.CapacityMatchWeight,
			FeatureMatch:   cfg.Pipeline.Scoring.FeatureMatchWeight,
		},
		DiversityBoost: cfg.Pipeline.Scoring.DiversityBoost,
		Retrieval: retrieval.Config{
			DenseTopK:  cfg.Retrieval.DenseTopK,
			SparseTopK: cfg.Retrieval.SparseTopK,
			K1:         cfg.Retrieval.BM25K1,
			B:          cfg.Retrieval.BM25B,
			MinScore:   cfg.Retrieval.MinScore,
		},
	}
}

// NewClientFromConfig assembles a ready client from file configuration:
// catalog store, model stack, embedder, and judge. Collaborators built
// here are owned by the client and released by Close.
func NewClientFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if err := cfg.Retrieval.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}

	store, err := catalog.Open(catalog.Config{
		Path:     cfg.Catalog.Path,
		InMemory: cfg.Catalog.InMemory,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	var alerter alert.Alerter = &alert.NoOpAlerter{}
	if cfg.Alert.Enabled {
		alerter = alert.NewEmailAlerter(cfg.Alert)
	}

	nlpClient, err := BuildNLPClient(cfg, alerter, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	embedderClient, err := BuildEmbedder(cfg, logger)
	if err != nil {
		if nlpClient != nil {
			nlpClient.Close()
		}
		store.Close()
		return nil, err
	}

	client, err := NewClient(Dependencies{
		Judge:    BuildJudge(cfg, nlpClient, logger),
		Store:    store,
		Embedder: embedderClient,
		NLP:      nlpClient,
	}, ConfigFromFile(cfg), logger)
	if err != nil {
		if embedderClient != nil {
			embedderClient.Close()
		}
		if nlpClient != nil {
			nlpClient.Close()
		}
		store.Close()
		return nil, err
	}

	if nlpClient != nil {
		client.own(nlpClient.Close)
	}
	if embedderClient != nil {
		client.own(embedderClient.Close)
	}
	return client, nil
}
