// Command mcp-server exposes the recommendation pipeline over the Model
// Context Protocol so agent frontends can call it as a set of tools.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/firebase/genkit/go/genkit"
	"github.com/nimbium/cirro"
	"github.com/nimbium/cirro/pkg/catalog"
	"github.com/nimbium/cirro/pkg/embedder"
	"github.com/nimbium/cirro/pkg/judge"
	cirroLogger "github.com/nimbium/cirro/pkg/logger"
	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/rerank"
)

const (
	DefaultModel             = "gpt-4o-mini"
	DefaultEmbeddingProvider = "embedeverything"
	DefaultEmbeddingModel    = "all-MiniLM-L6-v2"
	DefaultCatalogPath       = "./cirro_catalog"
)

// Config holds the server settings, populated from environment variables
// and refined by command line flags.
type Config struct {
	Model             string
	Temperature       float64
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	EmbeddingProvider string
	EmbeddingModel    string

	CatalogPath     string
	CatalogInMemory bool

	RerankEnabled bool
	TopK          int
	Transport     string
	Host          string
	Port          int
}

// MCPServer wraps the recommendation client for MCP operations.
type MCPServer struct {
	cfg    *Config
	client *cirro.Client
	logger *slog.Logger
}

func configFromEnv() *Config {
	return &Config{
		Model:             envStr("MODEL_NAME", DefaultModel),
		Temperature:       envFloat("LLM_TEMPERATURE", 0.0),
		OpenAIAPIKey:      envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     envStr("OPENAI_BASE_URL", ""),
		EmbeddingProvider: envStr("EMBEDDING_PROVIDER", DefaultEmbeddingProvider),
		EmbeddingModel:    envStr("EMBEDDING_MODEL_NAME", DefaultEmbeddingModel),
		CatalogPath:       envStr("CATALOG_PATH", DefaultCatalogPath),
		CatalogInMemory:   envBool("CATALOG_IN_MEMORY", false),
		RerankEnabled:     envBool("RERANK_ENABLED", true),
		TopK:              envInt("TOP_K", 0),
		Transport:         envStr("MCP_TRANSPORT", "stdio"),
		Host:              envStr("MCP_HOST", "localhost"),
		Port:              envInt("MCP_PORT", 3000),
	}
}

// Unset or unparseable variables fall back to the given default.

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

// NewMCPServer opens the catalog and wires up the pipeline client with
// whatever model credentials the config carries. Without credentials the
// server still runs, in keyword-only mode.
func NewMCPServer(cfg *Config) (*MCPServer, error) {
	logger := slog.New(cirroLogger.NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := catalog.Open(catalog.Config{Path: cfg.CatalogPath, InMemory: cfg.CatalogInMemory}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	var nlpClient nlp.Client
	if cfg.OpenAIAPIKey != "" || cfg.OpenAIBaseURL != "" {
		mc := nlp.NewLLMConfig().
			WithAPIKey(cfg.OpenAIAPIKey).
			WithModel(cfg.Model).
			WithTemperature(float32(cfg.Temperature))
		if cfg.OpenAIBaseURL != "" {
			mc = mc.WithBaseURL(cfg.OpenAIBaseURL)
		}
		base, err := nlp.NewOpenAIClient(mc)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
		nlpClient = nlp.NewRetryClient(base, nlp.DefaultRetryConfig(), logger)
	}

	var emb embedder.Client
	if cfg.EmbeddingProvider == string(embedder.ProviderOpenAI) && cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		logger.Warn("openai embedding configured without an api key, dense retrieval disabled")
	} else if cfg.EmbeddingProvider != "" {
		emb, err = embedder.NewClient(
			embedder.Provider(cfg.EmbeddingProvider),
			cfg.OpenAIAPIKey,
			embedder.Config{Model: cfg.EmbeddingModel, BaseURL: cfg.OpenAIBaseURL},
		)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	var oracle rerank.Oracle
	if cfg.RerankEnabled && nlpClient != nil {
		oracle = judge.NewLLMJudge(nlpClient, judge.Config{}, logger)
	}

	pc := cirro.DefaultConfig()
	if cfg.TopK > 0 {
		pc.TopKResults = cfg.TopK
	}

	client, err := cirro.NewClient(cirro.Dependencies{
		Judge:    oracle,
		Store:    store,
		Embedder: emb,
		NLP:      nlpClient,
	}, pc, logger)
	if err != nil {
		if emb != nil {
			emb.Close()
		}
		if nlpClient != nil {
			nlpClient.Close()
		}
		store.Close()
		return nil, fmt.Errorf("failed to create pipeline client: %w", err)
	}

	return &MCPServer{cfg: cfg, client: client, logger: logger}, nil
}

// registerTools wires the pipeline operations up as Genkit tools.
func (s *MCPServer) registerTools(g *genkit.Genkit) {
	genkit.DefineTool(g, "recommend_services",
		"Recommend cloud services for a free-text query. Runs hybrid retrieval, rank fusion, pairwise reranking, and multi-dimension scoring over the service catalog.",
		s.RecommendServicesTool)
	genkit.DefineTool(g, "parse_requirements",
		"Extract structured requirements (budget, capacity, features, provider preferences) from a free-text query without running the pipeline.",
		s.ParseRequirementsTool)
	genkit.DefineTool(g, "get_service",
		"Get one service record from the catalog by its ID.",
		s.GetServiceTool)
	genkit.DefineTool(g, "catalog_stats",
		"Summarize the service catalog by provider and category.",
		s.CatalogStatsTool)
}

// Run builds the retrieval index, registers the tools with Genkit and
// serves until the context is canceled.
func (s *MCPServer) Run(ctx context.Context) error {
	if err := s.client.RefreshIndex(ctx); err != nil {
		return fmt.Errorf("failed to build retrieval index: %w", err)
	}
	stats, err := s.client.CatalogStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog stats: %w", err)
	}

	g := genkit.Init(ctx)
	s.registerTools(g)

	s.logger.Info("mcp server ready",
		"transport", s.cfg.Transport,
		"model", s.cfg.Model,
		"services", stats.Total,
		"embedded", stats.Embedded,
		"rerank", s.client.GetJudge() != nil,
		"dense_retrieval", s.client.GetEmbedder() != nil,
	)

	<-ctx.Done()
	return ctx.Err()
}

func main() {
	cfg := configFromEnv()

	noRerank := flag.Bool("no-rerank", false, "disable the pairwise rerank stage")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport to serve on (stdio or sse)")
	flag.StringVar(&cfg.Model, "model", cfg.Model, "model for query parsing and reranking")
	flag.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "sampling temperature")
	flag.StringVar(&cfg.CatalogPath, "catalog-path", cfg.CatalogPath, "service catalog directory")
	flag.BoolVar(&cfg.CatalogInMemory, "in-memory", cfg.CatalogInMemory, "keep the catalog in memory instead of on disk")
	flag.IntVar(&cfg.TopK, "top-k", cfg.TopK, "recommendations per query")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "host to bind the sse transport to")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "port to bind the sse transport to")
	flag.Parse()
	if *noRerank {
		cfg.RerankEnabled = false
	}

	if cfg.CatalogPath == "" && !cfg.CatalogInMemory {
		log.Fatal("catalog path must be set")
	}
	if cfg.RerankEnabled && cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		log.Println("no model credentials set; reranking and query parsing fall back to keyword mode")
	}

	srv, err := NewMCPServer(cfg)
	if err != nil {
		log.Fatalf("failed to start mcp server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("mcp server: %v", err)
	}
}
