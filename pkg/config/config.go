package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	NLP       NLPConfig       `mapstructure:"nlp"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
	Alert          AlertConfig          `mapstructure:"alert"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled bool `mapstructure:"enabled"`

	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	From string   `mapstructure:"from"`
	To   []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	MaxRequests uint32 `mapstructure:"max_requests"`
	// Interval and Timeout are in seconds.
	Interval int `mapstructure:"interval"`
	Timeout  int `mapstructure:"timeout"`

	// TripRatio is the failure ratio that opens the breaker.
	TripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration. SQLDSN, when set, enables
// the MySQL-compatible log sink alongside the Parquet one.
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	TokenPath   string `mapstructure:"token_path"`
	SQLDSN      string `mapstructure:"sql_dsn"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin run mode (debug, release, test)
}

// CatalogConfig holds service catalog storage configuration
type CatalogConfig struct {
	// Path is the Badger database directory
	Path string `mapstructure:"path"`
	// InMemory runs the store without persistence (tests, ephemeral runs)
	InMemory bool `mapstructure:"in_memory"`
}

// PipelineConfig holds the recommendation pipeline knobs
type PipelineConfig struct {
	Fusion  FusionConfig  `mapstructure:"fusion"`
	Rerank  RerankConfig  `mapstructure:"rerank"`
	Scoring ScoringConfig `mapstructure:"scoring"`
}

// FusionConfig holds reciprocal rank fusion parameters
type FusionConfig struct {
	RankConstant int `mapstructure:"rank_constant"`
	TopK         int `mapstructure:"top_k"`
}

// RerankConfig holds pairwise reranking parameters
type RerankConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Passes  int  `mapstructure:"passes"`
	// MaxCandidates caps how many fused candidates enter the pairwise
	// sweep, bounding oracle spend per query.
	MaxCandidates int `mapstructure:"max_candidates"`
	// RequestsPerSecond rate-limits comparison calls to the LLM.
	// Zero means no limit.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// TimeoutSeconds bounds each comparison call. Zero means no
	// per-call timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ScoringConfig holds multi-dimensional scoring parameters
type ScoringConfig struct {
	RelevanceWeight      float64 `mapstructure:"relevance_weight"`
	CostEfficiencyWeight float64 `mapstructure:"cost_efficiency_weight"`
	CapacityMatchWeight  float64 `mapstructure:"capacity_match_weight"`
	FeatureMatchWeight   float64 `mapstructure:"feature_match_weight"`
	DiversityBoost       float64 `mapstructure:"diversity_boost"`
	TopK                 int     `mapstructure:"top_k"`
}

// RetrievalConfig holds candidate retrieval parameters
type RetrievalConfig struct {
	DenseTopK  int     `mapstructure:"dense_top_k"`
	SparseTopK int     `mapstructure:"sparse_top_k"`
	BM25K1     float64 `mapstructure:"bm25_k1"`
	BM25B      float64 `mapstructure:"bm25_b"`
	// MinScore drops sparse hits scoring below this threshold
	MinScore float64 `mapstructure:"min_score"`
}

// NLPConfig holds NLP configuration
type NLPConfig struct {
	// Models is a map of model configurations (e.g. "default", "rerank", "embedding")
	Models map[string]NLPModelConfig `mapstructure:"models"`

	// RouterRules defines how to route requests
	RouterRules []RouterRule `mapstructure:"router_rules"`
}

// NLPModelConfig holds configuration for a specific model
type NLPModelConfig struct {
	Provider string `mapstructure:"provider"` // openai, anthropic, google, azure, openai_compatible
	Model    string `mapstructure:"model"`

	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`

	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RouterRule routes one usage class to a provider.
type RouterRule struct {
	Usage    string `mapstructure:"usage"`    // usage class to match, e.g. "rerank"
	Provider string `mapstructure:"provider"` // provider key in NLP.Models
	Fallback string `mapstructure:"fallback"` // optional provider tried on failure
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // embedeverything, openai
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"` // overrides the model's known width
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	overrideWithEnv(cfg)
	return cfg, nil
}

// weightTolerance bounds the allowed drift when scoring weights are summed.
const weightTolerance = 1e-6

// Validate checks the pipeline parameters that would otherwise surface as
// broken rankings at request time. Callers treat a failure here as fatal.
func (c *PipelineConfig) Validate() error {
	if c.Fusion.RankConstant < 0 {
		return fmt.Errorf("fusion rank_constant must not be negative, got %d", c.Fusion.RankConstant)
	}
	if c.Fusion.TopK <= 0 {
		return fmt.Errorf("fusion top_k must be positive, got %d", c.Fusion.TopK)
	}
	if c.Rerank.Passes <= 0 {
		return fmt.Errorf("rerank passes must be positive, got %d", c.Rerank.Passes)
	}
	if c.Rerank.MaxCandidates <= 0 {
		return fmt.Errorf("rerank max_candidates must be positive, got %d", c.Rerank.MaxCandidates)
	}
	if c.Rerank.RequestsPerSecond < 0 {
		return fmt.Errorf("rerank requests_per_second must not be negative, got %g", c.Rerank.RequestsPerSecond)
	}
	if c.Rerank.TimeoutSeconds < 0 {
		return fmt.Errorf("rerank timeout_seconds must not be negative, got %d", c.Rerank.TimeoutSeconds)
	}
	if c.Scoring.TopK <= 0 {
		return fmt.Errorf("scoring top_k must be positive, got %d", c.Scoring.TopK)
	}
	if c.Scoring.DiversityBoost < 0 {
		return fmt.Errorf("scoring diversity_boost must not be negative, got %g", c.Scoring.DiversityBoost)
	}

	weights := []float64{
		c.Scoring.RelevanceWeight,
		c.Scoring.CostEfficiencyWeight,
		c.Scoring.CapacityMatchWeight,
		c.Scoring.FeatureMatchWeight,
	}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("scoring weights must not be negative, got %g", w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("scoring weights must sum to 1.0, got %g", sum)
	}

	return nil
}

// Validate checks retrieval parameters.
func (c *RetrievalConfig) Validate() error {
	if c.DenseTopK <= 0 {
		return fmt.Errorf("retrieval dense_top_k must be positive, got %d", c.DenseTopK)
	}
	if c.SparseTopK <= 0 {
		return fmt.Errorf("retrieval sparse_top_k must be positive, got %d", c.SparseTopK)
	}
	if c.BM25K1 < 0 {
		return fmt.Errorf("retrieval bm25_k1 must not be negative, got %g", c.BM25K1)
	}
	if c.BM25B < 0 || c.BM25B > 1 {
		return fmt.Errorf("retrieval bm25_b must be in [0, 1], got %g", c.BM25B)
	}
	if c.MinScore < 0 {
		return fmt.Errorf("retrieval min_score must not be negative, got %g", c.MinScore)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("catalog.path", "./cirro_catalog")
	viper.SetDefault("catalog.in_memory", false)

	viper.SetDefault("pipeline.fusion.rank_constant", 60)
	viper.SetDefault("pipeline.fusion.top_k", 25)
	viper.SetDefault("pipeline.rerank.enabled", true)
	viper.SetDefault("pipeline.rerank.passes", 3)
	viper.SetDefault("pipeline.rerank.max_candidates", 20)
	viper.SetDefault("pipeline.rerank.requests_per_second", 0)
	viper.SetDefault("pipeline.rerank.timeout_seconds", 30)
	viper.SetDefault("pipeline.scoring.relevance_weight", 0.5)
	viper.SetDefault("pipeline.scoring.cost_efficiency_weight", 0.2)
	viper.SetDefault("pipeline.scoring.capacity_match_weight", 0.2)
	viper.SetDefault("pipeline.scoring.feature_match_weight", 0.1)
	viper.SetDefault("pipeline.scoring.diversity_boost", 0.05)
	viper.SetDefault("pipeline.scoring.top_k", 5)

	viper.SetDefault("retrieval.dense_top_k", 30)
	viper.SetDefault("retrieval.sparse_top_k", 30)
	viper.SetDefault("retrieval.bm25_k1", 1.5)
	viper.SetDefault("retrieval.bm25_b", 0.75)
	viper.SetDefault("retrieval.min_score", 0.3)

	viper.SetDefault("nlp.models.default.provider", "openai")
	viper.SetDefault("nlp.models.default.model", "gpt-4o-mini")
	viper.SetDefault("nlp.models.default.temperature", 0.0)
	viper.SetDefault("nlp.models.default.max_tokens", 8192)

	viper.SetDefault("embedding.provider", "embedeverything")
	viper.SetDefault("embedding.model", "sentence-transformers/all-MiniLM-L6-v2")

	if home, err := os.UserHomeDir(); err == nil {
		viper.SetDefault("telemetry.parquet_path", filepath.Join(home, ".cirro", "telemetry"))
		viper.SetDefault("telemetry.token_path", filepath.Join(home, ".cirro", "tokens"))
	}
}

// overrideWithEnv applies environment variables on top of the decoded config.
func overrideWithEnv(cfg *Config) {
	if cfg.NLP.Models == nil {
		cfg.NLP.Models = make(map[string]NLPModelConfig)
	}

	// Indexing a missing key yields a zero model config, which the env
	// vars below then fill in.
	def := cfg.NLP.Models["default"]
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && (def.Provider == "" || def.Provider == "openai") {
		def.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && def.Provider == "anthropic" {
		def.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && def.Provider == "google" {
		def.APIKey = key
	}
	cfg.NLP.Models["default"] = def

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = key
	}

	if v := os.Getenv("CIRRO_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("TELEMETRY_PARQUET_PATH"); v != "" {
		cfg.Telemetry.ParquetPath = v
	}
	if v := os.Getenv("TELEMETRY_TOKEN_PATH"); v != "" {
		cfg.Telemetry.TokenPath = v
	}
	if v := os.Getenv("TELEMETRY_SQL_DSN"); v != "" {
		cfg.Telemetry.SQLDSN = v
	}
}
