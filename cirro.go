package cirro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nimbium/cirro/pkg/catalog"
	"github.com/nimbium/cirro/pkg/embedder"
	"github.com/nimbium/cirro/pkg/fusion"
	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/query"
	"github.com/nimbium/cirro/pkg/rerank"
	"github.com/nimbium/cirro/pkg/retrieval"
	"github.com/nimbium/cirro/pkg/scoring"
	"github.com/nimbium/cirro/pkg/summary"
	"github.com/nimbium/cirro/pkg/utils"
)

var (
	// ErrNoCatalog is returned by operations that need a catalog store
	// when the client was built without one.
	ErrNoCatalog = errors.New("no catalog store configured")

	// ErrEmptyService is returned when a catalog write carries no
	// usable record.
	ErrEmptyService = errors.New("service record is nil or has no ID")

	// ErrNoSummarizer is returned by CompareProviders when neither a
	// language model nor a summary generator is configured.
	ErrNoSummarizer = errors.New("no summary generator configured")
)

// Config holds the pipeline knobs. The zero value of any field falls
// back to its default; DefaultConfig returns them all explicitly.
type Config struct {
	// FusionKRRF is the k constant in the reciprocal rank fusion
	// formula 1/(k+rank).
	FusionKRRF int `json:"fusion_k_rrf"`
	// FusionTopK caps the fused candidate list length.
	FusionTopK int `json:"fusion_top_k"`
	// MaxRerankCandidates caps how many fused candidates enter the
	// pairwise comparison sweep.
	MaxRerankCandidates int `json:"max_rerank_candidates"`
	// KPasses is the number of oracle-guided bubble passes. Zero means
	// min(TopKResults, 3): one pass settles one top position, so more
	// passes than returned results buy nothing.
	KPasses int `json:"k_passes"`
	// TopKResults is how many recommendations a run returns.
	TopKResults int `json:"top_k_results"`
	// ScoringWeights blends the four scoring dimensions. All-zero
	// weights are treated as unset.
	ScoringWeights scoring.Weights `json:"scoring_weights"`
	// DiversityBoost is the bonus applied when a candidate introduces
	// a provider not yet represented above it. Zero disables the
	// bonus; DefaultConfig sets 0.05.
	DiversityBoost float64 `json:"diversity_boost"`

	// Retrieval configures hybrid retrieval for RecommendQuery. Zero
	// values take the retrieval package defaults.
	Retrieval retrieval.Config `json:"retrieval"`
	// Summary configures narrative summary generation.
	Summary summary.Config `json:"summary"`
	// AuditDir, when set, appends one Parquet audit file per
	// recommendation run under this directory.
	AuditDir string `json:"audit_dir,omitempty"`
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		FusionKRRF:          fusion.DefaultRankConstant,
		FusionTopK:          fusion.DefaultTopK,
		MaxRerankCandidates: DefaultMaxRerankCandidates,
		KPasses:             rerank.DefaultPasses,
		TopKResults:         scoring.DefaultTopK,
		ScoringWeights:      scoring.DefaultWeights(),
		DiversityBoost:      scoring.DefaultDiversityBoost,
	}
}

// DefaultMaxRerankCandidates caps the pairwise sweep. The sweep costs
// O(passes * n) oracle calls, so the cap bounds model spend per query.
const DefaultMaxRerankCandidates = 20

// normalize fills unset fields with defaults. All-zero weights count
// as unset; a deliberate partial weight set is validated as given.
func (c *Config) normalize() {
	if c.FusionKRRF == 0 {
		c.FusionKRRF = fusion.DefaultRankConstant
	}
	if c.FusionTopK == 0 {
		c.FusionTopK = fusion.DefaultTopK
	}
	if c.MaxRerankCandidates == 0 {
		c.MaxRerankCandidates = DefaultMaxRerankCandidates
	}
	if c.TopKResults == 0 {
		c.TopKResults = scoring.DefaultTopK
	}
	if c.KPasses == 0 {
		c.KPasses = min(c.TopKResults, rerank.DefaultPasses)
	}
	if c.ScoringWeights == (scoring.Weights{}) {
		c.ScoringWeights = scoring.DefaultWeights()
		if c.DiversityBoost == 0 {
			c.DiversityBoost = scoring.DefaultDiversityBoost
		}
	}
}

// Validate rejects configurations the pipeline cannot run with. It is
// called from NewClient so bad settings fail before any query.
func (c *Config) Validate() error {
	if c.FusionKRRF <= 0 {
		return fmt.Errorf("fusion rank constant must be positive, got %d", c.FusionKRRF)
	}
	if c.FusionTopK <= 0 {
		return fmt.Errorf("fusion top-k must be positive, got %d", c.FusionTopK)
	}
	if c.MaxRerankCandidates <= 0 {
		return fmt.Errorf("max rerank candidates must be positive, got %d", c.MaxRerankCandidates)
	}
	if c.KPasses <= 0 {
		return fmt.Errorf("rerank passes must be positive, got %d", c.KPasses)
	}
	return c.scoringConfig().Validate()
}

func (c *Config) fusionConfig() fusion.Config {
	return fusion.Config{RankConstant: c.FusionKRRF, TopK: c.FusionTopK}
}

func (c *Config) rerankConfig() rerank.Config {
	return rerank.Config{Passes: c.KPasses}
}

func (c *Config) scoringConfig() scoring.Config {
	return scoring.Config{
		Weights:        c.ScoringWeights,
		DiversityBoost: c.DiversityBoost,
		TopK:           c.TopKResults,
	}
}

// Dependencies bundles the collaborators a client works with. Every
// field is optional; the pipeline degrades to whatever is present. The
// store is handed over and closed by Close; model clients stay owned
// by the caller.
type Dependencies struct {
	// Judge decides pairwise comparisons during reranking. Nil skips
	// the rerank stage and the fused order passes through.
	Judge rerank.Oracle
	// Store is the service catalog. Nil limits the client to the
	// pre-retrieved Recommend path.
	Store *catalog.Store
	// Embedder powers the dense retrieval signal and ingest-time
	// embedding. Nil disables both; retrieval runs sparse-only.
	Embedder embedder.Client
	// NLP is the language model for query parsing and summaries. Nil
	// falls back to keyword parsing and skips narrative summaries.
	NLP nlp.Client
	// Parser overrides the query parser derived from NLP.
	Parser query.Parser
	// Summarizer overrides the summary generator derived from NLP.
	Summarizer summary.Generator
}

// Client runs the recommendation pipeline: hybrid retrieval, reciprocal
// rank fusion, oracle-guided reranking, and multi-dimension scoring.
type Client struct {
	judge      rerank.Oracle
	store      *catalog.Store
	embedder   embedder.Client
	nlpClient  nlp.Client
	parser     query.Parser
	summarizer summary.Generator
	retriever  *retrieval.Retriever

	fusion   *fusion.Engine
	reranker *rerank.Reranker
	scorer   *scoring.Scorer
	audit    *utils.ParquetCatalogWriter

	// owned holds closers for collaborators the assembly path built
	// itself, released by Close after the audit writer.
	owned []func() error

	config *Config
	logger *slog.Logger
}

// NewClient creates a pipeline client. A nil config uses DefaultConfig;
// invalid settings are rejected here, before any query is processed.
func NewClient(deps Dependencies, config *Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultConfig()
	}
	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	scorer, err := scoring.NewScorer(config.scoringConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}

	c := &Client{
		judge:      deps.Judge,
		store:      deps.Store,
		embedder:   deps.Embedder,
		nlpClient:  deps.NLP,
		parser:     deps.Parser,
		summarizer: deps.Summarizer,
		fusion:     fusion.NewEngine(config.fusionConfig(), logger),
		scorer:     scorer,
		config:     config,
		logger:     logger,
	}

	if deps.Judge != nil {
		c.reranker = rerank.NewReranker(deps.Judge, config.rerankConfig(), logger)
	}
	if deps.Store != nil {
		c.retriever = retrieval.NewRetriever(deps.Store, deps.Embedder, config.Retrieval, logger)
	}
	if c.parser == nil {
		if deps.NLP != nil {
			c.parser = query.NewLLMParser(deps.NLP, logger)
		} else {
			c.parser = query.NewKeywordParser()
		}
	}
	if c.summarizer == nil && deps.NLP != nil {
		c.summarizer = summary.NewLLMGenerator(deps.NLP, config.Summary, logger)
	}
	if config.AuditDir != "" {
		audit, err := utils.NewParquetCatalogWriter(config.AuditDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit writer: %w", err)
		}
		c.audit = audit
	}

	logger.Info("pipeline client ready",
		"rerank", c.reranker != nil,
		"dense_retrieval", deps.Embedder != nil,
		"catalog", deps.Store != nil,
		"llm", deps.NLP != nil,
	)
	return c, nil
}

// GetConfig returns the effective configuration after defaulting.
func (c *Client) GetConfig() *Config {
	return c.config
}

// GetLogger returns the client's logger.
func (c *Client) GetLogger() *slog.Logger {
	return c.logger
}

// GetStore returns the catalog store, or nil when none is configured.
func (c *Client) GetStore() *catalog.Store {
	return c.store
}

// GetEmbedder returns the embedding client, or nil.
func (c *Client) GetEmbedder() embedder.Client {
	return c.embedder
}

// GetNLP returns the language model client, or nil.
func (c *Client) GetNLP() nlp.Client {
	return c.nlpClient
}

// GetJudge returns the pairwise comparison oracle, or nil.
func (c *Client) GetJudge() rerank.Oracle {
	return c.judge
}

// GetRetriever returns the hybrid retriever, or nil without a catalog.
func (c *Client) GetRetriever() *retrieval.Retriever {
	return c.retriever
}

// own registers a closer for a collaborator the client should release
// on Close. NewClientFromConfig uses it for the model clients it built.
func (c *Client) own(closer func() error) {
	if closer != nil {
		c.owned = append(c.owned, closer)
	}
}

// Close releases the catalog store, the audit writer, and collaborators
// built by NewClientFromConfig. Model clients passed in directly through
// Dependencies belong to the caller and stay open.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.audit != nil {
		if err := c.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit writer: %w", err))
		}
	}
	for _, closer := range c.owned {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close catalog: %w", err))
		}
	}
	return errors.Join(errs...)
}
