package cirro

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nimbium/cirro/pkg/query"
	"github.com/nimbium/cirro/pkg/retrieval"
	"github.com/nimbium/cirro/pkg/scoring"
	"github.com/nimbium/cirro/pkg/types"
)

// QueryOptions tunes a single RecommendQuery run. The zero value (or a
// nil pointer) runs with the client configuration.
type QueryOptions struct {
	// Requirements skips query parsing and uses the given set as-is.
	Requirements *types.UserRequirements `json:"requirements,omitempty"`
	// TopK overrides the configured result count when positive.
	TopK int `json:"top_k,omitempty"`
	// Filters restricts retrieval to matching catalog records. Parsed
	// provider and category preferences stay soft scoring signals;
	// filters given here exclude everything else outright.
	Filters *retrieval.Filters `json:"filters,omitempty"`
}

// Recommend ranks pre-retrieved candidate lists: reciprocal rank fusion
// over the dense and sparse lists, a pairwise rerank sweep over the top
// fused candidates, then multi-dimension scoring against requirements.
//
// Inputs are deduplicated by ID (first occurrence wins) and cloned, so
// the caller's lists are never mutated. Nil requirements rank on
// relevance alone with the requirement-dependent dimensions neutral.
// Empty inputs produce an empty result, not an error. Without a judge
// the rerank stage is skipped and the fused order passes through.
//
// On context cancellation the error is returned together with a result
// built from the candidates ranked so far.
func (c *Client) Recommend(ctx context.Context, userQuery string, requirements *types.UserRequirements, dense, sparse types.RankedList) (*types.PipelineResult, error) {
	return c.recommend(ctx, userQuery, requirements, dense, sparse, c.scorer)
}

func (c *Client) recommend(ctx context.Context, userQuery string, requirements *types.UserRequirements, dense, sparse types.RankedList, scorer *scoring.Scorer) (*types.PipelineResult, error) {
	start := time.Now()
	if requirements == nil {
		requirements = &types.UserRequirements{}
	}

	// Clone at entry so rank stamping stays private to this run.
	dense = types.NewRankedList(dense).Clone()
	sparse = types.NewRankedList(sparse).Clone()

	result := &types.PipelineResult{
		Query:           userQuery,
		Requirements:    requirements,
		Recommendations: []*types.Recommendation{},
		Counters: types.PipelineCounters{
			DenseCandidates:  len(dense),
			SparseCandidates: len(sparse),
		},
	}

	if len(dense) == 0 && len(sparse) == 0 {
		c.logger.Debug("no candidates to rank", "query", userQuery)
		result.Timings.Total = time.Since(start)
		return result, nil
	}

	fuseStart := time.Now()
	candidates := c.fusion.Fuse(dense, sparse)
	result.Timings.Fusion = time.Since(fuseStart)
	result.Counters.FusedCandidates = len(candidates)

	if len(candidates) > c.config.MaxRerankCandidates {
		candidates = candidates[:c.config.MaxRerankCandidates]
	}

	var rerankErr error
	if c.reranker != nil {
		rerankStart := time.Now()
		ranked, stats, err := c.reranker.Rerank(ctx, userQuery, candidates)
		result.Timings.Reranking = time.Since(rerankStart)
		result.Counters.OracleCalls = stats.OracleCalls
		result.Counters.Inconclusive = stats.Inconclusive
		candidates = ranked
		// Cancellation mid-sweep leaves a valid partial order; score
		// it and hand the error up with the result.
		rerankErr = err
	}
	result.Counters.RerankedCandidates = len(candidates)

	scoreStart := time.Now()
	result.Recommendations = scorer.Score(candidates, requirements)
	result.Timings.Scoring = time.Since(scoreStart)
	result.Timings.Total = time.Since(start)

	c.writeAudit(ctx, result)

	c.logger.Info("recommendation run complete",
		"query", userQuery,
		"dense", result.Counters.DenseCandidates,
		"sparse", result.Counters.SparseCandidates,
		"fused", result.Counters.FusedCandidates,
		"oracle_calls", result.Counters.OracleCalls,
		"results", len(result.Recommendations),
		"took", result.Timings.Total,
	)
	return result, rerankErr
}

// RecommendQuery answers a free-text query end to end: parse structured
// requirements, retrieve over the local catalog, run Recommend, and
// attach a narrative summary when a generator is configured. A summary
// failure is logged and the result returned without one.
func (c *Client) RecommendQuery(ctx context.Context, rawQuery string, opts *QueryOptions) (*types.PipelineResult, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}
	trimmed := strings.TrimSpace(rawQuery)
	if trimmed == "" {
		return &types.PipelineResult{
			Query:           rawQuery,
			Requirements:    &types.UserRequirements{},
			Recommendations: []*types.Recommendation{},
		}, nil
	}
	if c.retriever == nil {
		return nil, ErrNoCatalog
	}

	requirements := opts.Requirements
	searchQuery := trimmed
	if requirements == nil {
		parsed, err := c.parser.Parse(ctx, trimmed)
		if err != nil {
			return nil, fmt.Errorf("query parsing failed: %w", err)
		}
		requirements = parsed.Requirements
		if parsed.ExpandedQuery != "" {
			searchQuery = parsed.ExpandedQuery
		}
	}

	dense, sparse, err := c.retriever.Retrieve(ctx, searchQuery, opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	scorer := c.scorer
	if opts.TopK > 0 && opts.TopK != c.config.TopKResults {
		cfg := c.config.scoringConfig()
		cfg.TopK = opts.TopK
		override, err := scoring.NewScorer(cfg, c.logger)
		if err != nil {
			return nil, fmt.Errorf("invalid top-k override: %w", err)
		}
		scorer = override
	}

	result, err := c.recommend(ctx, trimmed, requirements, dense, sparse, scorer)
	if err != nil {
		return result, err
	}

	if c.summarizer != nil && !result.Empty() {
		text, err := c.summarizer.Summarize(ctx, trimmed, result.Recommendations)
		if err != nil {
			c.logger.Warn("summary generation failed, returning result without one", "error", err)
		} else {
			result.Summary = text
		}
	}
	return result, nil
}

// ParseQuery extracts structured requirements from free text using the
// configured parser. With no language model this is keyword parsing.
func (c *Client) ParseQuery(ctx context.Context, rawQuery string) (*query.Result, error) {
	return c.parser.Parse(ctx, rawQuery)
}

// CompareProviders narrates how the providers in a finished run stack
// up against each other. An empty result produces empty text.
func (c *Client) CompareProviders(ctx context.Context, result *types.PipelineResult) (string, error) {
	if result.Empty() {
		return "", nil
	}
	if c.summarizer == nil {
		return "", ErrNoSummarizer
	}
	return c.summarizer.CompareProviders(ctx, result.Query, result.Recommendations)
}

// writeAudit appends the run to the Parquet audit trail when one is
// configured. Audit trouble never fails a run.
func (c *Client) writeAudit(ctx context.Context, result *types.PipelineResult) {
	if c.audit == nil {
		return
	}
	if err := c.audit.WriteRecommendations(ctx, result); err != nil {
		c.logger.Warn("failed to write recommendation audit", "error", err)
	}
}
