// Package rerank refines a fused candidate ranking with pairwise
// oracle judgments, using sliding bubble passes that bound oracle
// calls to passes*(N-1) instead of a full N^2 comparison sort.
package rerank

import (
	"context"
	"log/slog"

	"github.com/nimbium/cirro/pkg/types"
)

// DefaultPasses is the default number of bubble passes. Each completed
// pass settles one more position at the head of the list.
const DefaultPasses = 3

// Oracle judges which of two candidates answers the query better.
// Implementations return Undetermined rather than an error when the
// judgment itself is unclear; errors are reserved for transport
// failures and are treated as inconclusive by the reranker.
type Oracle interface {
	Compare(ctx context.Context, query string, a, b *types.Candidate) (*types.ComparisonResult, error)
}

// Config controls the reranking stage.
type Config struct {
	// Passes is the number of back-to-first bubble passes. After p
	// completed passes the top p positions are correctly ordered
	// relative to the rest of the list.
	Passes int `json:"passes"`
}

// DefaultConfig returns the reranker defaults.
func DefaultConfig() Config {
	return Config{Passes: DefaultPasses}
}

// Stats counts oracle activity during one reranking run.
type Stats struct {
	OracleCalls  int `json:"oracle_calls"`
	Swaps        int `json:"swaps"`
	Inconclusive int `json:"inconclusive"`
}

// Reranker reorders candidates with pairwise oracle comparisons.
type Reranker struct {
	oracle Oracle
	config Config
	logger *slog.Logger
}

// NewReranker creates a reranker backed by the given oracle.
func NewReranker(oracle Oracle, config Config, logger *slog.Logger) *Reranker {
	if config.Passes <= 0 {
		config.Passes = DefaultPasses
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{
		oracle: oracle,
		config: config,
		logger: logger,
	}
}

// Rerank runs Passes back-to-first bubble passes over the list. Each
// pass walks from the last position down to the second, asks the
// oracle to compare the pair at (i-1, i), and swaps when the candidate
// at i is judged strictly more relevant. Inconclusive judgments and
// oracle errors leave the pair untouched. Every pass visits every
// pair, so a run over N>=2 candidates costs exactly Passes*(N-1)
// oracle calls; lists of one or zero candidates cost none.
//
// The input is never mutated. Cancellation is honored only between
// comparisons, so the returned list is always fully formed; on
// cancellation it reflects all comparisons made so far and is returned
// alongside the context error.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates types.RankedList) (types.RankedList, Stats, error) {
	var stats Stats

	result := candidates.Clone()
	if len(result) <= 1 {
		return result, stats, nil
	}

	for pass := 1; pass <= r.config.Passes; pass++ {
		for i := len(result) - 1; i >= 1; i-- {
			if err := ctx.Err(); err != nil {
				r.logger.Warn("reranking cancelled",
					"pass", pass,
					"position", i,
					"oracle_calls", stats.OracleCalls)
				return result, stats, err
			}

			stats.OracleCalls++
			cmp, err := r.oracle.Compare(ctx, query, result[i-1], result[i])
			if err != nil {
				stats.Inconclusive++
				r.logger.Warn("pairwise comparison failed, keeping order",
					"pass", pass,
					"left", result[i-1].ID,
					"right", result[i].ID,
					"error", err)
				continue
			}

			winner := types.Undetermined
			if cmp != nil {
				winner = cmp.Winner
			}
			switch winner {
			case types.BMoreRelevant:
				result[i-1], result[i] = result[i], result[i-1]
				stats.Swaps++
			case types.AMoreRelevant:
				// Order already correct.
			default:
				stats.Inconclusive++
				r.logger.Debug("pairwise comparison inconclusive, keeping order",
					"pass", pass,
					"left", result[i-1].ID,
					"right", result[i].ID)
			}
		}
	}

	r.logger.Debug("reranking completed",
		"candidates", len(result),
		"passes", r.config.Passes,
		"oracle_calls", stats.OracleCalls,
		"swaps", stats.Swaps,
		"inconclusive", stats.Inconclusive)

	return result, stats, nil
}
