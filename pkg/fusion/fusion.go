// Package fusion merges dense-similarity and sparse-keyword rankings
// into a single candidate ranking via reciprocal rank fusion.
package fusion

import (
	"log/slog"
	"sort"

	"github.com/nimbium/cirro/pkg/types"
)

const (
	// DefaultRankConstant dampens the influence of rank-1 dominance.
	DefaultRankConstant = 60
	// DefaultTopK is the number of candidates kept after fusion.
	DefaultTopK = 25
)

// Config controls the fusion stage.
type Config struct {
	// RankConstant is the k in 1/(k+rank).
	RankConstant int `json:"rank_constant"`
	// TopK caps the fused list length.
	TopK int `json:"top_k"`
}

// DefaultConfig returns the fusion defaults.
func DefaultConfig() Config {
	return Config{
		RankConstant: DefaultRankConstant,
		TopK:         DefaultTopK,
	}
}

// Engine fuses two ranked lists with reciprocal rank fusion.
type Engine struct {
	config Config
	logger *slog.Logger
}

// NewEngine creates a fusion engine. Zero config fields fall back to defaults.
func NewEngine(config Config, logger *slog.Logger) *Engine {
	if config.RankConstant <= 0 {
		config.RankConstant = DefaultRankConstant
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{config: config, logger: logger}
}

// Fuse merges the dense and sparse rankings into one list ordered by
// descending fused score, truncated to TopK. Each distinct candidate
// scores the sum of 1/(k+rank) over the lists it appears in, with rank
// counted 1-based. Ties keep dense-list order; candidates only found by
// the sparse index sort after equal-scored dense candidates. Either
// input may be empty, in which case fusion degrades to the other list's
// order under the same formula.
func (e *Engine) Fuse(dense, sparse types.RankedList) types.RankedList {
	dense = types.NewRankedList(dense)
	sparse = types.NewRankedList(sparse)

	if len(dense) == 0 && len(sparse) == 0 {
		return types.RankedList{}
	}

	k := float64(e.config.RankConstant)

	// Union in dense-first order so the stable sort below resolves
	// score ties in favor of the dense signal.
	fused := make(types.RankedList, 0, len(dense)+len(sparse))
	byID := make(map[string]*types.Candidate, len(dense)+len(sparse))

	for i, c := range dense {
		merged := c.Clone()
		merged.Scores.DenseRank = i + 1
		merged.Scores.SparseRank = 0
		merged.Scores.FusedScore = 1.0 / (k + float64(i+1))
		fused = append(fused, merged)
		byID[merged.ID] = merged
	}
	for i, c := range sparse {
		if merged, seen := byID[c.ID]; seen {
			merged.Scores.SparseRank = i + 1
			merged.Scores.FusedScore += 1.0 / (k + float64(i+1))
			continue
		}
		merged := c.Clone()
		merged.Scores.DenseRank = 0
		merged.Scores.SparseRank = i + 1
		merged.Scores.FusedScore = 1.0 / (k + float64(i+1))
		fused = append(fused, merged)
		byID[merged.ID] = merged
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Scores.FusedScore > fused[j].Scores.FusedScore
	})

	truncated := fused.Truncate(e.config.TopK)

	e.logger.Debug("fused rankings",
		"dense", len(dense),
		"sparse", len(sparse),
		"fused", len(fused),
		"kept", len(truncated))

	return truncated
}
