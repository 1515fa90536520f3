package judge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nimbium/cirro/pkg/crossencoder"
	"github.com/nimbium/cirro/pkg/types"
)

// CrossEncoderJudge compares two candidates by scoring both passages
// against the query with a cross-encoder and picking the higher score.
// Tied scores are Undetermined. This judge gives a local, keyless
// alternative to the LLM judge.
type CrossEncoderJudge struct {
	client crossencoder.Client
	logger *slog.Logger
}

// NewCrossEncoderJudge creates a judge backed by the given cross-encoder.
func NewCrossEncoderJudge(client crossencoder.Client, logger *slog.Logger) *CrossEncoderJudge {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossEncoderJudge{
		client: client,
		logger: logger,
	}
}

// Compare scores both candidates' passages and declares the higher one
// more relevant.
func (j *CrossEncoderJudge) Compare(ctx context.Context, query string, a, b *types.Candidate) (*types.ComparisonResult, error) {
	if a == nil || b == nil {
		return &types.ComparisonResult{
			Winner: types.Undetermined,
			Note:   "missing candidate",
		}, nil
	}

	passageA := Passage(a)
	passageB := Passage(b)

	ranked, err := j.client.Rank(ctx, query, []string{passageA, passageB})
	if err != nil {
		return nil, fmt.Errorf("cross-encoder scoring failed: %w", err)
	}

	scores := make(map[string]float64, len(ranked))
	for _, r := range ranked {
		scores[r.Passage] = r.Score
	}

	scoreA, okA := scores[passageA]
	scoreB, okB := scores[passageB]
	if !okA || !okB {
		// A threshold-filtering client may drop a passage entirely.
		// A surviving passage beats a dropped one.
		switch {
		case okA:
			return &types.ComparisonResult{Winner: types.AMoreRelevant}, nil
		case okB:
			return &types.ComparisonResult{Winner: types.BMoreRelevant}, nil
		default:
			return &types.ComparisonResult{
				Winner: types.Undetermined,
				Note:   "both passages filtered out",
			}, nil
		}
	}

	switch {
	case scoreA > scoreB:
		return &types.ComparisonResult{Winner: types.AMoreRelevant}, nil
	case scoreB > scoreA:
		return &types.ComparisonResult{Winner: types.BMoreRelevant}, nil
	default:
		j.logger.Debug("cross-encoder scores tied",
			"left", a.ID,
			"right", b.ID,
			"score", scoreA)
		return &types.ComparisonResult{
			Winner: types.Undetermined,
			Note:   "scores tied",
		}, nil
	}
}
