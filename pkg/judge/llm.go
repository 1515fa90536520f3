package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/prompts"
	"github.com/nimbium/cirro/pkg/types"
)

// LLMJudge compares two candidates by asking a language model which one
// better satisfies the query. The reply must start with A or B; anything
// the parser cannot place is reported as Undetermined so the reranker
// keeps the current order.
type LLMJudge struct {
	client  nlp.Client
	prompts prompts.CompareServicesPrompt
	config  Config
	logger  *slog.Logger
}

// NewLLMJudge creates a judge backed by the given model client.
func NewLLMJudge(client nlp.Client, config Config, logger *slog.Logger) *LLMJudge {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMJudge{
		client:  client,
		prompts: prompts.NewCompareServicesVersions(),
		config:  config,
		logger:  logger,
	}
}

// Compare asks the model which of a and b better matches the query.
// A per-call timeout elapsing yields Undetermined, not an error: a slow
// judgment must not abort the whole reranking pass.
func (j *LLMJudge) Compare(ctx context.Context, query string, a, b *types.Candidate) (*types.ComparisonResult, error) {
	if a == nil || b == nil {
		return &types.ComparisonResult{
			Winner: types.Undetermined,
			Note:   "missing candidate",
		}, nil
	}

	messages, err := j.prompts.Pairwise().Call(map[string]interface{}{
		"query":        query,
		"requirements": RequirementsFrom(ctx),
		"passage_a":    Passage(a),
		"passage_b":    Passage(b),
		"logger":       j.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pairwise prompt: %w", err)
	}

	callCtx := nlp.WithUsage(ctx, nlp.UsageRerank)
	callCtx = context.WithValue(callCtx, types.ContextKeySystemCall, true)
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, j.config.Timeout)
		defer cancel()
	}

	response, err := j.client.Chat(callCtx, messages)
	if err != nil {
		// The per-call deadline expiring is an inconclusive judgment.
		// Cancellation of the surrounding request still surfaces as an
		// error so the reranker can stop at the pair boundary.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			j.logger.Warn("pairwise judgment timed out",
				"left", a.ID,
				"right", b.ID,
				"timeout", j.config.Timeout)
			return &types.ComparisonResult{
				Winner: types.Undetermined,
				Note:   "comparison timed out",
			}, nil
		}
		return nil, fmt.Errorf("pairwise comparison call failed: %w", err)
	}

	winner := ParseChoice(response.Content)
	result := &types.ComparisonResult{Winner: winner}
	if winner == types.Undetermined {
		result.Note = fmt.Sprintf("unparseable verdict: %.40q", response.Content)
		j.logger.Debug("pairwise verdict not parseable",
			"left", a.ID,
			"right", b.ID,
			"content", response.Content)
	}
	return result, nil
}
