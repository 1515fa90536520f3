package judge

import (
	"context"
	"sync"

	"github.com/nimbium/cirro/pkg/types"
)

// ScriptedJudge ranks candidates by a fixed ID ordering: earlier IDs beat
// later ones, and candidates absent from the script are Undetermined. It
// backs tests and offline demos where no model is available, and its call
// counter lets tests assert exact comparison budgets.
type ScriptedJudge struct {
	rank map[string]int

	mu    sync.Mutex
	calls int
}

// NewScriptedJudge creates a judge preferring candidates in the given ID
// order.
func NewScriptedJudge(order []string) *ScriptedJudge {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	return &ScriptedJudge{rank: rank}
}

// Compare judges by script position. The query is ignored.
func (j *ScriptedJudge) Compare(ctx context.Context, query string, a, b *types.Candidate) (*types.ComparisonResult, error) {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return &types.ComparisonResult{Winner: types.Undetermined, Note: "missing candidate"}, nil
	}

	rankA, okA := j.rank[a.ID]
	rankB, okB := j.rank[b.ID]
	if !okA || !okB {
		return &types.ComparisonResult{Winner: types.Undetermined, Note: "candidate not in script"}, nil
	}

	switch {
	case rankA < rankB:
		return &types.ComparisonResult{Winner: types.AMoreRelevant}, nil
	case rankB < rankA:
		return &types.ComparisonResult{Winner: types.BMoreRelevant}, nil
	default:
		return &types.ComparisonResult{Winner: types.Undetermined, Note: "same script position"}, nil
	}
}

// Calls reports how many comparisons have been requested.
func (j *ScriptedJudge) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}
