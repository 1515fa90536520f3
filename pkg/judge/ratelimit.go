package judge

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/nimbium/cirro/pkg/rerank"
	"github.com/nimbium/cirro/pkg/types"
)

// RateLimitedJudge wraps another judge and spaces its comparisons to at
// most rps calls per second. One limiter spans all requests through the
// wrapper, so concurrent recommendation runs share the same budget.
type RateLimitedJudge struct {
	inner   rerank.Oracle
	limiter *rate.Limiter
}

// NewRateLimited wraps the judge with a rate limit. Non-positive rps
// means no limiting.
func NewRateLimited(inner rerank.Oracle, rps float64) *RateLimitedJudge {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimitedJudge{
		inner:   inner,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Compare waits for the rate limiter, then delegates. A context expiring
// during the wait returns its error, which the reranker treats like any
// other failed comparison.
func (j *RateLimitedJudge) Compare(ctx context.Context, query string, a, b *types.Candidate) (*types.ComparisonResult, error) {
	if err := j.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return j.inner.Compare(ctx, query, a, b)
}
