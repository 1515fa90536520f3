// Package judge provides the pairwise relevance judges used by the
// reranking stage: an LLM judge that asks a model to pick the better of
// two services, a cross-encoder judge that compares model scores, a
// scripted judge with a fixed ordering for tests and offline runs, and a
// rate-limiting wrapper. All of them satisfy rerank.Oracle and report
// unclear outcomes as Undetermined rather than failing the pass.
package judge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/prompts"
	"github.com/nimbium/cirro/pkg/types"
)

// Config controls judge behavior shared across implementations.
type Config struct {
	// Timeout bounds each comparison call. Zero means the caller's
	// context deadline is the only bound.
	Timeout time.Duration `json:"timeout"`
}

type contextKey string

// requirementsKey carries per-request user requirements to the judges.
const requirementsKey contextKey = "judge_requirements"

// WithRequirements returns a context carrying the user requirements so
// judges can weigh constraints the raw query text leaves out. The judges
// are constructed once per client; requirements vary per request and
// travel with the call.
func WithRequirements(ctx context.Context, req *types.UserRequirements) context.Context {
	if req == nil {
		return ctx
	}
	return context.WithValue(ctx, requirementsKey, req)
}

// RequirementsFrom extracts the user requirements from the context, or
// nil when none were attached.
func RequirementsFrom(ctx context.Context) *types.UserRequirements {
	req, _ := ctx.Value(requirementsKey).(*types.UserRequirements)
	return req
}

// Passage renders one candidate as the text block a judge sees. Identity,
// description, specs, pricing, and capability terms all matter for the
// comparison; embedding vectors and rank stamps do not.
func Passage(c *types.Candidate) string {
	if c == nil {
		return ""
	}
	if c.Service == nil {
		return c.ID
	}

	s := c.Service
	var b strings.Builder
	b.WriteString(s.Name)
	if s.Provider != "" {
		b.WriteString(" (")
		b.WriteString(string(s.Provider))
		b.WriteString(")")
	}
	if s.Description != "" {
		b.WriteString("\n")
		b.WriteString(s.Description)
	}
	if specs := s.SpecsSummary(); specs != "" {
		b.WriteString("\nSpecs: ")
		b.WriteString(specs)
	}
	if pricing := s.PricingSummary(); pricing != "" {
		b.WriteString("\nPricing: ")
		b.WriteString(pricing)
	}
	if len(s.Features) > 0 {
		b.WriteString("\nFeatures: ")
		b.WriteString(strings.Join(s.Features, ", "))
	}
	if len(s.UseCases) > 0 {
		b.WriteString("\nUse cases: ")
		b.WriteString(strings.Join(s.UseCases, ", "))
	}
	return b.String()
}

// ParseChoice maps a model reply to a comparison outcome. The reply is
// expected to start with the letter A or B; matching is tolerant of case,
// whitespace, surrounding punctuation, and JSON-wrapped answers. Anything
// else is Undetermined.
func ParseChoice(content string) types.ComparisonLabel {
	content = strings.TrimSpace(nlp.RemoveThinkTags(content))
	if content == "" {
		return types.Undetermined
	}

	// Some models answer the letter prompt with {"choice": "A"} anyway.
	if strings.HasPrefix(content, "{") {
		var choice prompts.PairwiseChoice
		if err := json.Unmarshal([]byte(nlp.ExtractJSONFromResponse(content)), &choice); err == nil {
			content = choice.Choice
		}
	}

	fields := strings.Fields(content)
	if len(fields) == 0 {
		return types.Undetermined
	}
	token := strings.Trim(fields[0], `"'().:,*`)

	switch strings.ToUpper(token) {
	case "A":
		return types.AMoreRelevant
	case "B":
		return types.BMoreRelevant
	default:
		return types.Undetermined
	}
}
