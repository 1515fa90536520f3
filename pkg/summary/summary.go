// Package summary turns a ranked recommendation list into a short
// narrative a user can act on. The LLM generator asks the configured
// model; the local generator runs an offline BART model over a
// deterministic digest of the table and still produces usable text when
// no model is reachable. Summaries are decoration: callers treat a
// failed summary as a result without one, never as a failed run.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/prompts"
	"github.com/nimbium/cirro/pkg/types"
)

// DefaultMaxRows caps how many ranked entries reach the summary prompt.
const DefaultMaxRows = 5

// Generator produces natural-language text for a recommendation run.
// Summarize narrates the ranked list; CompareProviders contrasts the
// providers represented in it.
type Generator interface {
	Summarize(ctx context.Context, query string, recs []*types.Recommendation) (string, error)
	CompareProviders(ctx context.Context, query string, recs []*types.Recommendation) (string, error)
	Close() error
}

// Config holds summary generation settings.
type Config struct {
	// MaxRows is the number of top entries shown to the model.
	MaxRows int `json:"max_rows"`
}

// LLMGenerator summarizes through the configured language model.
type LLMGenerator struct {
	client  nlp.Client
	prompts prompts.SummarizeResultsPrompt
	config  Config
	logger  *slog.Logger
}

// NewLLMGenerator creates a model-backed summary generator.
func NewLLMGenerator(client nlp.Client, config Config, logger *slog.Logger) *LLMGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxRows <= 0 {
		config.MaxRows = DefaultMaxRows
	}
	return &LLMGenerator{
		client:  client,
		prompts: prompts.NewSummarizeResultsVersions(),
		config:  config,
		logger:  logger,
	}
}

// Summarize renders the top entries as a CSV table and asks the model
// for a short narrative. An empty list produces an empty summary and no
// error.
func (g *LLMGenerator) Summarize(ctx context.Context, query string, recs []*types.Recommendation) (string, error) {
	return g.generate(ctx, g.prompts.ResultSummary(), "summary", query, recs)
}

// CompareProviders asks the model to contrast the providers represented
// in the ranked list. An empty list produces empty text and no error.
func (g *LLMGenerator) CompareProviders(ctx context.Context, query string, recs []*types.Recommendation) (string, error) {
	return g.generate(ctx, g.prompts.ProviderComparison(), "provider comparison", query, recs)
}

func (g *LLMGenerator) generate(ctx context.Context, prompt types.PromptVersion, kind string, query string, recs []*types.Recommendation) (string, error) {
	if len(recs) == 0 {
		return "", nil
	}

	messages, err := prompt.Call(map[string]interface{}{
		"query":           query,
		"recommendations": buildRows(recs, g.config.MaxRows),
		"logger":          g.logger,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build %s prompt: %w", kind, err)
	}

	callCtx := nlp.WithUsage(ctx, nlp.UsageSummary)
	callCtx = context.WithValue(callCtx, types.ContextKeySystemCall, true)

	resp, err := g.client.Chat(callCtx, messages)
	if err != nil {
		return "", fmt.Errorf("%s generation failed: %w", kind, err)
	}
	prompts.LogResponses(g.logger, *resp)

	text := strings.TrimSpace(nlp.RemoveThinkTags(resp.Content))
	if text == "" {
		return "", fmt.Errorf("model returned an empty %s", kind)
	}
	return text, nil
}

// Close is a no-op; the model client belongs to the caller.
func (g *LLMGenerator) Close() error { return nil }

func buildRows(recs []*types.Recommendation, maxRows int) []prompts.RecommendationRow {
	if maxRows > 0 && len(recs) > maxRows {
		recs = recs[:maxRows]
	}
	rows := make([]prompts.RecommendationRow, 0, len(recs))
	for _, rec := range recs {
		if rec == nil || rec.Candidate == nil || rec.Candidate.Service == nil {
			continue
		}
		svc := rec.Candidate.Service
		rows = append(rows, prompts.RecommendationRow{
			Rank:     rec.Rank,
			Service:  svc.Name,
			Provider: string(svc.Provider),
			Score:    rec.FinalScore,
			Pricing:  rec.PricingSummary,
			Specs:    rec.SpecsSummary,
			Concerns: rec.Concerns,
		})
	}
	return rows
}
