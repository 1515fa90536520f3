package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/soundprediction/go-rust-bert/pkg/rustbert"

	"github.com/nimbium/cirro/pkg/types"
)

// textSummarizer abstracts the native summarization model so the
// generator logic stays testable without model weights on disk.
type textSummarizer interface {
	Summarize(text string) ([]string, error)
	Close()
}

// bartModel lazily loads the default BART summarization model. Loading
// happens on first use so constructing a LocalGenerator stays cheap when
// summaries are never requested.
type bartModel struct {
	mu    sync.Mutex
	model *rustbert.SummarizationModel
}

func (b *bartModel) Summarize(text string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.model == nil {
		m, err := rustbert.NewSummarizationModel()
		if err != nil {
			return nil, fmt.Errorf("failed to load summarization model: %w", err)
		}
		b.model = m
	}
	return b.model.Summarize(text)
}

func (b *bartModel) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model != nil {
		b.model.Close()
		b.model = nil
	}
}

// LocalGenerator summarizes without any remote model. It builds a plain
// sentence digest of the ranked list, condenses it through a local BART
// model when one can load, and returns the digest itself otherwise.
type LocalGenerator struct {
	model  textSummarizer
	logger *slog.Logger
}

// NewLocalGenerator creates an offline summary generator.
func NewLocalGenerator(logger *slog.Logger) *LocalGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalGenerator{model: &bartModel{}, logger: logger}
}

// Summarize never fails for model trouble: the digest text is the floor.
func (g *LocalGenerator) Summarize(ctx context.Context, query string, recs []*types.Recommendation) (string, error) {
	if len(recs) == 0 {
		return "", nil
	}
	// The BART call is blocking native code with no context support, so
	// cancellation is only honored up front.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := digest(query, recs)
	if text == "" {
		return "", nil
	}
	return g.condense(text), nil
}

// CompareProviders contrasts the providers in the ranked list through
// the same digest-then-condense path as Summarize.
func (g *LocalGenerator) CompareProviders(ctx context.Context, query string, recs []*types.Recommendation) (string, error) {
	if len(recs) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := providerDigest(query, recs)
	if text == "" {
		return "", nil
	}
	return g.condense(text), nil
}

// condense runs the digest through the local model and falls back to
// the digest itself when the model cannot run or returns nothing.
func (g *LocalGenerator) condense(text string) string {
	summaries, err := g.model.Summarize(text)
	if err != nil {
		g.logger.Warn("local summarization failed, returning digest text", "error", err)
		return text
	}
	for _, s := range summaries {
		if out := strings.TrimSpace(s); out != "" {
			return out
		}
	}
	return text
}

// Close releases the native model if one was loaded.
func (g *LocalGenerator) Close() error {
	g.model.Close()
	return nil
}

// digest renders the ranked list as plain sentences. It doubles as the
// model input and as the fallback summary when no model can run.
func digest(query string, recs []*types.Recommendation) string {
	presentable := make([]*types.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if rec != nil && rec.Candidate != nil && rec.Candidate.Service != nil {
			presentable = append(presentable, rec)
		}
	}
	if len(presentable) == 0 {
		return ""
	}

	top := presentable[0]
	svc := top.Candidate.Service

	var b strings.Builder
	fmt.Fprintf(&b, "For %q the best match is %s from %s with an overall score of %.2f.",
		query, svc.Name, svc.Provider, top.FinalScore)
	if len(top.Matches) > 0 {
		fmt.Fprintf(&b, " It fits because %s.", strings.Join(top.Matches, ", "))
	}
	if top.PricingSummary != "" {
		fmt.Fprintf(&b, " Pricing: %s.", top.PricingSummary)
	}
	if len(top.Concerns) > 0 {
		fmt.Fprintf(&b, " Worth checking: %s.", strings.Join(top.Concerns, ", "))
	}

	alts := make([]string, 0, 2)
	for _, rec := range presentable[1:] {
		alts = append(alts, fmt.Sprintf("%s from %s (%.2f)",
			rec.Candidate.Service.Name, rec.Candidate.Service.Provider, rec.FinalScore))
		if len(alts) == 2 {
			break
		}
	}
	if len(alts) > 0 {
		fmt.Fprintf(&b, " Alternatives: %s.", strings.Join(alts, " and "))
	}
	return b.String()
}

// providerDigest renders the ranked list grouped by provider, best
// entry first within each group.
func providerDigest(query string, recs []*types.Recommendation) string {
	order := make([]types.Provider, 0, 3)
	groups := make(map[types.Provider][]*types.Recommendation)
	for _, rec := range recs {
		if rec == nil || rec.Candidate == nil || rec.Candidate.Service == nil {
			continue
		}
		p := rec.Candidate.Service.Provider
		if _, seen := groups[p]; !seen {
			order = append(order, p)
		}
		groups[p] = append(groups[p], rec)
	}
	if len(order) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Provider options for %q.", query)
	for _, p := range order {
		best := groups[p][0]
		svc := best.Candidate.Service
		fmt.Fprintf(&b, " Best from %s is %s with a score of %.2f", p, svc.Name, best.FinalScore)
		if best.PricingSummary != "" {
			fmt.Fprintf(&b, " at %s", best.PricingSummary)
		}
		b.WriteString(".")
		if extra := len(groups[p]) - 1; extra > 0 {
			fmt.Fprintf(&b, " %d more %s option(s) ranked below it.", extra, p)
		}
	}
	if len(order) == 1 {
		fmt.Fprintf(&b, " Every ranked option comes from %s.", order[0])
	}
	return b.String()
}
