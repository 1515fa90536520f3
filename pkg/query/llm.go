package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/prompts"
	"github.com/nimbium/cirro/pkg/types"
)

// maxParseRetries bounds the JSON continuation loop for one parse call.
const maxParseRetries = 3

// LLMParser extracts requirements with a language model and degrades to
// the keyword parser whenever the model call or its JSON fails. Parse
// never returns an error for model trouble; a recommendation run without
// structured requirements is still a valid run.
type LLMParser struct {
	client   nlp.Client
	prompts  prompts.ParseQueryPrompt
	fallback Parser
	logger   *slog.Logger
}

// NewLLMParser creates a parser backed by the given model client.
func NewLLMParser(client nlp.Client, logger *slog.Logger) *LLMParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMParser{
		client:   client,
		prompts:  prompts.NewParseQueryVersions(),
		fallback: NewKeywordParser(),
		logger:   logger,
	}
}

// Parse asks the model for a strict JSON requirements object. The reply
// is accepted both flat and wrapped under a "requirements" key, repaired
// and continued by the JSON helpers, then sanitized against the known
// enums.
func (p *LLMParser) Parse(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return &Result{Requirements: &types.UserRequirements{}}, nil
	}

	req, err := p.extract(ctx, query)
	if err != nil {
		p.logger.Warn("LLM query parse failed, falling back to keyword parse", "error", err)
		return p.fallback.Parse(ctx, query)
	}

	sanitizeRequirements(req)
	return &Result{
		Requirements:  req,
		ExpandedQuery: expandQuery(query, req),
		Keywords:      extractKeywords(query),
	}, nil
}

func (p *LLMParser) extract(ctx context.Context, query string) (*types.UserRequirements, error) {
	messages, err := p.prompts.Requirements().Call(map[string]interface{}{
		"query":  query,
		"logger": p.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build parse prompt: %w", err)
	}

	callCtx := nlp.WithUsage(ctx, nlp.UsageParse)
	callCtx = context.WithValue(callCtx, types.ContextKeySystemCall, true)

	raw, err := nlp.GenerateJSONResponseWithContinuationMessages(callCtx, p.client, messages, nil, maxParseRetries)
	if err != nil {
		return nil, err
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		return nil, fmt.Errorf("requirements reply is not a JSON object: %w", err)
	}

	// Models sometimes nest the object under "requirements" despite the
	// flat example in the prompt.
	if _, wrapped := shape["requirements"]; wrapped {
		var parsed prompts.ParsedRequirements
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, fmt.Errorf("failed to decode wrapped requirements: %w", err)
		}
		return &parsed.Requirements, nil
	}

	var req types.UserRequirements
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("failed to decode requirements: %w", err)
	}
	return &req, nil
}
