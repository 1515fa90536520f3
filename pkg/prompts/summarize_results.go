package prompts

import (
	"fmt"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/types"
)

// SummarizeResultsPrompt defines the interface for result summary prompts.
type SummarizeResultsPrompt interface {
	ResultSummary() types.PromptVersion
	ProviderComparison() types.PromptVersion
}

// SummarizeResultsVersions holds all versions of result summary prompts.
type SummarizeResultsVersions struct {
	resultSummaryPrompt      types.PromptVersion
	providerComparisonPrompt types.PromptVersion
}

func (s *SummarizeResultsVersions) ResultSummary() types.PromptVersion {
	return s.resultSummaryPrompt
}

func (s *SummarizeResultsVersions) ProviderComparison() types.PromptVersion {
	return s.providerComparisonPrompt
}

// RecommendationRow is the per-candidate line handed to the summary prompt.
// Uses CSV format to keep candidate tables cheap in tokens.
type RecommendationRow struct {
	Rank     int
	Service  string
	Provider string
	Score    float64
	Pricing  string
	Specs    string
	Concerns []string
}

// resultSummaryPrompt turns a ranked recommendation table into a short
// narrative a user can act on.
func resultSummaryPrompt(context map[string]interface{}) ([]types.Message, error) {
	sysPrompt := `You are a cloud architecture advisor who explains service recommendations in plain language.`

	query, _ := context["query"].(string)
	rows := context["recommendations"]

	ensureASCII := false
	if val, ok := context["ensure_ascii"]; ok {
		if b, ok := val.(bool); ok {
			ensureASCII = b
		}
	}

	rowsCSV, err := ToPromptCSV(rows, ensureASCII)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	userPrompt := fmt.Sprintf(`A user asked:

<QUERY>
%s
</QUERY>

The pipeline ranked these services (CSV format, best first):
%s

Write a summary of at most 120 words. Name the top choice and why it fits,
mention one alternative worth considering, and call out any concern listed
for the top choice. Do not invent capabilities or prices that are not in
the table.`, query, rowsCSV)

	logPrompts(loggerFrom(context), sysPrompt, userPrompt)
	return []types.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}

// providerComparisonPrompt contrasts the providers represented in a
// ranked result so a user can weigh a multi-cloud decision.
func providerComparisonPrompt(context map[string]interface{}) ([]types.Message, error) {
	sysPrompt := `You are a cloud architecture advisor who compares offerings across cloud providers in plain language.`

	query, _ := context["query"].(string)
	rows := context["recommendations"]

	ensureASCII := false
	if val, ok := context["ensure_ascii"]; ok {
		if b, ok := val.(bool); ok {
			ensureASCII = b
		}
	}

	rowsCSV, err := ToPromptCSV(rows, ensureASCII)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	userPrompt := fmt.Sprintf(`A user asked:

<QUERY>
%s
</QUERY>

The pipeline ranked these services (CSV format, best first):
%s

Write a comparison of at most 150 words, grouped by provider. For each
provider in the table, state in one or two sentences how its offering
stacks up on price and fit for the query. Close with which provider to
pick and when one of the others would be the better call. Do not invent
capabilities or prices that are not in the table.`, query, rowsCSV)

	logPrompts(loggerFrom(context), sysPrompt, userPrompt)
	return []types.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}

// NewSummarizeResultsVersions creates a new SummarizeResultsVersions instance.
func NewSummarizeResultsVersions() *SummarizeResultsVersions {
	return &SummarizeResultsVersions{
		resultSummaryPrompt:      NewPromptVersion(resultSummaryPrompt),
		providerComparisonPrompt: NewPromptVersion(providerComparisonPrompt),
	}
}
