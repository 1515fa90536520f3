package prompts

import (
	"fmt"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/types"
)

// ParseQueryPrompt defines the interface for query understanding prompts.
type ParseQueryPrompt interface {
	Requirements() types.PromptVersion
}

// ParseQueryVersions holds all versions of query understanding prompts.
type ParseQueryVersions struct {
	requirementsPrompt types.PromptVersion
}

func (p *ParseQueryVersions) Requirements() types.PromptVersion { return p.requirementsPrompt }

// requirementsPrompt extracts structured requirements from a free-text
// query. The response is JSON matching the UserRequirements schema.
func requirementsPrompt(context map[string]interface{}) ([]types.Message, error) {
	sysPrompt := `You are a cloud requirements analyst. You extract structured constraints from free-text infrastructure requests and respond with JSON only.`

	query, _ := context["query"].(string)

	schema, err := ToPromptJSON(types.UserRequirements{
		Budget:                500,
		BudgetPeriod:          "month",
		MinVCPU:               4,
		MinMemoryGB:           16,
		MinStorageGB:          100,
		MinNetworkGbps:        1,
		DataSizeGB:            250,
		ExpectedUsers:         10000,
		NeedsHighAvailability: true,
		NeedsAutoScaling:      true,
		NeedsEncryption:       true,
		ExtraFeatures:         []string{"backup"},
		PreferredProvider:     types.ProviderAWS,
		PreferredCategory:     types.CategoryDatabase,
		PreferredRegion:       "us-east-1",
		DatabaseEngine:        "postgres",
	}, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal requirements schema: %w", err)
	}

	userPrompt := fmt.Sprintf(`Extract the infrastructure requirements stated in the request below.

<REQUEST>
%s
</REQUEST>

Respond with a JSON object using these fields (this example shows every field populated; omit any field the request does not state):
%s

Rules:
1. Only extract constraints the request actually states. Never guess numbers.
2. budget is a plain number; budget_period is "month", "day", or "hour" ("month" when unstated alongside a budget).
3. preferred_provider is one of "aws", "gcp", "azure" and only when the request names one.
4. preferred_category is one of "compute", "database", "storage", "serverless", "container", "kubernetes", "networking", "analytics".
5. Feature booleans (needs_high_availability, needs_auto_scaling, needs_encryption) are true only when asked for; other named capabilities go into extra_features.
6. Respond with the JSON object only.`, query, schema)

	logPrompts(loggerFrom(context), sysPrompt, userPrompt)
	return []types.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}

// NewParseQueryVersions creates a new ParseQueryVersions instance.
func NewParseQueryVersions() *ParseQueryVersions {
	return &ParseQueryVersions{
		requirementsPrompt: NewPromptVersion(requirementsPrompt),
	}
}
