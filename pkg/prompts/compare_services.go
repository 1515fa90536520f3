package prompts

import (
	"fmt"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/types"
)

// CompareServicesPrompt defines the interface for pairwise comparison prompts.
type CompareServicesPrompt interface {
	Pairwise() types.PromptVersion
}

// CompareServicesVersions holds all versions of pairwise comparison prompts.
type CompareServicesVersions struct {
	pairwisePrompt types.PromptVersion
}

func (c *CompareServicesVersions) Pairwise() types.PromptVersion { return c.pairwisePrompt }

// pairwisePrompt asks the model which of two service passages better
// matches the query. The reply must start with the single letter A or B;
// anything else is treated as undetermined by the caller.
func pairwisePrompt(context map[string]interface{}) ([]types.Message, error) {
	sysPrompt := `You are a cloud architecture expert judging which of two cloud services better satisfies a user's need.
Respond with exactly one letter: "A" if Service A is the better match, or "B" if Service B is the better match.
Do not explain. Do not output anything before the letter.`

	query, _ := context["query"].(string)
	passageA, _ := context["passage_a"].(string)
	passageB, _ := context["passage_b"].(string)

	requirementsBlock := ""
	if req, ok := context["requirements"].(*types.UserRequirements); ok && req != nil {
		reqYAML, err := ToPromptYAML(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal requirements: %w", err)
		}
		requirementsBlock = fmt.Sprintf("\n<REQUIREMENTS>\n%s</REQUIREMENTS>\n", reqYAML)
	}

	userPrompt := fmt.Sprintf(`<QUERY>
%s
</QUERY>
%s
<SERVICE A>
%s
</SERVICE A>

<SERVICE B>
%s
</SERVICE B>

Which service better matches the query and requirements? Answer A or B.`, query, requirementsBlock, passageA, passageB)

	logPrompts(loggerFrom(context), sysPrompt, userPrompt)
	return []types.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}

// NewCompareServicesVersions creates a new CompareServicesVersions instance.
func NewCompareServicesVersions() *CompareServicesVersions {
	return &CompareServicesVersions{
		pairwisePrompt: NewPromptVersion(pairwisePrompt),
	}
}
