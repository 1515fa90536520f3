package crossencoder

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/types"
	"github.com/nimbium/cirro/pkg/utils"
)

// scorePattern extracts the first decimal number from a model response.
var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// LLMRerankerClient implements cross-encoder functionality with a language
// model. Each passage is scored against the query by a graded relevance
// prompt; passages are processed concurrently up to MaxConcurrency. Any
// nlp.Client works, so the same reranker serves OpenAI, Anthropic, Gemini,
// Azure, and OpenAI-compatible backends.
type LLMRerankerClient struct {
	client nlp.Client
	config Config
}

// NewLLMRerankerClient creates a new LLM-based reranker client
func NewLLMRerankerClient(nlpClient nlp.Client, config Config) *LLMRerankerClient {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}

	return &LLMRerankerClient{
		client: nlpClient,
		config: config,
	}
}

// Rank ranks the given passages based on their relevance to the query
func (c *LLMRerankerClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return []RankedPassage{}, nil
	}

	pool := utils.NewWorkerPool(c.config.MaxConcurrency, func(ctx context.Context, passage string) (RankedPassage, error) {
		score, err := c.scorePassage(ctx, query, passage)
		if err != nil {
			return RankedPassage{}, err
		}
		return RankedPassage{Passage: passage, Score: score}, nil
	})

	results, errs := pool.ProcessItems(ctx, passages)
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("error scoring passage %d: %w", i, err)
		}
	}

	ranked := make([]RankedPassage, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked, nil
}

// scorePassage asks the model for a graded 0.0-1.0 relevance judgment.
func (c *LLMRerankerClient) scorePassage(ctx context.Context, query, passage string) (float64, error) {
	messages := []types.Message{
		nlp.NewSystemMessage("You score how well a cloud service listing satisfies an infrastructure request. Respond with a single number between 0 and 1, where 0 means completely unsuitable and 1 means a perfect fit."),
		nlp.NewUserMessage(fmt.Sprintf(`Rate how well this SERVICE satisfies the REQUEST on a scale from 0.0 to 1.0.

<REQUEST>
%s
</REQUEST>

<SERVICE>
%s
</SERVICE>

Respond with only a decimal number between 0.0 and 1.0 (e.g. 0.85):`, query, passage)),
	}

	response, err := c.client.Chat(ctx, messages)
	if err != nil {
		return 0, fmt.Errorf("failed to get response: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return 0.5, nil // neutral score if no response
	}

	if match := scorePattern.FindString(content); match != "" {
		score, err := strconv.ParseFloat(match, 64)
		if err == nil {
			if score < 0 {
				score = 0
			} else if score > 1 {
				score = 1
			}
			return score, nil
		}
	}

	return keywordScore(content), nil
}

// keywordScore maps non-numeric responses to a coarse relevance score.
// Covers models that answer the graded prompt with a yes/no or a phrase.
func keywordScore(content string) float64 {
	content = strings.ToLower(content)

	switch {
	case strings.Contains(content, "not relevant"),
		strings.Contains(content, "irrelevant"),
		strings.Contains(content, "unsuitable"),
		strings.HasPrefix(content, "false"),
		strings.HasPrefix(content, "no"):
		return 0.2
	case strings.Contains(content, "highly relevant"),
		strings.Contains(content, "perfect"),
		strings.HasPrefix(content, "true"),
		strings.HasPrefix(content, "yes"):
		return 0.8
	case strings.Contains(content, "relevant"),
		strings.Contains(content, "suitable"),
		strings.Contains(content, "good"):
		return 0.7
	default:
		return 0.5
	}
}

// Close cleans up any resources used by the client
func (c *LLMRerankerClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
