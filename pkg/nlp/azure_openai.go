package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nimbium/cirro/pkg/types"
)

// AzureOpenAIClient implements the Client interface for Azure OpenAI models.
type AzureOpenAIClient struct {
	cfg        *LLMConfig
	hc         *http.Client
	apiVersion string
	deployment string
}

// AzureOpenAIConfig extends LLMConfig with the deployment-scoped settings
// Azure adds on top of the plain OpenAI surface.
type AzureOpenAIConfig struct {
	*LLMConfig
	APIVersion, DeploymentID string
}

// NewAzureOpenAIClient creates a new Azure OpenAI client.
func NewAzureOpenAIClient(cfg *AzureOpenAIConfig) *AzureOpenAIClient {
	if cfg.LLMConfig == nil {
		cfg.LLMConfig = NewLLMConfig()
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-02-15-preview"
	}
	hc := &http.Client{Timeout: 30 * time.Second}
	return &AzureOpenAIClient{cfg: cfg.LLMConfig, hc: hc, apiVersion: cfg.APIVersion, deployment: cfg.DeploymentID}
}

// Azure chat completions wire types.
type azureChatRequest struct {
	Messages    []azureChatMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
}

type azureChatMessage struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

type azureChatResponse struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []azureChatChoice `json:"choices"`
	Usage   *azureUsage       `json:"usage,omitempty"`
	Error   *azureAPIError    `json:"error,omitempty"`
}

type azureChatChoice struct {
	Index        int              `json:"index"`
	Message      azureChatMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type azureUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type azureAPIError struct {
	Code       string           `json:"code"`
	Message    string           `json:"message"`
	Type       string           `json:"type,omitempty"`
	InnerError *azureInnerError `json:"innererror,omitempty"`
}

// azureInnerError carries the content filter verdict on blocked requests.
type azureInnerError struct {
	Code string `json:"code"`
}

// Chat implements the Client interface for Azure OpenAI.
func (c *AzureOpenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}
	if c.deployment == "" {
		return nil, errors.New("deployment ID is required for Azure OpenAI")
	}

	wire := make([]azureChatMessage, len(messages))
	for i, msg := range messages {
		wire[i] = azureChatMessage{Role: msg.Role, Content: msg.Content}
	}

	body, err := c.post(ctx, azureChatRequest{
		Messages:    wire,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float64(c.cfg.Temperature),
	})
	if err != nil {
		return nil, err
	}
	return parseAzureChat(body)
}

// post sends req to the deployment-scoped completions endpoint:
// {base}/openai/deployments/{deployment}/chat/completions?api-version={v}
func (c *AzureOpenAIClient) post(ctx context.Context, req azureChatRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.cfg.BaseURL, c.deployment, c.apiVersion)
	return httpPostJSON(ctx, c.hc, "azure openai", endpoint, map[string]string{"api-key": c.cfg.APIKey}, payload)
}

func parseAzureChat(body []byte) (*types.Response, error) {
	var parsed azureChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if e := parsed.Error; e != nil {
		// Content filter hits are refusals, not transport failures; the
		// retry client must not replay them.
		if e.InnerError != nil && e.InnerError.Code != "" {
			return nil, NewRefusalError(fmt.Sprintf("azure openai blocked the request: %s", e.InnerError.Code))
		}
		return nil, fmt.Errorf("azure openai error %s: %s", e.Code, e.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices in response")
	}

	choice := parsed.Choices[0]
	out := &types.Response{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Model:        parsed.Model,
	}
	if u := parsed.Usage; u != nil {
		out.TokensUsed = &types.TokenUsage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// ChatWithStructuredOutput appends a schema instruction to the conversation
// rather than using response_format, which not every deployment supports.
func (c *AzureOpenAIClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	instr, err := schemaInstruction(schema)
	if err != nil {
		return nil, err
	}
	resp, err := c.Chat(ctx, append(append([]types.Message{}, messages...), instr))
	if err != nil {
		return nil, err
	}
	resp.Content = ExtractJSONFromResponse(resp.Content)
	return resp, nil
}

// GetCapabilities returns the list of capabilities supported by this client.
func (c *AzureOpenAIClient) GetCapabilities() []TaskCapability {
	return []TaskCapability{TaskReranking, TaskStructuredExtraction, TaskSummarization, TaskTextGeneration}
}

// Close cleans up resources (no-op for Azure OpenAI client).
func (c *AzureOpenAIClient) Close() error {
	return nil
}
