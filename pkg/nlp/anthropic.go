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

// AnthropicClient implements the Client interface for Anthropic Claude models.
type AnthropicClient struct {
	cfg *LLMConfig
	hc  *http.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg *LLMConfig) *AnthropicClient {
	if cfg == nil {
		cfg = NewLLMConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	return &AnthropicClient{cfg: cfg, hc: &http.Client{Timeout: 30 * time.Second}}
}

// Anthropic messages API wire types.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
}

type anthropicMessage struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

type anthropicResponse struct {
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Content    []anthropicContent `json:"content"`
	Usage      *anthropicUsage    `json:"usage,omitempty"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// splitSystemTurn separates conversation turns from the system prompt, which
// the messages API takes as a top-level field.
func splitSystemTurn(messages []types.Message) ([]anthropicMessage, string) {
	turns := make([]anthropicMessage, 0, len(messages))
	var system string
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = msg.Content
			continue
		}
		turns = append(turns, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	return turns, system
}

// Chat implements the Client interface for Anthropic.
func (a *AnthropicClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}

	turns, system := splitSystemTurn(messages)

	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	body, err := a.post(ctx, anthropicRequest{
		Model:       a.cfg.Model,
		MaxTokens:   maxTokens,
		Messages:    turns,
		Temperature: float64(a.cfg.Temperature),
		System:      system,
	})
	if err != nil {
		return nil, err
	}
	return parseAnthropicMessage(body)
}

// post sends req to the messages endpoint and returns the raw response body.
func (a *AnthropicClient) post(ctx context.Context, req anthropicRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	headers := map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}
	return httpPostJSON(ctx, a.hc, "anthropic", a.cfg.BaseURL+"/v1/messages", headers, payload)
}

func parseAnthropicMessage(body []byte) (*types.Response, error) {
	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if e := parsed.Error; e != nil {
		return nil, fmt.Errorf("anthropic error %s: %s", e.Type, e.Message)
	}
	if len(parsed.Content) == 0 {
		return nil, NewEmptyResponseError("no content in response")
	}

	out := &types.Response{
		Content:      parsed.Content[0].Text,
		FinishReason: parsed.StopReason,
		Model:        parsed.Model,
	}
	if u := parsed.Usage; u != nil {
		out.TokensUsed = &types.TokenUsage{
			PromptTokens:     u.InputTokens,
			CompletionTokens: u.OutputTokens,
			TotalTokens:      u.InputTokens + u.OutputTokens,
		}
	}
	return out, nil
}

// ChatWithStructuredOutput implements structured output for Anthropic.
// Anthropic has no response_format parameter, so the schema is injected into
// the prompt and the reply is cleaned up afterwards.
func (a *AnthropicClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	instr, err := schemaInstruction(schema)
	if err != nil {
		return nil, err
	}
	resp, err := a.Chat(ctx, append(append([]types.Message{}, messages...), instr))
	if err != nil {
		return nil, err
	}
	resp.Content = ExtractJSONFromResponse(resp.Content)
	return resp, nil
}

// GetCapabilities returns the list of capabilities supported by this client.
func (a *AnthropicClient) GetCapabilities() []TaskCapability {
	return []TaskCapability{TaskReranking, TaskStructuredExtraction, TaskSummarization, TaskTextGeneration}
}

// Close cleans up resources (no-op for Anthropic client).
func (a *AnthropicClient) Close() error {
	return nil
}
