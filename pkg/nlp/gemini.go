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

// GeminiClient implements the Client interface for Google Gemini models.
type GeminiClient struct {
	cfg *LLMConfig
	hc  *http.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg *LLMConfig) *GeminiClient {
	if cfg == nil {
		cfg = NewLLMConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GeminiClient{cfg: cfg, hc: &http.Client{Timeout: 30 * time.Second}}
}

// Gemini generateContent wire types.
type geminiGenerateRequest struct {
	Contents         []geminiMessage  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiMessage struct {
	Role  string           `json:"role"`
	Parts []geminiTextPart `json:"parts"`
}

type geminiTextPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
	Error         *geminiAPIError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiMessage `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiAPIError struct {
	Code    int               `json:"code"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Details []json.RawMessage `json:"details,omitempty"`
}

// toGeminiMessages converts pipeline messages to the Gemini wire shape.
// Gemini has no system role, so system text folds into the nearest user turn,
// and the assistant role is renamed "model".
func toGeminiMessages(messages []types.Message) []geminiMessage {
	out := make([]geminiMessage, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.Role == RoleSystem && len(out) == 0:
			out = append(out, geminiMessage{Role: "user", Parts: []geminiTextPart{{Text: msg.Content}}})
		case msg.Role == RoleSystem:
			for i := len(out) - 1; i >= 0; i-- {
				if out[i].Role == "user" {
					out[i].Parts[0].Text = msg.Content + "\n\n" + out[i].Parts[0].Text
					break
				}
			}
		case msg.Role == RoleAssistant:
			out = append(out, geminiMessage{Role: "model", Parts: []geminiTextPart{{Text: msg.Content}}})
		default:
			out = append(out, geminiMessage{Role: string(msg.Role), Parts: []geminiTextPart{{Text: msg.Content}}})
		}
	}
	return out
}

// Chat implements the Client interface for Gemini.
func (c *GeminiClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}

	body, err := c.post(ctx, geminiGenerateRequest{
		Contents: toGeminiMessages(messages),
		GenerationConfig: &geminiGenConfig{
			Temperature:     float64(c.cfg.Temperature),
			MaxOutputTokens: c.cfg.MaxTokens,
			TopP:            float64(c.cfg.TopP),
			TopK:            c.cfg.TopK,
		},
	})
	if err != nil {
		return nil, err
	}
	return parseGeminiGenerate(body, c.cfg.Model)
}

// post sends req to the model's generateContent endpoint and returns the raw
// response body.
func (c *GeminiClient) post(ctx context.Context, req geminiGenerateRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	return httpPostJSON(ctx, c.hc, "gemini", endpoint, nil, payload)
}

func parseGeminiGenerate(body []byte, model string) (*types.Response, error) {
	var parsed geminiGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if e := parsed.Error; e != nil {
		return nil, fmt.Errorf("gemini error %s (code %d): %s", e.Status, e.Code, e.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, NewEmptyResponseError("no content in response")
	}

	first := parsed.Candidates[0]
	out := &types.Response{
		Content:      first.Content.Parts[0].Text,
		FinishReason: first.FinishReason,
		Model:        model,
	}
	if u := parsed.UsageMetadata; u != nil {
		out.TokensUsed = &types.TokenUsage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return out, nil
}

// ChatWithStructuredOutput appends a schema instruction to the conversation,
// since Gemini structured output here rides on prompt engineering rather than
// a response_format switch.
func (c *GeminiClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
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
func (c *GeminiClient) GetCapabilities() []TaskCapability {
	return []TaskCapability{TaskReranking, TaskStructuredExtraction, TaskSummarization, TaskTextGeneration}
}

// Close cleans up resources (no-op for Gemini client).
func (c *GeminiClient) Close() error {
	return nil
}
