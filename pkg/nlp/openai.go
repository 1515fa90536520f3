package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/nimbium/cirro/pkg/types"
)

// OpenAIClient implements the Client interface for OpenAI's language models.
// It also serves OpenAI-compatible services (vLLM, Ollama, LM Studio) through
// a custom BaseURL.
type OpenAIClient struct {
	sdk *openai.Client
	cfg *LLMConfig
}

// NewOpenAIClient creates a new OpenAI client.
// Supports OpenAI-compatible services through custom BaseURL configuration.
func NewOpenAIClient(cfg *LLMConfig) (*OpenAIClient, error) {
	if cfg == nil {
		cfg = NewLLMConfig()
	}

	sdk, err := newOpenAISDK(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
		if cfg.BaseURL != "" {
			// Compatible services rarely know OpenAI model names; this one
			// is the most commonly aliased.
			cfg.Model = openai.GPT3Dot5Turbo
		}
	}

	return &OpenAIClient{sdk: sdk, cfg: cfg}, nil
}

// newOpenAISDK builds the underlying SDK client, pointed at a custom base
// URL when one is configured.
func newOpenAISDK(cfg *LLMConfig) (*openai.Client, error) {
	if cfg.BaseURL == "" {
		return openai.NewClient(cfg.APIKey), nil
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("base URL %q: %w", cfg.BaseURL, err)
	}

	// Self-hosted endpoints often run without authentication, but the SDK
	// insists on a key.
	key := cfg.APIKey
	if key == "" {
		key = "dummy-key"
	}

	sc := openai.DefaultConfig(key)
	sc.BaseURL = cfg.BaseURL
	// Most compatible services mount the API under /v1.
	if !hasAPIPath(sc.BaseURL) {
		sc.BaseURL += "/v1"
	}
	return openai.NewClientWithConfig(sc), nil
}

// classifyAPIError maps SDK errors onto the package's typed errors where a
// well-known failure mode applies.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		return NewRateLimitError(apiErr.Message)
	case http.StatusNotFound:
		if code, ok := apiErr.Code.(string); ok && code == "model_not_found" {
			return fmt.Errorf("%w: %s", ErrInvalidModel, apiErr.Message)
		}
	}
	return err
}

// backend names the endpoint kind for error messages.
func (c *OpenAIClient) backend() string {
	if c.cfg.BaseURL != "" {
		return "openai-compatible"
	}
	return "openai"
}

// Chat sends a chat completion request to OpenAI or an OpenAI-compatible service.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.sdk.CreateChatCompletion(ctx, c.chatRequest(messages, false))
	if err != nil {
		return nil, fmt.Errorf("%s chat completion failed: %w", c.backend(), classifyAPIError(err))
	}
	return c.toResponse(resp)
}

// ChatWithStructuredOutput sends a chat completion request with JSON output enforced.
func (c *OpenAIClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	resp, err := c.sdk.CreateChatCompletion(ctx, c.chatRequest(messages, true))
	if err != nil {
		return nil, fmt.Errorf("openai structured output failed: %w", classifyAPIError(err))
	}
	out, err := c.toResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Content = ExtractJSONFromResponse(out.Content)
	return out, nil
}

// GetCapabilities returns the list of capabilities supported by this client.
func (c *OpenAIClient) GetCapabilities() []TaskCapability {
	return []TaskCapability{TaskReranking, TaskStructuredExtraction, TaskSummarization, TaskTextGeneration}
}

// Close cleans up resources (no-op for OpenAI client).
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) toResponse(r openai.ChatCompletionResponse) (*types.Response, error) {
	if len(r.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices returned from " + c.backend())
	}

	first := r.Choices[0]
	out := &types.Response{
		Content:      first.Message.Content,
		FinishReason: string(first.FinishReason),
		Model:        r.Model,
	}

	// Some compatible services omit usage counts entirely.
	if u := r.Usage; u.TotalTokens > 0 {
		out.TokensUsed = &types.TokenUsage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// jsonObjectFormat asks the service for a bare JSON object reply. The stricter
// json_schema mode is avoided because most compatible services reject it.
var jsonObjectFormat = &openai.ChatCompletionResponseFormat{
	Type: openai.ChatCompletionResponseFormatTypeJSONObject,
}

func (c *OpenAIClient) chatRequest(messages []types.Message, structured bool) openai.ChatCompletionRequest {
	wire := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		wire[i] = openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content}
	}

	req := openai.ChatCompletionRequest{Model: c.cfg.Model, Messages: wire}

	// go-openai drops a zero temperature from the request, so the smallest
	// representable value stands in for an explicit 0.
	req.Temperature = math.SmallestNonzeroFloat32
	if c.cfg.Temperature > 0 {
		req.Temperature = c.cfg.Temperature
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	if c.cfg.TopP > 0 {
		req.TopP = c.cfg.TopP
	}

	if structured {
		req.ResponseFormat = jsonObjectFormat
		// OpenAI-compatible services often ignore response_format unless
		// the prompt itself asks for JSON.
		if c.cfg.BaseURL != "" && len(req.Messages) > 0 {
			if last := &req.Messages[len(req.Messages)-1]; last.Role == string(RoleUser) {
				last.Content += "\n\nPlease respond with valid JSON only."
			}
		}
	}

	return req
}

// validateBaseURL rejects URLs that lack an http or https scheme.
func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("baseURL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return nil
	case "":
		return errors.New("baseURL must include scheme (http:// or https://)")
	default:
		return errors.New("baseURL must use http:// or https:// scheme")
	}
}

// hasAPIPath reports whether the base URL already ends in an API path
// component such as /v1.
func hasAPIPath(raw string) bool {
	for _, suffix := range []string{"/v1", "/api", "/v1/", "/api/"} {
		if strings.HasSuffix(raw, suffix) {
			return true
		}
	}
	return false
}
