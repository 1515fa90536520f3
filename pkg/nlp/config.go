package nlp

// ModelSize selects between the configured model tiers.
type ModelSize string

const (
	// ModelSizeSmall is the cheap tier for high-volume work such as
	// pairwise relevance comparisons.
	ModelSizeSmall ModelSize = "small"
	// ModelSizeMedium is the default tier for requirement parsing and
	// summaries.
	ModelSizeMedium ModelSize = "medium"
)

const DefaultMaxTokens = 8192

const DefaultTemperature = 0.0

// LLMConfig holds per-provider LLM client settings.
type LLMConfig struct {
	// APIKey is excluded from JSON so serialized configs cannot leak it.
	APIKey  string `json:"-"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`

	// Temperature defaults to 0.0 so repeated ranking runs order the
	// same way. TopP, TopK and MinP are passed through to providers
	// that support them, such as LM Studio.
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	MinP        float32 `json:"min_p,omitempty"`

	MaxRetries int `json:"max_retries,omitempty"`

	// SmallModel, when set, serves ModelSizeSmall requests.
	SmallModel string `json:"small_model,omitempty"`
}

// NewLLMConfig returns a config with deterministic-generation defaults.
func NewLLMConfig() *LLMConfig {
	return &LLMConfig{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// WithAPIKey sets the API key
func (cfg *LLMConfig) WithAPIKey(apiKey string) *LLMConfig {
	cfg.APIKey = apiKey
	return cfg
}

// WithModel sets the model
func (cfg *LLMConfig) WithModel(model string) *LLMConfig {
	cfg.Model = model
	return cfg
}

// WithBaseURL sets the base URL
func (cfg *LLMConfig) WithBaseURL(baseURL string) *LLMConfig {
	cfg.BaseURL = baseURL
	return cfg
}

// WithTemperature sets the temperature
func (cfg *LLMConfig) WithTemperature(temperature float32) *LLMConfig {
	cfg.Temperature = temperature
	return cfg
}

// WithMaxTokens sets the max tokens
func (cfg *LLMConfig) WithMaxTokens(maxTokens int) *LLMConfig {
	cfg.MaxTokens = maxTokens
	return cfg
}

// ModelFor returns the model identifier for the requested size, falling back
// to the primary model when no small model is configured.
func (cfg *LLMConfig) ModelFor(size ModelSize) string {
	if size == ModelSizeSmall && cfg.SmallModel != "" {
		return cfg.SmallModel
	}
	return cfg.Model
}
