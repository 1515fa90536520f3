// Package nlp provides the language model clients behind the recommendation
// pipeline's pairwise comparisons, requirement parsing, and summaries.
//
// The Client interface abstracts chat-style models. Native implementations
// cover OpenAI, Anthropic, Azure OpenAI, and Gemini, plus any service that
// speaks the OpenAI chat API (Ollama, vLLM, LM Studio).
//
// Cross-cutting behavior comes from composable wrappers around a Client:
// RetryClient adds exponential backoff, TokenTrackingClient records usage
// and cost, CircuitBreakerClient fails fast during provider outages, and
// RouterClient picks a provider per usage class.
//
//	client, err := nlp.NewOpenAIClient(nlp.NewLLMConfig().WithAPIKey(apiKey))
//	retryClient := nlp.NewRetryClient(client, nlp.DefaultRetryConfig(), logger)
//	response, err := retryClient.Chat(ctx, messages)
//
// Failure modes surface as typed errors (RateLimitError, RefusalError,
// EmptyResponseError) that work with errors.Is and errors.As.
package nlp
