package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/nimbium/cirro/pkg/nlp"
)

// modelDimensions maps known OpenAI embedding models to their vector width.
var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// OpenAIEmbedder implements the Client interface for OpenAI's embedding
// models. It also serves OpenAI-compatible services through a custom BaseURL.
type OpenAIEmbedder struct {
	sdk *openai.Client
	cfg Config
}

// NewOpenAIEmbedder creates a new OpenAI embedding client.
func NewOpenAIEmbedder(apiKey string, cfg Config) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	var sdk *openai.Client
	if cfg.BaseURL != "" {
		// Self-hosted endpoints often run without authentication, but the
		// SDK insists on a key.
		if apiKey == "" {
			apiKey = "dummy-key"
		}
		sc := openai.DefaultConfig(apiKey)
		sc.BaseURL = cfg.BaseURL
		sdk = openai.NewClientWithConfig(sc)
	} else {
		sdk = openai.NewClient(apiKey)
	}

	return &OpenAIEmbedder{sdk: sdk, cfg: cfg}
}

// Embed generates embeddings for the given texts, batching requests to
// stay within provider limits.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))

		resp, err := e.sdk.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(e.cfg.Model),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedding request failed: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), end-start)
		}

		for _, item := range resp.Data {
			out = append(out, item.Embedding)
		}
	}

	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return vecs[0], nil
}

// Dimensions returns the vector width for the configured model.
func (e *OpenAIEmbedder) Dimensions() int {
	if e.cfg.Dimensions > 0 {
		return e.cfg.Dimensions
	}
	if dims, ok := modelDimensions[e.cfg.Model]; ok {
		return dims
	}
	return DefaultDimensions
}

// Close cleans up resources (no-op for OpenAI client).
func (e *OpenAIEmbedder) Close() error {
	return nil
}

// GetCapabilities returns the list of capabilities supported by this client.
func (e *OpenAIEmbedder) GetCapabilities() []nlp.TaskCapability {
	return []nlp.TaskCapability{nlp.TaskEmbedding}
}
