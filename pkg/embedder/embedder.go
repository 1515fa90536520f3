package embedder

import (
	"context"
	"fmt"
)

// Default model and sizing applied when the config leaves them unset.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "BAAI/bge-small-en-v1.5"
	DefaultBatchSize   = 100
	DefaultDimensions  = 1536
)

// Client defines the interface for text embedding operations.
type Client interface {
	// Embed generates embeddings for the given texts, one vector per text
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the width of the vectors this client produces.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds settings shared by all embedding clients.
type Config struct {
	Model      string `json:"model"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	BatchSize  int    `json:"batch_size,omitempty"`
}

// Provider identifies an embedding backend.
type Provider string

const (
	// ProviderOpenAI embeds through the OpenAI API or any
	// OpenAI-compatible endpoint.
	ProviderOpenAI Provider = "openai"

	// ProviderEmbedEverything embeds locally with go-embedeverything.
	ProviderEmbedEverything Provider = "embedeverything"
)

// NewClient creates an embedding client for the given provider.
func NewClient(provider Provider, apiKey string, config Config) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIEmbedder(apiKey, config), nil

	case ProviderEmbedEverything:
		return NewEmbedEverythingClient(&EmbedEverythingConfig{Config: &config})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
