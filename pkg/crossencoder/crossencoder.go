/*
Package crossencoder scores passages against a query and returns them
sorted by relevance. In this pipeline it reranks cloud service listings
against an infrastructure request and backs the pairwise judge's
scoring calls.

Five implementations share the Client interface: model-backed scoring
through any nlp.Client, bi-encoder cosine similarity over an
embedder.Client, term-frequency similarity with no model at all, local
cross-encoder models through go-embedeverything, and a deterministic
mock for tests.

Most callers go through the factory:

	rr, err := crossencoder.NewClient(crossencoder.ClientConfig{
		Provider: crossencoder.ProviderLocal,
		Config:   crossencoder.DefaultConfig(crossencoder.ProviderLocal),
	})
	if err != nil {
		return err
	}
	defer rr.Close()

	ranked, err := rr.Rank(ctx, "managed postgres with encryption", listings)
*/
package crossencoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimbium/cirro/pkg/embedder"
	"github.com/nimbium/cirro/pkg/nlp"
)

// Client defines the interface for cross-encoder reranking.
type Client interface {
	// Rank scores the given passages against the query and returns them
	// sorted by descending relevance.
	Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error)

	// Close cleans up any resources.
	Close() error
}

// RankedPassage is one passage with its relevance score.
type RankedPassage struct {
	Passage string  `json:"passage"`
	Score   float64 `json:"score"`
}

// Config holds settings shared by all cross-encoder clients.
type Config struct {
	Model          string `json:"model,omitempty"`
	BatchSize      int    `json:"batch_size,omitempty"`
	MaxConcurrency int    `json:"max_concurrency,omitempty"`
}

// Provider selects a reranking implementation.
type Provider string

const (
	ProviderLLM             Provider = "llm"             // language model scoring through nlp.Client
	ProviderLocal           Provider = "local"           // term-frequency cosine similarity
	ProviderMock            Provider = "mock"            // deterministic scores for tests
	ProviderEmbedding       Provider = "embedding"       // bi-encoder cosine similarity
	ProviderEmbedEverything Provider = "embedeverything" // local cross-encoder model
)

// ClientConfig selects and configures a cross-encoder client.
type ClientConfig struct {
	Provider              Provider               `json:"provider"`
	Config                Config                 `json:"config"`
	NLPClient             nlp.Client             `json:"-"` // required by ProviderLLM
	EmbedderClient        embedder.Client        `json:"-"` // required by ProviderEmbedding
	EmbeddingConfig       *EmbeddingConfig       `json:"embedding_config,omitempty"`
	EmbedEverythingConfig *EmbedEverythingConfig `json:"embedeverything_config,omitempty"`
}

// NewClient builds the reranker for the configured provider.
func NewClient(cc ClientConfig) (Client, error) {
	switch cc.Provider {
	case ProviderLLM:
		if cc.NLPClient == nil {
			return nil, errors.New("llm provider requires an nlp client")
		}
		return NewLLMRerankerClient(cc.NLPClient, cc.Config), nil

	case ProviderLocal:
		return NewLocalRerankerClient(cc.Config), nil

	case ProviderMock:
		return NewMockRerankerClient(cc.Config), nil

	case ProviderEmbedding:
		if cc.EmbedderClient == nil {
			return nil, errors.New("embedding provider requires an embedder client")
		}
		if cc.EmbeddingConfig != nil {
			return NewEmbeddingRerankerClient(cc.EmbedderClient, *cc.EmbeddingConfig), nil
		}
		return NewEmbeddingRerankerClient(cc.EmbedderClient, EmbeddingConfig{Config: cc.Config}), nil

	case ProviderEmbedEverything:
		eec := cc.EmbedEverythingConfig
		if eec == nil {
			eec = &EmbedEverythingConfig{Config: &cc.Config}
		}
		return NewEmbedEverythingClient(eec)

	default:
		return nil, fmt.Errorf("unsupported cross-encoder provider: %s", cc.Provider)
	}
}

// DefaultConfig returns the default configuration for a provider.
func DefaultConfig(p Provider) Config {
	switch p {
	case ProviderLLM:
		return Config{Model: "gpt-4o-mini", BatchSize: 10, MaxConcurrency: 5}
	case ProviderLocal, ProviderMock:
		return Config{BatchSize: 100}
	case ProviderEmbedding:
		return Config{BatchSize: 50, MaxConcurrency: 10}
	case ProviderEmbedEverything:
		// The loaded model is not safe for concurrent calls.
		return Config{Model: "BAAI/bge-reranker-base", BatchSize: 100, MaxConcurrency: 1}
	default:
		return Config{}
	}
}
