package crossencoder

import (
	"context"
	"fmt"
	"sort"

	"github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// EmbedEverythingClient runs a local cross-encoder model through
// go-embedeverything. First use downloads and caches the model weights.
type EmbedEverythingClient struct {
	rr  *embedder.Reranker
	cfg *EmbedEverythingConfig
}

// EmbedEverythingConfig extends Config with EmbedEverything-specific settings.
type EmbedEverythingConfig struct {
	*Config
}

// NewEmbedEverythingClient loads the configured cross-encoder model. A nil or
// partial config falls back to the provider default.
func NewEmbedEverythingClient(cfg *EmbedEverythingConfig) (*EmbedEverythingClient, error) {
	if cfg == nil {
		cfg = &EmbedEverythingConfig{}
	}
	if cfg.Config == nil {
		cfg.Config = &Config{}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig(ProviderEmbedEverything).Model
	}

	rr, err := embedder.NewReranker(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load reranker model %s: %w", cfg.Model, err)
	}

	return &EmbedEverythingClient{rr: rr, cfg: cfg}, nil
}

// Rank scores passages against the query and returns them in descending
// score order.
func (e *EmbedEverythingClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return []RankedPassage{}, nil
	}

	// The underlying library takes no context; cancellation only takes
	// effect between calls.
	scored, err := e.rr.Rerank(query, passages)
	if err != nil {
		return nil, fmt.Errorf("failed to rerank %d passages: %w", len(passages), err)
	}

	ranked := make([]RankedPassage, 0, len(scored))
	for _, res := range scored {
		ranked = append(ranked, RankedPassage{Passage: res.Text, Score: float64(res.Score)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	return ranked, nil
}

// Close releases the loaded model.
func (e *EmbedEverythingClient) Close() error {
	e.rr.Close()
	return nil
}
