package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/go-embedeverything/pkg/embedder"

	"github.com/nimbium/cirro/pkg/nlp"
)

// localModelDimensions maps common local embedding models to their vector width.
var localModelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"BAAI/bge-base-en-v1.5":                  768,
}

// EmbedEverythingClient produces embeddings with a locally loaded model, no
// network dependency involved.
type EmbedEverythingClient struct {
	model *embedder.Embedder
	cfg   *EmbedEverythingConfig
}

// EmbedEverythingConfig extends Config with EmbedEverything-specific settings.
type EmbedEverythingConfig struct {
	*Config
}

// NewEmbedEverythingClient loads the configured embedding model, defaulting
// missing config fields.
func NewEmbedEverythingClient(cfg *EmbedEverythingConfig) (*EmbedEverythingClient, error) {
	if cfg == nil {
		cfg = &EmbedEverythingConfig{}
	}
	if cfg.Config == nil {
		cfg.Config = &Config{}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLocalModel
	}

	m, err := embedder.NewEmbedder(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding model %s: %w", cfg.Model, err)
	}

	return &EmbedEverythingClient{model: m, cfg: cfg}, nil
}

// Embed returns one vector per input text, in input order.
func (e *EmbedEverythingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// The underlying library takes no context; cancellation only takes
	// effect between calls.
	vecs, err := e.model.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts: %w", len(texts), err)
	}
	return vecs, nil
}

// EmbedSingle returns the vector for one text.
func (e *EmbedEverythingClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return vecs[0], nil
}

// Dimensions reports the vector width, preferring explicit config over the
// known width of the loaded model.
func (e *EmbedEverythingClient) Dimensions() int {
	if e.cfg.Dimensions > 0 {
		return e.cfg.Dimensions
	}
	if dims, ok := localModelDimensions[e.cfg.Model]; ok {
		return dims
	}
	return localModelDimensions[DefaultLocalModel]
}

// Close releases the loaded model.
func (e *EmbedEverythingClient) Close() error {
	e.model.Close()
	return nil
}

// GetCapabilities reports embedding support.
func (e *EmbedEverythingClient) GetCapabilities() []nlp.TaskCapability {
	return []nlp.TaskCapability{nlp.TaskEmbedding}
}
