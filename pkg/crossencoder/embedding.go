package crossencoder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/nimbium/cirro/pkg/embedder"
	"github.com/nimbium/cirro/pkg/utils"
)

// EmbeddingRerankerClient implements cross-encoder functionality using
// embeddings: cosine similarity between the query vector and each passage
// vector. Not a true cross-encoder (those process query-document pairs
// together), but bi-encoder similarity is a solid reranking signal and
// reuses whatever embedding backend the catalog was indexed with.
type EmbeddingRerankerClient struct {
	emb embedder.Client
	cfg EmbeddingConfig
}

// EmbeddingConfig holds embedding-specific configuration
type EmbeddingConfig struct {
	Config
	// SimilarityThreshold drops passages scoring below it. Zero means
	// keep everything.
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	// NormalizeScores rescales surviving scores to the 0-1 range.
	NormalizeScores bool `json:"normalize_scores,omitempty"`
}

// NewEmbeddingRerankerClient wraps an embedder client as a reranker.
func NewEmbeddingRerankerClient(client embedder.Client, cfg EmbeddingConfig) *EmbeddingRerankerClient {
	return &EmbeddingRerankerClient{emb: client, cfg: cfg}
}

// Rank orders passages by cosine similarity to the query embedding.
func (c *EmbeddingRerankerClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return []RankedPassage{}, nil
	}
	if c.emb == nil {
		return nil, errors.New("embedder client is nil")
	}

	qvec, err := c.emb.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(qvec) == 0 {
		return nil, errors.New("empty query embedding")
	}

	vecs, err := c.emb.Embed(ctx, passages)
	if err != nil {
		return nil, fmt.Errorf("failed to embed passages: %w", err)
	}
	if len(vecs) != len(passages) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d passages", len(vecs), len(passages))
	}

	ranked := make([]RankedPassage, 0, len(passages))
	for i, p := range passages {
		score := utils.CosineSimilarity(qvec, vecs[i])
		if c.cfg.SimilarityThreshold != 0 && score < c.cfg.SimilarityThreshold {
			continue
		}
		ranked = append(ranked, RankedPassage{Passage: p, Score: score})
	}

	if c.cfg.NormalizeScores {
		normalizeScores(ranked)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	return ranked, nil
}

// normalizeScores rescales scores to the 0-1 range in place. When all
// scores are equal they all become 1.0.
func normalizeScores(ranked []RankedPassage) {
	if len(ranked) == 0 {
		return
	}

	lo, hi := ranked[0].Score, ranked[0].Score
	for _, r := range ranked[1:] {
		lo = math.Min(lo, r.Score)
		hi = math.Max(hi, r.Score)
	}

	if hi == lo {
		for i := range ranked {
			ranked[i].Score = 1.0
		}
		return
	}
	for i := range ranked {
		ranked[i].Score = (ranked[i].Score - lo) / (hi - lo)
	}
}

// Close closes the underlying embedder.
func (c *EmbeddingRerankerClient) Close() error {
	if c.emb != nil {
		return c.emb.Close()
	}
	return nil
}
