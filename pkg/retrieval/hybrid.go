// Package retrieval produces the dense and sparse candidate lists the
// fusion stage consumes. The sparse signal is an in-memory BM25 index
// over catalog documents; the dense signal ranks stored embedding
// vectors by cosine similarity against the embedded query. The two run
// concurrently, and failure of one degrades the run to the other signal
// rather than failing it.
package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nimbium/cirro/pkg/embedder"
	"github.com/nimbium/cirro/pkg/types"
)

// Default list depths and the sparse score floor.
const (
	DefaultDenseTopK  = 30
	DefaultSparseTopK = 30
	DefaultMinScore   = 0.3
)

// Source supplies the catalog records to index. *catalog.Store satisfies
// it.
type Source interface {
	List(ctx context.Context) ([]*types.CloudService, error)
}

// Filters restricts retrieval to matching catalog records. Zero values
// match everything.
type Filters struct {
	Provider types.Provider        `json:"provider,omitempty"`
	Category types.ServiceCategory `json:"category,omitempty"`
}

// Matches reports whether the service passes the filters. A nil filter
// set matches everything.
func (f *Filters) Matches(svc *types.CloudService) bool {
	if f == nil {
		return true
	}
	if f.Provider != "" && svc.Provider != f.Provider {
		return false
	}
	if f.Category != "" && svc.Category != f.Category {
		return false
	}
	return true
}

// Config holds the retrieval depths and BM25 shape parameters.
type Config struct {
	// DenseTopK is the dense list depth.
	DenseTopK int `json:"dense_top_k"`
	// SparseTopK is the sparse list depth.
	SparseTopK int `json:"sparse_top_k"`
	// K1 and B are the BM25 shape parameters.
	K1 float64 `json:"bm25_k1"`
	B  float64 `json:"bm25_b"`
	// MinScore drops sparse hits scoring below it. Negative is treated
	// as zero.
	MinScore float64 `json:"min_score"`
}

// Retriever runs hybrid retrieval over a catalog snapshot. The index is
// built lazily on first use and rebuilt on Refresh; reads and rebuilds
// are safe concurrently.
type Retriever struct {
	source   Source
	embedder embedder.Client
	config   Config
	logger   *slog.Logger

	mu    sync.RWMutex
	index *BM25Index
	docs  []*types.CloudService
}

// NewRetriever creates a retriever over the given catalog source. A nil
// embedder disables the dense signal.
func NewRetriever(source Source, embedderClient embedder.Client, config Config, logger *slog.Logger) *Retriever {
	if config.DenseTopK <= 0 {
		config.DenseTopK = DefaultDenseTopK
	}
	if config.SparseTopK <= 0 {
		config.SparseTopK = DefaultSparseTopK
	}
	if config.MinScore < 0 {
		config.MinScore = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		source:   source,
		embedder: embedderClient,
		config:   config,
		logger:   logger,
	}
}

// Refresh rebuilds the index from the catalog source. Call it after
// ingesting records; Retrieve also builds the index on first use.
func (r *Retriever) Refresh(ctx context.Context) error {
	services, err := r.source.List(ctx)
	if err != nil {
		return err
	}
	index := NewBM25Index(services, r.config.K1, r.config.B)

	r.mu.Lock()
	r.index = index
	r.docs = services
	r.mu.Unlock()

	r.logger.Debug("retrieval index rebuilt", "documents", index.Len())
	return nil
}

func (r *Retriever) snapshot(ctx context.Context) (*BM25Index, []*types.CloudService, error) {
	r.mu.RLock()
	index, docs := r.index, r.docs
	r.mu.RUnlock()
	if index != nil {
		return index, docs, nil
	}

	if err := r.Refresh(ctx); err != nil {
		return nil, nil, err
	}
	r.mu.RLock()
	index, docs = r.index, r.docs
	r.mu.RUnlock()
	return index, docs, nil
}

// Retrieve runs the dense and sparse searches concurrently and returns
// both lists with 1-based rank stamps. One signal failing degrades the
// run to the other; the error is joint failure, an empty query yields
// two empty lists.
func (r *Retriever) Retrieve(ctx context.Context, query string, filters *Filters) (dense, sparse types.RankedList, err error) {
	if strings.TrimSpace(query) == "" {
		return types.RankedList{}, types.RankedList{}, nil
	}

	index, docs, err := r.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	var denseErr error
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if r.embedder == nil {
			dense = types.RankedList{}
			return nil
		}
		// The dense branch reports through denseErr instead of its
		// return value, so a failed embedding call cannot cancel the
		// sibling search.
		dense, denseErr = r.denseSearch(egCtx, query, docs, filters)
		return nil
	})

	eg.Go(func() error {
		// The sparse branch is pure in-memory term math; it has no
		// failure mode of its own.
		top := index.Search(query, r.config.SparseTopK, r.config.MinScore, filters)
		list := make(types.RankedList, 0, len(top))
		for i, item := range top {
			c := item.Item.Candidate()
			c.Scores.SparseRank = i + 1
			list = append(list, c)
		}
		sparse = list
		return nil
	})

	if waitErr := eg.Wait(); waitErr != nil {
		return nil, nil, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if denseErr != nil {
		if len(sparse) == 0 {
			return nil, nil, denseErr
		}
		r.logger.Warn("dense retrieval failed, degrading to sparse only", "error", denseErr)
		dense = types.RankedList{}
	}

	r.logger.Debug("retrieved candidates",
		"query_len", len(query),
		"dense", len(dense),
		"sparse", len(sparse))

	return dense, sparse, nil
}
