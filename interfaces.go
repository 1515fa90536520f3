package cirro

import (
	"context"

	"github.com/nimbium/cirro/pkg/catalog"
	"github.com/nimbium/cirro/pkg/query"
	"github.com/nimbium/cirro/pkg/types"
)

// This file defines focused interfaces so consumers can depend on the
// smallest surface that meets their needs. The full Cirro interface is
// composed from them.

// Recommender runs the recommendation pipeline. Use this interface when
// you only need answers, not catalog management.
type Recommender interface {
	// Recommend ranks pre-retrieved dense and sparse candidate lists
	// through fusion, pairwise reranking, and scoring.
	Recommend(ctx context.Context, userQuery string, requirements *types.UserRequirements, dense, sparse types.RankedList) (*types.PipelineResult, error)

	// RecommendQuery answers a free-text query end to end: parsing,
	// hybrid retrieval over the catalog, ranking, and an optional
	// narrative summary.
	RecommendQuery(ctx context.Context, rawQuery string, opts *QueryOptions) (*types.PipelineResult, error)

	// CompareProviders narrates how the providers in a finished run
	// stack up against each other.
	CompareProviders(ctx context.Context, result *types.PipelineResult) (string, error)
}

// QueryAnalyzer extracts structured requirements from free text.
type QueryAnalyzer interface {
	// ParseQuery returns the structured requirements, expanded search
	// text, and keywords found in the raw query.
	ParseQuery(ctx context.Context, rawQuery string) (*query.Result, error)
}

// CatalogManager provides record-level operations on the service
// catalog. Use this interface for CRUD without the ingest machinery.
type CatalogManager interface {
	// AddService validates, embeds, and stores one record, then
	// refreshes the retrieval index.
	AddService(ctx context.Context, svc *types.CloudService) error

	// GetService returns one record by ID.
	GetService(ctx context.Context, id string) (*types.CloudService, error)

	// ListServices returns every catalog record.
	ListServices(ctx context.Context) ([]*types.CloudService, error)

	// DeleteService removes one record and refreshes the index.
	DeleteService(ctx context.Context, id string) error

	// CatalogStats summarizes the catalog by provider and category.
	CatalogStats(ctx context.Context) (*catalog.Stats, error)

	// RefreshIndex rebuilds the retrieval index from the catalog.
	RefreshIndex(ctx context.Context) error
}

// CatalogLoader provides bulk load and export operations.
type CatalogLoader interface {
	// IngestFile loads a JSON, CSV, or YAML catalog file with
	// checkpointed resume and optional embedding.
	IngestFile(ctx context.Context, path string, opts *IngestOptions) (*IngestResult, error)

	// IngestServices loads records already in memory through the same
	// pipeline as IngestFile.
	IngestServices(ctx context.Context, services []*types.CloudService, opts *IngestOptions) (*IngestResult, error)

	// SnapshotCatalog exports the catalog as Parquet for offline
	// analysis.
	SnapshotCatalog(ctx context.Context, dir string) (int, error)
}

// Cirro is the full client surface: recommendation pipeline, query
// analysis, and catalog management.
type Cirro interface {
	Recommender
	QueryAnalyzer
	CatalogManager
	CatalogLoader

	// Close releases the catalog store and any collaborators the
	// client owns.
	Close(ctx context.Context) error
}

// Compile-time check that the concrete client covers the full surface.
var _ Cirro = (*Client)(nil)
