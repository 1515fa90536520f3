package cirro

import (
	"context"
	"fmt"

	"github.com/nimbium/cirro/pkg/catalog"
	"github.com/nimbium/cirro/pkg/types"
	"github.com/nimbium/cirro/pkg/utils"
)

// AddService validates and stores one catalog record, embeds it when an
// embedder is configured, and refreshes the retrieval index. Embedding
// trouble stores the record without a vector; sparse retrieval still
// finds it.
func (c *Client) AddService(ctx context.Context, svc *types.CloudService) error {
	if c.store == nil {
		return ErrNoCatalog
	}
	if svc == nil {
		return ErrEmptyService
	}
	if err := svc.Validate(); err != nil {
		return fmt.Errorf("invalid service record: %w", err)
	}

	if c.embedder != nil && len(svc.Embedding) == 0 {
		vec, err := c.embedder.EmbedSingle(ctx, svc.Document())
		if err != nil {
			c.logger.Warn("failed to embed service, storing without vector",
				"id", svc.ID, "error", err)
		} else {
			svc.Embedding = vec
		}
	}

	if err := c.store.Put(ctx, svc); err != nil {
		return err
	}
	return c.retriever.Refresh(ctx)
}

// GetService returns one catalog record by ID. A missing record yields
// catalog.ErrNotFound.
func (c *Client) GetService(ctx context.Context, id string) (*types.CloudService, error) {
	if c.store == nil {
		return nil, ErrNoCatalog
	}
	return c.store.Get(ctx, id)
}

// ListServices returns every catalog record.
func (c *Client) ListServices(ctx context.Context) ([]*types.CloudService, error) {
	if c.store == nil {
		return nil, ErrNoCatalog
	}
	return c.store.List(ctx)
}

// DeleteService removes one record and refreshes the retrieval index.
// Deleting a missing ID is not an error.
func (c *Client) DeleteService(ctx context.Context, id string) error {
	if c.store == nil {
		return ErrNoCatalog
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	return c.retriever.Refresh(ctx)
}

// CatalogStats summarizes the catalog by provider and category.
func (c *Client) CatalogStats(ctx context.Context) (*catalog.Stats, error) {
	if c.store == nil {
		return nil, ErrNoCatalog
	}
	return c.store.Stats(ctx)
}

// RefreshIndex rebuilds the retrieval index from the catalog. Writes
// through this client refresh automatically; call this after loading
// data behind the client's back.
func (c *Client) RefreshIndex(ctx context.Context) error {
	if c.retriever == nil {
		return ErrNoCatalog
	}
	return c.retriever.Refresh(ctx)
}

// SnapshotCatalog exports the full catalog as a Parquet file under dir
// and returns the number of records written.
func (c *Client) SnapshotCatalog(ctx context.Context, dir string) (int, error) {
	if c.store == nil {
		return 0, ErrNoCatalog
	}
	services, err := c.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list catalog: %w", err)
	}

	writer, err := utils.NewParquetCatalogWriter(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot writer: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteServices(ctx, services); err != nil {
		return 0, fmt.Errorf("failed to write catalog snapshot: %w", err)
	}
	c.logger.Info("catalog snapshot written", "dir", dir, "services", len(services))
	return len(services), nil
}
