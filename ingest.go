package cirro

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nimbium/cirro/pkg/checkpoint"
	"github.com/nimbium/cirro/pkg/types"
	"github.com/nimbium/cirro/pkg/utils"
)

// DefaultIngestBatchSize is how many records go into one catalog write
// between checkpoint flushes.
const DefaultIngestBatchSize = 100

// IngestOptions tunes a bulk catalog load. The zero value stores
// records as-is with no embedding and checkpoints under the default
// directory.
type IngestOptions struct {
	// Embed computes dense vectors for records missing one. Ignored
	// when the client has no embedder.
	Embed bool `json:"embed"`
	// Workers sizes the embedding pool. Zero sizes it from the CPU
	// count.
	Workers int `json:"workers,omitempty"`
	// BatchSize is the catalog write chunk between checkpoint
	// flushes. Zero means DefaultIngestBatchSize.
	BatchSize int `json:"batch_size,omitempty"`
	// JobID names the resumable checkpoint. Empty derives it from the
	// source file name, or "inline" for in-memory loads.
	JobID string `json:"job_id,omitempty"`
	// CheckpointDir overrides where checkpoints live.
	CheckpointDir string `json:"checkpoint_dir,omitempty"`
	// SnapshotDir, when set, exports a Parquet catalog snapshot after
	// a successful ingest.
	SnapshotDir string `json:"snapshot_dir,omitempty"`
}

// IngestResult reports what one bulk load did.
type IngestResult struct {
	// Total is the number of usable records after validation.
	Total int `json:"total"`
	// Stored is how many records were written to the catalog.
	Stored int `json:"stored"`
	// Embedded is how many records received a dense vector this run.
	Embedded int `json:"embedded"`
	// Skipped counts records dropped for failing validation or
	// duplicating an earlier ID.
	Skipped int `json:"skipped"`
	// Failed lists IDs that could not be embedded. They are stored
	// without a vector and reachable through sparse retrieval.
	Failed []string `json:"failed,omitempty"`
	// Resumed is true when a prior incomplete run's checkpoint was
	// picked up.
	Resumed bool `json:"resumed"`
}

// IngestFile loads a catalog file into the store. The format follows
// the extension: .json (either a bare array or {"services": [...]}),
// .csv, .yaml or .yml.
func (c *Client) IngestFile(ctx context.Context, path string, opts *IngestOptions) (*IngestResult, error) {
	if c.store == nil {
		return nil, ErrNoCatalog
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var services []*types.CloudService
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		services, err = decodeServicesJSON(data)
	case ".csv":
		services, err = utils.UnmarshalCSV[types.CloudService](string(data), ',')
	case ".yaml", ".yml":
		services, err = utils.UnmarshalYAML[types.CloudService](string(data))
	default:
		return nil, fmt.Errorf("unsupported catalog format %q (want .json, .csv, .yaml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if opts == nil {
		opts = &IngestOptions{}
	}
	if opts.JobID == "" {
		opts.JobID = filepath.Base(path)
	}
	return c.ingest(ctx, services, path, opts)
}

// IngestServices loads records already in memory, for example from an
// API request body.
func (c *Client) IngestServices(ctx context.Context, services []*types.CloudService, opts *IngestOptions) (*IngestResult, error) {
	if c.store == nil {
		return nil, ErrNoCatalog
	}
	if opts == nil {
		opts = &IngestOptions{}
	}
	if opts.JobID == "" {
		opts.JobID = "inline"
	}
	return c.ingest(ctx, services, "inline", opts)
}

func (c *Client) ingest(ctx context.Context, services []*types.CloudService, source string, opts *IngestOptions) (*IngestResult, error) {
	manager, err := checkpoint.NewManager(opts.CheckpointDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint dir: %w", err)
	}

	valid, skipped := c.validateServices(services)

	cp, resumed, err := manager.LoadOrCreate(ctx, opts.JobID, source, len(valid))
	if err != nil {
		return nil, err
	}
	if resumed {
		c.logger.Info("resuming ingest",
			"job", opts.JobID, "attempt", cp.AttemptCount, "previous", cp.Progress())
	}
	cp.Skipped = skipped
	cp.Stored = 0
	cp.Embedded = 0

	result := &IngestResult{Total: len(valid), Skipped: skipped, Resumed: resumed}
	if len(valid) == 0 {
		cp.Completed = true
		if err := manager.Save(ctx, cp); err != nil {
			c.logger.Warn("failed to save ingest checkpoint", "job", opts.JobID, "error", err)
		}
		return result, nil
	}

	if opts.Embed && c.embedder != nil {
		result.Embedded = c.embedServices(ctx, valid, cp, opts.Workers)
		cp.Embedded = result.Embedded
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultIngestBatchSize
	}
	for start := 0; start < len(valid); start += batchSize {
		end := min(start+batchSize, len(valid))
		n, err := c.store.PutBatch(ctx, valid[start:end])
		cp.Stored += n
		result.Stored += n
		if err != nil {
			cp.LastError = err.Error()
			if saveErr := manager.Save(ctx, cp); saveErr != nil {
				c.logger.Warn("failed to save ingest checkpoint", "job", opts.JobID, "error", saveErr)
			}
			result.Failed = cp.FailedIDs
			return result, fmt.Errorf("catalog write failed after %d records: %w", cp.Stored, err)
		}
		if err := manager.Save(ctx, cp); err != nil {
			c.logger.Warn("failed to save ingest checkpoint", "job", opts.JobID, "error", err)
		}
	}

	cp.Completed = true
	cp.LastError = ""
	if err := manager.Save(ctx, cp); err != nil {
		c.logger.Warn("failed to save ingest checkpoint", "job", opts.JobID, "error", err)
	}
	result.Failed = cp.FailedIDs

	if err := c.retriever.Refresh(ctx); err != nil {
		return result, fmt.Errorf("ingest stored %d records but index refresh failed: %w", result.Stored, err)
	}

	if opts.SnapshotDir != "" {
		if _, err := c.SnapshotCatalog(ctx, opts.SnapshotDir); err != nil {
			c.logger.Warn("failed to snapshot catalog after ingest", "error", err)
		}
	}

	c.logger.Info("ingest complete",
		"job", opts.JobID,
		"stored", result.Stored,
		"embedded", result.Embedded,
		"skipped", result.Skipped,
		"failed", len(result.Failed),
	)
	return result, nil
}

// validateServices drops nil, invalid, and duplicate-ID records,
// keeping first-occurrence order.
func (c *Client) validateServices(services []*types.CloudService) ([]*types.CloudService, int) {
	valid := make([]*types.CloudService, 0, len(services))
	seen := make(map[string]struct{}, len(services))
	skipped := 0
	for _, svc := range services {
		if svc == nil {
			skipped++
			continue
		}
		if err := svc.Validate(); err != nil {
			c.logger.Warn("skipping invalid service record", "id", svc.ID, "error", err)
			skipped++
			continue
		}
		if _, dup := seen[svc.ID]; dup {
			c.logger.Warn("skipping duplicate service record", "id", svc.ID)
			skipped++
			continue
		}
		seen[svc.ID] = struct{}{}
		valid = append(valid, svc)
	}
	return valid, skipped
}

// embedServices fills missing dense vectors concurrently and returns
// how many records got one. Failures are recorded on the checkpoint and
// the records stay ingestable without a vector.
func (c *Client) embedServices(ctx context.Context, services []*types.CloudService, cp *checkpoint.IngestCheckpoint, workers int) int {
	toEmbed := make([]*types.CloudService, 0, len(services))
	for _, svc := range services {
		if len(svc.Embedding) == 0 {
			toEmbed = append(toEmbed, svc)
		}
	}
	if len(toEmbed) == 0 {
		return 0
	}

	pool := utils.NewWorkerPool(workers, func(ctx context.Context, svc *types.CloudService) (struct{}, error) {
		vec, err := c.embedder.EmbedSingle(ctx, svc.Document())
		if err != nil {
			return struct{}{}, err
		}
		svc.Embedding = vec
		return struct{}{}, nil
	})
	_, errs := pool.ProcessItems(ctx, toEmbed)

	embedded := 0
	for i, svc := range toEmbed {
		// Count by the vector itself rather than the error slot so a
		// worker that half-failed still reports what it produced.
		if len(svc.Embedding) > 0 {
			embedded++
			continue
		}
		cp.RecordFailure(svc.ID)
		if errs[i] != nil {
			c.logger.Warn("embedding failed, record stored without vector",
				"id", svc.ID, "error", errs[i])
		}
	}
	return embedded
}

// decodeServicesJSON accepts both a bare record array and the wrapped
// {"services": [...]} shape catalog exports use.
func decodeServicesJSON(data []byte) ([]*types.CloudService, error) {
	var services []*types.CloudService
	if err := json.Unmarshal(data, &services); err == nil {
		return services, nil
	}

	var wrapped struct {
		Services []*types.CloudService `json:"services"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Services, nil
}
