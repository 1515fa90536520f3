// Package checkpoint persists ingestion progress to disk so long
// embedding runs can resume after a crash or an interrupted process
// without redoing finished work. Checkpoints are plain JSON files, one
// per ingest job, written atomically.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidJobID is returned when a job ID cannot be used as a file
// name, such as one containing path separators or traversal sequences.
var ErrInvalidJobID = errors.New("invalid job ID: contains path traversal or invalid characters")

// IngestCheckpoint records how far one ingest job got.
type IngestCheckpoint struct {
	JobID      string `json:"job_id"`
	SourcePath string `json:"source_path"`

	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`

	// Counters over the source records. Stored counts catalog writes,
	// Embedded counts records that also received a vector, Skipped
	// counts records rejected by validation or already present.
	TotalRecords int `json:"total_records"`
	Stored       int `json:"stored"`
	Embedded     int `json:"embedded"`
	Skipped      int `json:"skipped"`

	// FailedIDs lists records whose embedding call failed; a resumed
	// run retries exactly these.
	FailedIDs []string `json:"failed_ids,omitempty"`

	Completed bool `json:"completed"`
}

// New creates a fresh checkpoint for a job.
func New(jobID, sourcePath string, totalRecords int) *IngestCheckpoint {
	now := time.Now()
	return &IngestCheckpoint{
		JobID:         jobID,
		SourcePath:    sourcePath,
		CreatedAt:     now,
		LastUpdatedAt: now,
		AttemptCount:  1,
		TotalRecords:  totalRecords,
	}
}

// RecordFailure notes a record whose embedding failed. Duplicate IDs are
// kept once.
func (c *IngestCheckpoint) RecordFailure(id string) {
	for _, existing := range c.FailedIDs {
		if existing == id {
			return
		}
	}
	c.FailedIDs = append(c.FailedIDs, id)
}

// Progress renders a one-line human-readable status.
func (c *IngestCheckpoint) Progress() string {
	pct := 0.0
	if c.TotalRecords > 0 {
		pct = float64(c.Stored) / float64(c.TotalRecords) * 100
	}
	return fmt.Sprintf("stored %d/%d (%.0f%%), embedded %d, skipped %d, %d failed",
		c.Stored, c.TotalRecords, pct, c.Embedded, c.Skipped, len(c.FailedIDs))
}

// CanRetry reports whether a resumed run should pick this job up again.
func (c *IngestCheckpoint) CanRetry(maxAttempts int, maxAge time.Duration) bool {
	if c.Completed {
		return false
	}
	if maxAttempts > 0 && c.AttemptCount >= maxAttempts {
		return false
	}
	if maxAge > 0 && time.Since(c.LastUpdatedAt) > maxAge {
		return false
	}
	return true
}

// Manager stores checkpoints as JSON files under one directory.
type Manager struct {
	dir string
}

// NewManager creates a checkpoint manager rooted at dir, which is
// created if missing. An empty dir defaults to a directory under the
// system temp path.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "cirro-checkpoints")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir %s: %w", dir, err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the checkpoint directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// validateJobID rejects IDs that could escape the checkpoint directory
// when used as part of a file name.
func validateJobID(jobID string) error {
	if jobID == "" {
		return ErrInvalidJobID
	}
	if strings.Contains(jobID, "..") {
		return ErrInvalidJobID
	}
	if strings.ContainsAny(jobID, `/\`) {
		return ErrInvalidJobID
	}
	if strings.ContainsRune(jobID, '\x00') {
		return ErrInvalidJobID
	}
	return nil
}

// withinDir reports whether path resolves inside dir after cleaning.
func withinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Path returns the checkpoint file path for a job.
func (m *Manager) Path(jobID string) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	full := filepath.Join(m.dir, fmt.Sprintf("checkpoint_%s.json", jobID))
	if !withinDir(full, m.dir) {
		return "", ErrInvalidJobID
	}
	return full, nil
}

// Save writes the checkpoint atomically: to a temp file first, then a
// rename, so a crash mid-write never leaves a truncated checkpoint.
func (m *Manager) Save(ctx context.Context, cp *IngestCheckpoint) error {
	cp.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	path, err := m.Path(cp.JobID)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}
	return nil
}

// Load reads a job's checkpoint. A missing checkpoint is (nil, nil).
func (m *Manager) Load(ctx context.Context, jobID string) (*IngestCheckpoint, error) {
	path, err := m.Path(jobID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp IngestCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}
	return &cp, nil
}

// LoadOrCreate resumes an existing checkpoint or starts a fresh one.
// The boolean reports whether an existing checkpoint was resumed, in
// which case its attempt counter has been advanced.
func (m *Manager) LoadOrCreate(ctx context.Context, jobID, sourcePath string, totalRecords int) (*IngestCheckpoint, bool, error) {
	existing, err := m.Load(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && !existing.Completed {
		existing.AttemptCount++
		existing.TotalRecords = totalRecords
		return existing, true, nil
	}
	return New(jobID, sourcePath, totalRecords), false, nil
}

// Delete removes a job's checkpoint. Deleting a missing checkpoint is
// not an error.
func (m *Manager) Delete(ctx context.Context, jobID string) error {
	path, err := m.Path(jobID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint is on disk for the job.
func (m *Manager) Exists(ctx context.Context, jobID string) (bool, error) {
	path, err := m.Path(jobID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat checkpoint: %w", err)
	}
	return true, nil
}

// RecordError bumps the attempt counter and stores the error text.
func (m *Manager) RecordError(ctx context.Context, jobID string, cause error) error {
	cp, err := m.Load(ctx, jobID)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("checkpoint not found for job %s", jobID)
	}
	cp.AttemptCount++
	cp.LastError = cause.Error()
	return m.Save(ctx, cp)
}

// List returns every readable checkpoint in the directory. Unreadable
// or foreign files are skipped.
func (m *Manager) List(ctx context.Context) ([]*IngestCheckpoint, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint dir: %w", err)
	}

	var cps []*IngestCheckpoint
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			continue
		}
		var cp IngestCheckpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		cps = append(cps, &cp)
	}
	return cps, nil
}

// CleanOld deletes checkpoints whose last update is older than maxAge
// and returns how many were removed.
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	cps, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, cp := range cps {
		if time.Since(cp.LastUpdatedAt) > maxAge {
			if err := m.Delete(ctx, cp.JobID); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}
