package dto

import (
	"fmt"

	"github.com/nimbium/cirro/pkg/types"
)

// AddServicesRequest loads a batch of service records into the catalog.
type AddServicesRequest struct {
	Services []*types.CloudService `json:"services" binding:"required"`
	// Embed computes dense vectors for records missing one, when the
	// server has an embedder.
	Embed bool `json:"embed,omitempty"`
	// JobID names the resumable load. Empty lets the server derive
	// one.
	JobID string `json:"job_id,omitempty"`
}

// Validate rejects malformed catalog load requests. Per-record
// validation happens during ingest, where invalid records are skipped
// and counted instead of rejecting the batch.
func (r *AddServicesRequest) Validate() error {
	if len(r.Services) == 0 {
		return ErrEmptyServices
	}
	if len(r.Services) > MaxServicesPerBatch {
		return fmt.Errorf("%w: got %d", ErrTooManyServices, len(r.Services))
	}
	return nil
}

// IngestResponse reports what a catalog load did.
type IngestResponse struct {
	Success  bool     `json:"success"`
	Total    int      `json:"total"`
	Stored   int      `json:"stored"`
	Embedded int      `json:"embedded"`
	Skipped  int      `json:"skipped"`
	Failed   []string `json:"failed,omitempty"`
	Resumed  bool     `json:"resumed,omitempty"`
}
