package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/nimbium/cirro/pkg/types"
)

// ParquetCatalogWriter writes catalog snapshots and recommendation audit
// trails to Parquet files for offline analysis.
type ParquetCatalogWriter struct {
	baseDir string
}

// NewParquetCatalogWriter creates a snapshot writer rooted at baseDir.
func NewParquetCatalogWriter(baseDir string) (*ParquetCatalogWriter, error) {
	dirs := []string{"services", "recommendations"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	return &ParquetCatalogWriter{baseDir: baseDir}, nil
}

// ParquetServiceRecord is the flattened snapshot schema for one service.
type ParquetServiceRecord struct {
	ID          string `parquet:"id"`
	Provider    string `parquet:"provider"`
	Name        string `parquet:"name"`
	ServiceType string `parquet:"service_type"`
	Category    string `parquet:"category"`
	Description string `parquet:"description"`

	VCPU        float64 `parquet:"vcpu"`
	MemoryGB    float64 `parquet:"memory_gb"`
	StorageGB   float64 `parquet:"storage_gb"`
	NetworkGbps float64 `parquet:"network_gbps"`

	PriceAmount   float64 `parquet:"price_amount"`
	PriceCurrency string  `parquet:"price_currency"`
	PriceUnit     string  `parquet:"price_unit"`
	FreeTier      bool    `parquet:"free_tier"`

	Features string `parquet:"features"`  // JSON string
	UseCases string `parquet:"use_cases"` // JSON string
	Tags     string `parquet:"tags"`      // JSON string

	Region         string `parquet:"region"`
	DatabaseEngine string `parquet:"database_engine"`

	AutoScaling bool `parquet:"auto_scaling"`
	MultiAZ     bool `parquet:"multi_az"`
	Encryption  bool `parquet:"encryption"`

	Embedding  []float32 `parquet:"embedding"`
	ExportedAt time.Time `parquet:"exported_at"`
}

// ParquetRecommendationRecord is one audit row of a recommendation run.
type ParquetRecommendationRecord struct {
	RunID     string    `parquet:"run_id"`
	Timestamp time.Time `parquet:"timestamp"`
	Query     string    `parquet:"query"`

	Rank      int    `parquet:"rank"`
	ServiceID string `parquet:"service_id"`
	Provider  string `parquet:"provider"`

	FinalScore     float64 `parquet:"final_score"`
	Relevance      float64 `parquet:"relevance"`
	CostEfficiency float64 `parquet:"cost_efficiency"`
	CapacityMatch  float64 `parquet:"capacity_match"`
	FeatureMatch   float64 `parquet:"feature_match"`
	PreBoostScore  float64 `parquet:"pre_boost_score"`
	DiversityBonus float64 `parquet:"diversity_bonus"`

	OracleCalls int   `parquet:"oracle_calls"`
	DurationMS  int64 `parquet:"duration_ms"`
}

// WriteServices writes a full catalog snapshot to a single Parquet file.
func (w *ParquetCatalogWriter) WriteServices(ctx context.Context, services []*types.CloudService) error {
	if len(services) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]ParquetServiceRecord, 0, len(services))
	for _, svc := range services {
		rec := ParquetServiceRecord{
			ID:             svc.ID,
			Provider:       string(svc.Provider),
			Name:           svc.Name,
			ServiceType:    svc.ServiceType,
			Category:       string(svc.Category),
			Description:    svc.Description,
			VCPU:           svc.Specs.VCPU,
			MemoryGB:       svc.Specs.MemoryGB,
			StorageGB:      svc.Specs.StorageGB,
			NetworkGbps:    svc.Specs.NetworkGbps,
			Features:       marshalList(svc.Features),
			UseCases:       marshalList(svc.UseCases),
			Tags:           marshalList(svc.Tags),
			Region:         svc.Region,
			DatabaseEngine: svc.DatabaseEngine,
			AutoScaling:    svc.SupportsAutoScaling,
			MultiAZ:        svc.SupportsMultiAZ,
			Encryption:     svc.SupportsEncryption,
			Embedding:      svc.Embedding,
			ExportedAt:     now,
		}
		if svc.Pricing != nil {
			rec.PriceAmount = svc.Pricing.Amount
			rec.PriceCurrency = svc.Pricing.Currency
			rec.PriceUnit = string(svc.Pricing.Unit)
			rec.FreeTier = svc.Pricing.FreeTier
		}
		records = append(records, rec)
	}

	filename := fmt.Sprintf("services_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(w.baseDir, "services", filename)

	return parquet.WriteFile(path, records)
}

// WriteRecommendations writes one audit row per recommendation of a run.
func (w *ParquetCatalogWriter) WriteRecommendations(ctx context.Context, result *types.PipelineResult) error {
	if result == nil || len(result.Recommendations) == 0 {
		return nil
	}

	runID := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC()
	records := make([]ParquetRecommendationRecord, 0, len(result.Recommendations))
	for _, rec := range result.Recommendations {
		row := ParquetRecommendationRecord{
			RunID:          runID,
			Timestamp:      now,
			Query:          result.Query,
			Rank:           rec.Rank,
			FinalScore:     rec.FinalScore,
			Relevance:      rec.Breakdown.Relevance,
			CostEfficiency: rec.Breakdown.CostEfficiency,
			CapacityMatch:  rec.Breakdown.CapacityMatch,
			FeatureMatch:   rec.Breakdown.FeatureMatch,
			PreBoostScore:  rec.Breakdown.PreBoostScore,
			DiversityBonus: rec.Breakdown.DiversityBonus,
			OracleCalls:    result.Counters.OracleCalls,
			DurationMS:     result.Timings.Total.Milliseconds(),
		}
		if rec.Candidate != nil {
			row.ServiceID = rec.Candidate.ID
			row.Provider = string(rec.Candidate.Provider)
		}
		records = append(records, row)
	}

	filename := fmt.Sprintf("recommendations_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(w.baseDir, "recommendations", filename)

	return parquet.WriteFile(path, records)
}

// Close satisfies the closer contract. Every write produces a complete
// file, so there is nothing buffered to flush.
func (w *ParquetCatalogWriter) Close() error {
	return nil
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
