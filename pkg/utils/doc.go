// Package utils provides utility functions shared across the cirro library.
//
// This package contains helper functions for various operations including:
//   - Cosine similarity over embedding vectors (vector.go)
//   - Top-K selection with stable ties (ranking.go)
//   - A bounded worker pool with panic containment (pool.go)
//   - Catalog file codecs for CSV and YAML (codec.go)
//   - Parquet snapshot and audit writing (snapshot_writer.go)
package utils
