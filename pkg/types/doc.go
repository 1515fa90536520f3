// Package types defines the core data types for the cirro recommendation
// pipeline.
//
// This package contains the fundamental types used throughout cirro:
//   - Candidate: A cloud service under consideration, with per-stage scores
//   - RankedList: An ordered, deduplicated sequence of candidates
//   - CloudService: The unified service schema produced by upstream collectors
//   - UserRequirements: Structured constraints extracted from the user query
//   - ComparisonResult: The outcome of one pairwise relevance judgment
//   - PipelineResult: The packaged output of a full pipeline run
//
// Types here carry no pipeline logic beyond validation, cloning, and small
// derivations (searchable document text, monthly cost estimation). The
// algorithms that consume them live in pkg/fusion, pkg/rerank, pkg/scoring,
// and the root package.
package types
