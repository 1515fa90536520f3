package types

import (
	"errors"
)

// Validation errors
var (
	ErrEmptyID       = errors.New("id cannot be empty")
	ErrEmptyQuery    = errors.New("query cannot be empty")
	ErrEmptyProvider = errors.New("provider cannot be empty")
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrNilService    = errors.New("service payload cannot be nil")
	ErrInvalidLimit  = errors.New("limit must be positive")
)

// ContextKey is the type used for context values set by the server layer.
type ContextKey string

const (
	// ContextKeyUserID carries the requesting user's identifier.
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeySessionID carries the session identifier.
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyRequestSource identifies where a request originated (http, cli, mcp).
	ContextKeyRequestSource ContextKey = "request_source"
	// ContextKeyIngestionSource names the catalog file being ingested.
	ContextKeyIngestionSource ContextKey = "ingestion_source"
	// ContextKeySystemCall marks internal calls such as pairwise comparisons.
	ContextKeySystemCall ContextKey = "system_call"
	// ContextKeyUsage tags the model usage class (rerank, parse, summary)
	// so the router can pick a provider per task.
	ContextKeyUsage ContextKey = "usage"
)

// ComparisonLabel identifies the outcome of a pairwise relevance judgment.
type ComparisonLabel string

const (
	// AMoreRelevant means the first candidate was judged more relevant.
	AMoreRelevant ComparisonLabel = "a_more_relevant"
	// BMoreRelevant means the second candidate was judged more relevant.
	BMoreRelevant ComparisonLabel = "b_more_relevant"
	// Undetermined means the judge failed, timed out, or produced
	// unparseable output. The pair's relative order is left unchanged.
	Undetermined ComparisonLabel = "undetermined"
)

// ComparisonResult is the outcome of one pairwise oracle judgment between
// two candidates for a given query.
type ComparisonResult struct {
	Winner ComparisonLabel `json:"winner"`
	// Note carries diagnostic detail for undetermined outcomes.
	Note string `json:"note,omitempty"`
}

// StageScores holds the mutable per-stage score fields for a candidate.
// Each field is written by exactly one pipeline stage and overwritten on
// every run; scores are never merged across runs. Zero values mean the
// stage has not produced that score.
type StageScores struct {
	// DenseRank is the 1-based position in the dense retrieval list,
	// 0 if the candidate was absent from it.
	DenseRank int `json:"dense_rank,omitempty"`
	// SparseRank is the 1-based position in the sparse retrieval list,
	// 0 if the candidate was absent from it.
	SparseRank int `json:"sparse_rank,omitempty"`
	// FusedScore is the reciprocal-rank-fusion score.
	FusedScore float64 `json:"fused_score,omitempty"`
	// RelevanceScore is the [0,1] relevance signal derived from the
	// reranked position.
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	// FinalScore is the blended multi-dimensional score after the
	// diversity adjustment.
	FinalScore float64 `json:"final_score,omitempty"`
}

// Candidate is one cloud service moving through the pipeline. Identity
// (ID, Provider, Service) is immutable; Scores are stage-local.
type Candidate struct {
	ID       string        `json:"id"`
	Provider Provider      `json:"provider"`
	Service  *CloudService `json:"service,omitempty"`
	Scores   StageScores   `json:"scores"`
}

// Validate checks if the Candidate has all required fields set.
func (c *Candidate) Validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	if c.Provider == "" {
		return ErrEmptyProvider
	}
	return nil
}

// Clone returns a copy of the candidate with its own score record, so
// that concurrent pipeline runs never share mutable state. The Service
// payload is shared; it is read-only to the pipeline.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	dup := *c
	return &dup
}

// RankedList is an ordered sequence of candidates. Slice order is rank
// order: position 0 is the best. A well-formed list has no duplicate IDs.
type RankedList []*Candidate

// NewRankedList builds a RankedList from candidates, dropping later
// duplicates by ID and keeping first-occurrence order.
func NewRankedList(candidates []*Candidate) RankedList {
	seen := make(map[string]struct{}, len(candidates))
	out := make(RankedList, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.ID == "" {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Clone returns a new list with cloned candidates. Use this at pipeline
// entry so score stamping stays private to one run.
func (l RankedList) Clone() RankedList {
	out := make(RankedList, len(l))
	for i, c := range l {
		out[i] = c.Clone()
	}
	return out
}

// IDs returns the candidate identifiers in rank order.
func (l RankedList) IDs() []string {
	ids := make([]string, len(l))
	for i, c := range l {
		ids[i] = c.ID
	}
	return ids
}

// Contains reports whether a candidate with the given ID is in the list.
func (l RankedList) Contains(id string) bool {
	for _, c := range l {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Truncate returns the list cut to at most n entries. Non-positive n
// returns an empty list.
func (l RankedList) Truncate(n int) RankedList {
	if n <= 0 {
		return RankedList{}
	}
	if len(l) <= n {
		return l
	}
	return l[:n]
}
