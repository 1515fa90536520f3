package utils

import "sort"

// ScoredItem pairs an item with its retrieval or ranking score.
type ScoredItem[T any] struct {
	Item  T
	Score float64
}

// TopKByScore returns the k highest-scoring items, best first. Ties keep
// their input order, so callers that feed ID-ordered candidates get a
// deterministic cut. k <= 0 and empty input return nil; k past the end
// returns everything, sorted.
func TopKByScore[T any](items []ScoredItem[T], k int) []ScoredItem[T] {
	if k <= 0 || len(items) == 0 {
		return nil
	}

	ranked := make([]ScoredItem[T], len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
