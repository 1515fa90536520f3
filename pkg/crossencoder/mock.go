package crossencoder

import (
	"context"
	"hash/fnv"
	"sort"
)

// MockRerankerClient provides a deterministic implementation for tests.
// Scores combine term overlap with the query and a small content-hash
// jitter, so results are stable across runs but still varied enough to
// exercise sorting.
type MockRerankerClient struct {
	config Config
}

// NewMockRerankerClient creates a new mock reranker client
func NewMockRerankerClient(config Config) *MockRerankerClient {
	return &MockRerankerClient{config: config}
}

// Rank ranks the given passages with deterministic overlap-based scores
func (c *MockRerankerClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return []RankedPassage{}, nil
	}

	queryTerms := termFrequencies(query)

	results := make([]RankedPassage, len(passages))
	for i, passage := range passages {
		results[i] = RankedPassage{
			Passage: passage,
			Score:   c.score(queryTerms, passage),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// score returns 0.1 + 0.8*overlap plus a sub-0.01 hash jitter, keeping
// every score inside (0, 1).
func (c *MockRerankerClient) score(queryTerms map[string]float64, passage string) float64 {
	passageTerms := termFrequencies(passage)

	matched := 0.0
	for term := range queryTerms {
		if _, ok := passageTerms[term]; ok {
			matched++
		}
	}

	overlap := 0.0
	if len(queryTerms) > 0 {
		overlap = matched / float64(len(queryTerms))
	}

	h := fnv.New32a()
	h.Write([]byte(passage))
	jitter := float64(h.Sum32()%1000) / 100000.0

	return 0.1 + 0.8*overlap + jitter
}

// Close cleans up any resources used by the client
func (c *MockRerankerClient) Close() error {
	return nil
}
