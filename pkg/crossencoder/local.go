package crossencoder

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
)

// LocalRerankerClient implements cross-encoder functionality with local text
// similarity: cosine similarity over term frequency vectors. It needs no
// external services, which makes it the offline fallback when neither a
// model endpoint nor local model weights are available.
type LocalRerankerClient struct {
	config Config
}

// NewLocalRerankerClient creates a new local similarity reranker client
func NewLocalRerankerClient(config Config) *LocalRerankerClient {
	return &LocalRerankerClient{config: config}
}

// Rank ranks the given passages by term-frequency cosine similarity to the query
func (c *LocalRerankerClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return []RankedPassage{}, nil
	}

	queryVector := termFrequencies(query)

	results := make([]RankedPassage, len(passages))
	for i, passage := range passages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = RankedPassage{
			Passage: passage,
			Score:   sparseCosine(queryVector, termFrequencies(passage)),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// Close cleans up any resources used by the client
func (c *LocalRerankerClient) Close() error {
	return nil
}

// termFrequencies tokenizes text into lowercase alphanumeric terms and
// counts occurrences.
func termFrequencies(text string) map[string]float64 {
	freqs := make(map[string]float64)
	for _, term := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		freqs[term]++
	}
	return freqs
}

// sparseCosine computes cosine similarity between two sparse term vectors.
func sparseCosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64

	for term, countA := range a {
		normA += countA * countA
		if countB, ok := b[term]; ok {
			dot += countA * countB
		}
	}
	for _, countB := range b {
		normB += countB * countB
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
