package retrieval

import (
	"math"
	"strings"
	"unicode"

	"github.com/nimbium/cirro/pkg/types"
	"github.com/nimbium/cirro/pkg/utils"
)

// BM25 shape parameters. K1 controls term-frequency saturation, B the
// document-length normalization.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// tokenize splits text into lowercased alphanumeric terms.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type bm25Doc struct {
	service *types.CloudService
	terms   map[string]int
	length  int
}

// BM25Index is an in-memory term index over catalog documents. Documents
// are the searchable text of each service record (name, type, category,
// description, features, use cases, tags). The index is immutable once
// built; rebuild it after the catalog changes.
type BM25Index struct {
	k1     float64
	b      float64
	docs   []bm25Doc
	df     map[string]int
	avgLen float64
}

// NewBM25Index builds an index over the given services. Out-of-range
// shape parameters fall back to the defaults.
func NewBM25Index(services []*types.CloudService, k1, b float64) *BM25Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}

	idx := &BM25Index{
		k1: k1,
		b:  b,
		df: make(map[string]int),
	}

	totalLen := 0
	for _, svc := range services {
		if svc == nil {
			continue
		}
		tokens := tokenize(svc.Document())
		terms := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			terms[tok]++
		}
		for term := range terms {
			idx.df[term]++
		}
		idx.docs = append(idx.docs, bm25Doc{
			service: svc,
			terms:   terms,
			length:  len(tokens),
		})
		totalLen += len(tokens)
	}
	if len(idx.docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(idx.docs))
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *BM25Index) Len() int {
	return len(idx.docs)
}

// idf uses the Robertson formulation with +1 inside the log, which keeps
// scores positive even for terms present in most documents.
func (idx *BM25Index) idf(term string) float64 {
	df := idx.df[term]
	if df == 0 {
		return 0
	}
	n := float64(len(idx.docs))
	return math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

// Search scores every document matching the filters against the query
// and returns at most limit hits with score >= minScore, best first.
// Documents sharing no term with the query are never returned.
func (idx *BM25Index) Search(query string, limit int, minScore float64, filters *Filters) []utils.ScoredItem[*types.CloudService] {
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || len(idx.docs) == 0 {
		return nil
	}

	// Dedupe query terms so a repeated word does not double-count.
	unique := make(map[string]struct{}, len(queryTerms))
	for _, term := range queryTerms {
		unique[term] = struct{}{}
	}

	scored := make([]utils.ScoredItem[*types.CloudService], 0, len(idx.docs))
	for _, doc := range idx.docs {
		if !filters.Matches(doc.service) {
			continue
		}
		score := 0.0
		for term := range unique {
			tf := doc.terms[term]
			if tf == 0 {
				continue
			}
			norm := 1 - idx.b + idx.b*float64(doc.length)/idx.avgLen
			score += idx.idf(term) * float64(tf) * (idx.k1 + 1) / (float64(tf) + idx.k1*norm)
		}
		if score <= 0 || score < minScore {
			continue
		}
		scored = append(scored, utils.ScoredItem[*types.CloudService]{Item: doc.service, Score: score})
	}

	return utils.TopKByScore(scored, limit)
}
