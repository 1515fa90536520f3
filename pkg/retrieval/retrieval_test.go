package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/nimbium/cirro/pkg/types"
)

// MockSource implements Source with a fixed record set.
type MockSource struct {
	services []*types.CloudService
	err      error
	calls    int
}

func NewMockSource(services ...*types.CloudService) *MockSource {
	return &MockSource{services: services}
}

func (m *MockSource) SetServices(services []*types.CloudService) {
	m.services = services
}

func (m *MockSource) SetError(err error) {
	m.err = err
}

func (m *MockSource) List(ctx context.Context) ([]*types.CloudService, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.services, nil
}

// MockEmbedder implements embedder.Client returning one fixed vector.
type MockEmbedder struct {
	vector []float32
	err    error
}

func NewMockEmbedder(vector []float32) *MockEmbedder {
	return &MockEmbedder{vector: vector}
}

func (m *MockEmbedder) SetError(err error) {
	m.err = err
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = m.vector
	}
	return out, nil
}

func (m *MockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func (m *MockEmbedder) Dimensions() int { return len(m.vector) }

func (m *MockEmbedder) Close() error { return nil }

func fixtureServices() []*types.CloudService {
	return []*types.CloudService{
		{
			ID:             "aws-rds-postgres",
			Provider:       types.ProviderAWS,
			Name:           "Amazon RDS for PostgreSQL",
			Category:       types.CategoryDatabase,
			Description:    "Managed PostgreSQL relational database service",
			DatabaseEngine: "postgresql",
			Embedding:      []float32{0.9, 0.1, 0},
		},
		{
			ID:          "gcp-cloudsql-mysql",
			Provider:    types.ProviderGCP,
			Name:        "Cloud SQL for MySQL",
			Category:    types.CategoryDatabase,
			Description: "Managed MySQL database service",
			Embedding:   []float32{0.5, 0.5, 0},
		},
		{
			ID:          "aws-lambda",
			Provider:    types.ProviderAWS,
			Name:        "AWS Lambda",
			Category:    types.CategoryServerless,
			Description: "Run code without provisioning servers",
			Embedding:   []float32{0, 1, 0},
		},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "mixed case and punctuation",
			input: "Amazon RDS, for PostgreSQL!",
			want:  []string{"amazon", "rds", "for", "postgresql"},
		},
		{
			name:  "alphanumeric instance names",
			input: "c5.xlarge instance",
			want:  []string{"c5", "xlarge", "instance"},
		},
		{
			name:  "empty",
			input: "   ",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d tokens, got %d: %v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestBM25IndexSearch(t *testing.T) {
	idx := NewBM25Index(fixtureServices(), DefaultK1, DefaultB)

	if idx.Len() != 3 {
		t.Fatalf("expected 3 indexed documents, got %d", idx.Len())
	}

	hits := idx.Search("postgresql database", 10, 0, nil)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Item.ID != "aws-rds-postgres" {
		t.Errorf("expected aws-rds-postgres first, got %s", hits[0].Item.ID)
	}
	if hits[1].Item.ID != "gcp-cloudsql-mysql" {
		t.Errorf("expected gcp-cloudsql-mysql second, got %s", hits[1].Item.ID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("expected descending scores, got %g then %g", hits[0].Score, hits[1].Score)
	}
}

func TestBM25MinScore(t *testing.T) {
	idx := NewBM25Index(fixtureServices(), DefaultK1, DefaultB)

	hits := idx.Search("postgresql database", 10, 1000, nil)
	if len(hits) != 0 {
		t.Errorf("expected no hits above threshold 1000, got %d", len(hits))
	}
}

func TestBM25Limit(t *testing.T) {
	idx := NewBM25Index(fixtureServices(), DefaultK1, DefaultB)

	hits := idx.Search("managed database service", 1, 0, nil)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit with limit 1, got %d", len(hits))
	}
}

func TestBM25Filters(t *testing.T) {
	idx := NewBM25Index(fixtureServices(), DefaultK1, DefaultB)

	hits := idx.Search("database service", 10, 0, &Filters{Provider: types.ProviderGCP})
	if len(hits) != 1 {
		t.Fatalf("expected 1 gcp hit, got %d", len(hits))
	}
	if hits[0].Item.ID != "gcp-cloudsql-mysql" {
		t.Errorf("expected gcp-cloudsql-mysql, got %s", hits[0].Item.ID)
	}

	hits = idx.Search("aws lambda servers", 10, 0, &Filters{Category: types.CategoryServerless})
	if len(hits) != 1 {
		t.Fatalf("expected 1 serverless hit, got %d", len(hits))
	}
	if hits[0].Item.ID != "aws-lambda" {
		t.Errorf("expected aws-lambda, got %s", hits[0].Item.ID)
	}
}

func TestBM25EmptyQuery(t *testing.T) {
	idx := NewBM25Index(fixtureServices(), DefaultK1, DefaultB)

	if hits := idx.Search("", 10, 0, nil); len(hits) != 0 {
		t.Errorf("expected no hits for empty query, got %d", len(hits))
	}
	if hits := idx.Search("!!! ???", 10, 0, nil); len(hits) != 0 {
		t.Errorf("expected no hits for punctuation-only query, got %d", len(hits))
	}
}

func TestBM25EmptyIndex(t *testing.T) {
	idx := NewBM25Index(nil, DefaultK1, DefaultB)

	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d documents", idx.Len())
	}
	if hits := idx.Search("postgresql", 10, 0, nil); len(hits) != 0 {
		t.Errorf("expected no hits from empty index, got %d", len(hits))
	}
}

func TestFiltersMatches(t *testing.T) {
	svc := &types.CloudService{
		ID:       "aws-rds",
		Provider: types.ProviderAWS,
		Category: types.CategoryDatabase,
	}

	tests := []struct {
		name    string
		filters *Filters
		want    bool
	}{
		{name: "nil filters", filters: nil, want: true},
		{name: "empty filters", filters: &Filters{}, want: true},
		{name: "matching provider", filters: &Filters{Provider: types.ProviderAWS}, want: true},
		{name: "other provider", filters: &Filters{Provider: types.ProviderGCP}, want: false},
		{name: "matching category", filters: &Filters{Category: types.CategoryDatabase}, want: true},
		{name: "other category", filters: &Filters{Category: types.CategoryCompute}, want: false},
		{
			name:    "provider matches but category does not",
			filters: &Filters{Provider: types.ProviderAWS, Category: types.CategoryStorage},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Matches(svc); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRetrieveHybrid(t *testing.T) {
	source := NewMockSource(fixtureServices()...)
	embedder := NewMockEmbedder([]float32{1, 0, 0})
	r := NewRetriever(source, embedder, Config{}, nil)

	dense, sparse, err := r.Retrieve(context.Background(), "managed postgresql database", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dense) != 3 {
		t.Fatalf("expected 3 dense candidates, got %d", len(dense))
	}
	if dense[0].ID != "aws-rds-postgres" {
		t.Errorf("expected aws-rds-postgres first in dense list, got %s", dense[0].ID)
	}
	for i, c := range dense {
		if c.Scores.DenseRank != i+1 {
			t.Errorf("dense candidate %d: expected rank %d, got %d", i, i+1, c.Scores.DenseRank)
		}
	}

	if len(sparse) == 0 {
		t.Fatal("expected sparse candidates")
	}
	if sparse[0].ID != "aws-rds-postgres" {
		t.Errorf("expected aws-rds-postgres first in sparse list, got %s", sparse[0].ID)
	}
	for i, c := range sparse {
		if c.Scores.SparseRank != i+1 {
			t.Errorf("sparse candidate %d: expected rank %d, got %d", i, i+1, c.Scores.SparseRank)
		}
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := NewRetriever(NewMockSource(fixtureServices()...), NewMockEmbedder([]float32{1, 0, 0}), Config{}, nil)

	dense, sparse, err := r.Retrieve(context.Background(), "   ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dense) != 0 || len(sparse) != 0 {
		t.Errorf("expected empty lists for blank query, got %d dense and %d sparse", len(dense), len(sparse))
	}
}

func TestRetrieveWithoutEmbedder(t *testing.T) {
	r := NewRetriever(NewMockSource(fixtureServices()...), nil, Config{}, nil)

	dense, sparse, err := r.Retrieve(context.Background(), "postgresql database", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dense) != 0 {
		t.Errorf("expected no dense candidates without an embedder, got %d", len(dense))
	}
	if len(sparse) == 0 {
		t.Error("expected sparse candidates")
	}
}

func TestRetrieveDenseFailureDegrades(t *testing.T) {
	source := NewMockSource(fixtureServices()...)
	embedder := NewMockEmbedder([]float32{1, 0, 0})
	embedder.SetError(errors.New("embedding service unavailable"))
	r := NewRetriever(source, embedder, Config{}, nil)

	dense, sparse, err := r.Retrieve(context.Background(), "postgresql database", nil)
	if err != nil {
		t.Fatalf("expected degradation, got error: %v", err)
	}
	if len(dense) != 0 {
		t.Errorf("expected empty dense list after failure, got %d", len(dense))
	}
	if len(sparse) == 0 {
		t.Error("expected sparse candidates to survive dense failure")
	}
}

func TestRetrieveDenseFailureWithoutSparseHits(t *testing.T) {
	source := NewMockSource(fixtureServices()...)
	embedder := NewMockEmbedder([]float32{1, 0, 0})
	embedder.SetError(errors.New("embedding service unavailable"))
	r := NewRetriever(source, embedder, Config{}, nil)

	_, _, err := r.Retrieve(context.Background(), "quantum teleportation", nil)
	if err == nil {
		t.Fatal("expected error when both signals came back empty-handed")
	}
}

func TestRetrieveSourceError(t *testing.T) {
	source := NewMockSource()
	source.SetError(errors.New("store unavailable"))
	r := NewRetriever(source, nil, Config{}, nil)

	_, _, err := r.Retrieve(context.Background(), "postgresql", nil)
	if err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestRefreshRebuildsIndex(t *testing.T) {
	source := NewMockSource(fixtureServices()...)
	r := NewRetriever(source, nil, Config{}, nil)

	_, sparse, err := r.Retrieve(context.Background(), "postgresql", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sparse) != 1 {
		t.Fatalf("expected 1 sparse hit, got %d", len(sparse))
	}

	source.SetServices(append(fixtureServices(), &types.CloudService{
		ID:          "azure-postgres-flexible",
		Provider:    types.ProviderAzure,
		Name:        "Azure Database for PostgreSQL",
		Category:    types.CategoryDatabase,
		Description: "Flexible managed PostgreSQL server",
	}))

	// The old snapshot still serves until Refresh.
	_, sparse, err = r.Retrieve(context.Background(), "postgresql", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sparse) != 1 {
		t.Fatalf("expected stale snapshot with 1 hit, got %d", len(sparse))
	}

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	_, sparse, err = r.Retrieve(context.Background(), "postgresql", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sparse) != 2 {
		t.Fatalf("expected 2 hits after refresh, got %d", len(sparse))
	}

	if source.calls != 2 {
		t.Errorf("expected 2 source reads (lazy build + refresh), got %d", source.calls)
	}
}
