package cirro_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbium/cirro"
	"github.com/nimbium/cirro/pkg/catalog"
	"github.com/nimbium/cirro/pkg/config"
	"github.com/nimbium/cirro/pkg/scoring"
	"github.com/nimbium/cirro/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGenerator is a canned summary generator.
type fakeGenerator struct {
	summary      string
	comparison   string
	err          error
	summarizeN   int
	compareN     int
	lastQuery    string
	lastRecCount int
}

func (f *fakeGenerator) Summarize(ctx context.Context, query string, recs []*types.Recommendation) (string, error) {
	f.summarizeN++
	f.lastQuery = query
	f.lastRecCount = len(recs)
	return f.summary, f.err
}

func (f *fakeGenerator) CompareProviders(ctx context.Context, query string, recs []*types.Recommendation) (string, error) {
	f.compareN++
	f.lastQuery = query
	f.lastRecCount = len(recs)
	return f.comparison, f.err
}

func (f *fakeGenerator) Close() error { return nil }

// fakeEmbedder produces fixed-width deterministic vectors.
type fakeEmbedder struct {
	dims  int
	err   error
	calls int
}

func (f *fakeEmbedder) width() int {
	if f.dims > 0 {
		return f.dims
	}
	return 4
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.EmbedSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.width())
	for i := range vec {
		vec[i] = float32((len(text)+i)%7) + 1
	}
	return vec, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.width() }

func (f *fakeEmbedder) Close() error { return nil }

// undeterminedOracle cannot decide any comparison.
type undeterminedOracle struct {
	calls int
}

func (o *undeterminedOracle) Compare(ctx context.Context, query string, a, b *types.Candidate) (*types.ComparisonResult, error) {
	o.calls++
	return &types.ComparisonResult{Winner: types.Undetermined, Note: "cannot decide"}, nil
}

// cancellingOracle cancels the run context after a set number of calls.
type cancellingOracle struct {
	cancel context.CancelFunc
	after  int
	calls  int
}

func (o *cancellingOracle) Compare(ctx context.Context, query string, a, b *types.Candidate) (*types.ComparisonResult, error) {
	o.calls++
	if o.calls >= o.after {
		o.cancel()
	}
	return &types.ComparisonResult{Winner: types.Undetermined}, nil
}

func testService(id, name string, provider types.Provider, category types.ServiceCategory) *types.CloudService {
	return &types.CloudService{
		ID:       id,
		Name:     name,
		Provider: provider,
		Category: category,
	}
}

func candidates(svcs ...*types.CloudService) types.RankedList {
	list := make(types.RankedList, 0, len(svcs))
	for _, s := range svcs {
		list = append(list, s.Candidate())
	}
	return list
}

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(catalog.Config{InMemory: true}, testLogger())
	require.NoError(t, err)
	return store
}

func TestNewClientDefaults(t *testing.T) {
	client, err := cirro.NewClient(cirro.Dependencies{}, nil, testLogger())
	require.NoError(t, err)

	cfg := client.GetConfig()
	assert.Equal(t, 60, cfg.FusionKRRF)
	assert.Equal(t, 25, cfg.FusionTopK)
	assert.Equal(t, 20, cfg.MaxRerankCandidates)
	assert.Equal(t, 3, cfg.KPasses)
	assert.Equal(t, 5, cfg.TopKResults)
	assert.InDelta(t, 0.05, cfg.DiversityBoost, 1e-9)
	assert.Equal(t, scoring.DefaultWeights(), cfg.ScoringWeights)
}

func TestNewClientNormalizesPartialConfig(t *testing.T) {
	client, err := cirro.NewClient(cirro.Dependencies{}, &cirro.Config{TopKResults: 2}, testLogger())
	require.NoError(t, err)

	cfg := client.GetConfig()
	// With two results wanted, the third pass would settle a position
	// nobody sees.
	assert.Equal(t, 2, cfg.KPasses)
	assert.Equal(t, 2, cfg.TopKResults)
	assert.Equal(t, 60, cfg.FusionKRRF)
	assert.Equal(t, scoring.DefaultWeights(), cfg.ScoringWeights)
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  cirro.Config
	}{
		{"negative passes", cirro.Config{KPasses: -1}},
		{"negative fusion top-k", cirro.Config{FusionTopK: -2}},
		{"negative rerank cap", cirro.Config{MaxRerankCandidates: -5}},
		{"negative rank constant", cirro.Config{FusionKRRF: -60}},
		{"negative diversity boost", cirro.Config{DiversityBoost: -0.1}},
		{"weights off unit sum", cirro.Config{ScoringWeights: scoring.Weights{
			Relevance: 0.5, CostEfficiency: 0.5, CapacityMatch: 0.5, FeatureMatch: 0.5,
		}}},
		{"negative weight", cirro.Config{ScoringWeights: scoring.Weights{
			Relevance: 1.4, CostEfficiency: -0.2, CapacityMatch: -0.1, FeatureMatch: -0.1,
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := cirro.NewClient(cirro.Dependencies{}, &tc.cfg, testLogger())
			assert.Error(t, err)
		})
	}
}

func TestClientAccessors(t *testing.T) {
	store := openTestStore(t)
	oracle := &undeterminedOracle{}
	emb := &fakeEmbedder{}

	client, err := cirro.NewClient(cirro.Dependencies{
		Judge:    oracle,
		Store:    store,
		Embedder: emb,
	}, nil, testLogger())
	require.NoError(t, err)
	defer client.Close(context.Background())

	assert.Same(t, store, client.GetStore())
	assert.NotNil(t, client.GetRetriever())
	assert.Equal(t, oracle, client.GetJudge())
	assert.Equal(t, emb, client.GetEmbedder())
	assert.Nil(t, client.GetNLP())
	assert.NotNil(t, client.GetLogger())
}

func TestCatalogOps(t *testing.T) {
	ctx := context.Background()
	client, err := cirro.NewClient(cirro.Dependencies{Store: openTestStore(t)}, nil, testLogger())
	require.NoError(t, err)
	defer client.Close(ctx)

	rds := testService("aws-rds-postgres", "RDS for PostgreSQL", types.ProviderAWS, types.CategoryDatabase)
	require.NoError(t, client.AddService(ctx, rds))
	require.NoError(t, client.AddService(ctx,
		testService("gcp-cloudsql", "Cloud SQL", types.ProviderGCP, types.CategoryDatabase)))

	got, err := client.GetService(ctx, "aws-rds-postgres")
	require.NoError(t, err)
	assert.Equal(t, "RDS for PostgreSQL", got.Name)

	all, err := client.ListServices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stats, err := client.CatalogStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByProvider[types.ProviderAWS])
	assert.Equal(t, 2, stats.ByCategory[types.CategoryDatabase])

	require.NoError(t, client.DeleteService(ctx, "gcp-cloudsql"))
	_, err = client.GetService(ctx, "gcp-cloudsql")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCatalogOpsEmbedOnAdd(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	client, err := cirro.NewClient(cirro.Dependencies{
		Store:    openTestStore(t),
		Embedder: emb,
	}, nil, testLogger())
	require.NoError(t, err)
	defer client.Close(ctx)

	require.NoError(t, client.AddService(ctx,
		testService("aws-s3", "S3", types.ProviderAWS, types.CategoryStorage)))

	got, err := client.GetService(ctx, "aws-s3")
	require.NoError(t, err)
	assert.NotEmpty(t, got.Embedding)
	assert.Equal(t, 1, emb.calls)
}

func TestCatalogOpsWithoutStore(t *testing.T) {
	ctx := context.Background()
	client, err := cirro.NewClient(cirro.Dependencies{}, nil, testLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, client.AddService(ctx, testService("x", "X", types.ProviderAWS, "")), cirro.ErrNoCatalog)
	_, err = client.GetService(ctx, "x")
	assert.ErrorIs(t, err, cirro.ErrNoCatalog)
	_, err = client.ListServices(ctx)
	assert.ErrorIs(t, err, cirro.ErrNoCatalog)
	assert.ErrorIs(t, client.DeleteService(ctx, "x"), cirro.ErrNoCatalog)
	_, err = client.CatalogStats(ctx)
	assert.ErrorIs(t, err, cirro.ErrNoCatalog)
	assert.ErrorIs(t, client.RefreshIndex(ctx), cirro.ErrNoCatalog)
	_, err = client.SnapshotCatalog(ctx, t.TempDir())
	assert.ErrorIs(t, err, cirro.ErrNoCatalog)
	_, err = client.RecommendQuery(ctx, "postgres database", nil)
	assert.ErrorIs(t, err, cirro.ErrNoCatalog)
}

func TestAddServiceRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	client, err := cirro.NewClient(cirro.Dependencies{Store: openTestStore(t)}, nil, testLogger())
	require.NoError(t, err)
	defer client.Close(ctx)

	assert.ErrorIs(t, client.AddService(ctx, nil), cirro.ErrEmptyService)
	assert.Error(t, client.AddService(ctx, &types.CloudService{ID: "no-name", Provider: types.ProviderAWS}))
}

func TestNewClientFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := validFileConfig()

	client, err := cirro.NewClientFromConfig(cfg, testLogger())
	require.NoError(t, err)
	defer client.Close(ctx)

	// No models configured: keyword parsing, no judge, sparse-only.
	assert.Nil(t, client.GetNLP())
	assert.Nil(t, client.GetJudge())
	assert.Nil(t, client.GetEmbedder())
	assert.NotNil(t, client.GetStore())

	parsed, err := client.ParseQuery(ctx, "postgres database on aws")
	require.NoError(t, err)
	assert.Equal(t, types.CategoryDatabase, parsed.Requirements.PreferredCategory)
	assert.Equal(t, types.ProviderAWS, parsed.Requirements.PreferredProvider)

	result, err := client.RecommendQuery(ctx, "postgres database", nil)
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestConfigFromFile(t *testing.T) {
	cfg := validFileConfig()
	cfg.Pipeline.Fusion.RankConstant = 10
	cfg.Pipeline.Rerank.MaxCandidates = 7
	cfg.Pipeline.Scoring.TopK = 3
	cfg.Retrieval.SparseTopK = 12

	root := cirro.ConfigFromFile(cfg)
	assert.Equal(t, 10, root.FusionKRRF)
	assert.Equal(t, 7, root.MaxRerankCandidates)
	assert.Equal(t, 3, root.TopKResults)
	assert.Equal(t, 12, root.Retrieval.SparseTopK)
	assert.InDelta(t, 0.2, root.ScoringWeights.CostEfficiency, 1e-9)
}

func validFileConfig() *config.Config {
	return &config.Config{
		Catalog: config.CatalogConfig{InMemory: true},
		Pipeline: config.PipelineConfig{
			Fusion: config.FusionConfig{RankConstant: 60, TopK: 25},
			Rerank: config.RerankConfig{Enabled: true, Passes: 3, MaxCandidates: 20},
			Scoring: config.ScoringConfig{
				RelevanceWeight:      0.5,
				CostEfficiencyWeight: 0.2,
				CapacityMatchWeight:  0.2,
				FeatureMatchWeight:   0.1,
				DiversityBoost:       0.05,
				TopK:                 5,
			},
		},
		Retrieval: config.RetrievalConfig{
			DenseTopK:  30,
			SparseTopK: 30,
			BM25K1:     1.5,
			BM25B:      0.75,
			MinScore:   0.3,
		},
	}
}

func TestCloseIsIdempotentOnNilParts(t *testing.T) {
	client, err := cirro.NewClient(cirro.Dependencies{}, nil, testLogger())
	require.NoError(t, err)
	assert.NoError(t, client.Close(context.Background()))
}

func TestCompareProviders(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{comparison: "aws and gcp both fit."}
	client, err := cirro.NewClient(cirro.Dependencies{Summarizer: gen}, nil, testLogger())
	require.NoError(t, err)

	svcA := testService("aws-rds", "RDS", types.ProviderAWS, types.CategoryDatabase)
	result := &types.PipelineResult{
		Query: "postgres",
		Recommendations: []*types.Recommendation{
			{Rank: 1, Candidate: svcA.Candidate(), FinalScore: 0.9},
		},
	}

	text, err := client.CompareProviders(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, "aws and gcp both fit.", text)
	assert.Equal(t, 1, gen.compareN)
	assert.Equal(t, "postgres", gen.lastQuery)
}

func TestCompareProvidersEmptyAndMissing(t *testing.T) {
	ctx := context.Background()

	client, err := cirro.NewClient(cirro.Dependencies{}, nil, testLogger())
	require.NoError(t, err)

	text, err := client.CompareProviders(ctx, &types.PipelineResult{})
	require.NoError(t, err)
	assert.Empty(t, text)

	svc := testService("aws-rds", "RDS", types.ProviderAWS, types.CategoryDatabase)
	full := &types.PipelineResult{
		Recommendations: []*types.Recommendation{{Rank: 1, Candidate: svc.Candidate()}},
	}
	_, err = client.CompareProviders(ctx, full)
	assert.ErrorIs(t, err, cirro.ErrNoSummarizer)
}

func TestSnapshotCatalog(t *testing.T) {
	ctx := context.Background()
	client, err := cirro.NewClient(cirro.Dependencies{Store: openTestStore(t)}, nil, testLogger())
	require.NoError(t, err)
	defer client.Close(ctx)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("aws-svc-%d", i)
		require.NoError(t, client.AddService(ctx, testService(id, "Service "+id, types.ProviderAWS, types.CategoryCompute)))
	}

	dir := t.TempDir()
	n, err := client.SnapshotCatalog(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
