package query

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/types"
)

// mockNLPClient returns one canned reply for every call.
type mockNLPClient struct {
	reply   string
	err     error
	calls   int
	lastCtx context.Context
}

func (m *mockNLPClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	m.calls++
	m.lastCtx = ctx
	if m.err != nil {
		return nil, m.err
	}
	return &types.Response{Content: m.reply}, nil
}

func (m *mockNLPClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return m.Chat(ctx, messages)
}

func (m *mockNLPClient) GetCapabilities() []nlp.TaskCapability {
	return []nlp.TaskCapability{nlp.TaskStructuredExtraction}
}

func (m *mockNLPClient) Close() error { return nil }

func TestKeywordParser(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  types.UserRequirements
	}{
		{
			name:  "database with provider budget and availability",
			query: "I need a managed PostgreSQL database on AWS with high availability, budget $500 per month",
			want: types.UserRequirements{
				PreferredCategory:     types.CategoryDatabase,
				PreferredProvider:     types.ProviderAWS,
				DatabaseEngine:        "postgresql",
				Budget:                500,
				BudgetPeriod:          "month",
				NeedsHighAvailability: true,
			},
		},
		{
			name:  "serverless is not compute",
			query: "serverless function platform for event processing",
			want: types.UserRequirements{
				PreferredCategory: types.CategoryServerless,
			},
		},
		{
			name:  "kubernetes wins over container",
			query: "kubernetes cluster running docker containers",
			want: types.UserRequirements{
				PreferredCategory: types.CategoryKubernetes,
			},
		},
		{
			name:  "storage on google",
			query: "object storage bucket on google cloud",
			want: types.UserRequirements{
				PreferredCategory: types.CategoryStorage,
				PreferredProvider: types.ProviderGCP,
			},
		},
		{
			name:  "compute with scaling and encryption",
			query: "Azure virtual machine with auto-scaling and encrypted disks",
			want: types.UserRequirements{
				PreferredCategory: types.CategoryCompute,
				PreferredProvider: types.ProviderAzure,
				NeedsAutoScaling:  true,
				NeedsEncryption:   true,
			},
		},
		{
			name:  "user count and budget with thousands separators",
			query: "something for 10,000 concurrent users under $2,000",
			want: types.UserRequirements{
				ExpectedUsers: 10000,
				Budget:        2000,
				BudgetPeriod:  "month",
			},
		},
		{
			name:  "hourly budget",
			query: "mysql db under $0.50 per hour",
			want: types.UserRequirements{
				PreferredCategory: types.CategoryDatabase,
				DatabaseEngine:    "mysql",
				Budget:            0.5,
				BudgetPeriod:      "hour",
			},
		},
		{
			name:  "sql server spelled as two words",
			query: "sql server database on azure",
			want: types.UserRequirements{
				PreferredCategory: types.CategoryDatabase,
				PreferredProvider: types.ProviderAzure,
				DatabaseEngine:    "sqlserver",
			},
		},
		{
			name:  "no vocabulary match",
			query: "quantum teleportation rig",
			want:  types.UserRequirements{},
		},
	}

	parser := NewKeywordParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parser.Parse(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(*result.Requirements, tt.want) {
				t.Errorf("Parse() requirements = %+v, want %+v", *result.Requirements, tt.want)
			}
		})
	}
}

func TestMatchCategoryTokenBoundaries(t *testing.T) {
	// "weeks" must not trip the "eks" keyword and "makes" must not
	// trip "aks".
	if _, ok := matchCategory("makes a report in 2 weeks"); ok {
		t.Error("matchCategory() matched inside unrelated words")
	}
	if category, ok := matchCategory("an eks cluster"); !ok || category != types.CategoryKubernetes {
		t.Errorf("matchCategory() = %v, %v, want kubernetes", category, ok)
	}
}

func TestExpandQuery(t *testing.T) {
	req := &types.UserRequirements{
		PreferredCategory: types.CategoryDatabase,
		DatabaseEngine:    "postgresql",
	}
	expanded := expandQuery("need postgres for my app", req)
	if !strings.Contains(expanded, "need postgres for my app") {
		t.Errorf("expandQuery() lost the original query: %q", expanded)
	}
	if !strings.Contains(expanded, "RDS") {
		t.Errorf("expandQuery() missing category synonyms: %q", expanded)
	}
	if !strings.Contains(expanded, "postgresql database") {
		t.Errorf("expandQuery() missing engine expansion: %q", expanded)
	}

	plain := expandQuery("quantum rig", &types.UserRequirements{})
	if plain != "quantum rig" {
		t.Errorf("expandQuery() changed a query with nothing to expand: %q", plain)
	}
}

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("I need a fast PostgreSQL database for my analytics app")
	want := []string{"fast", "postgresql", "database", "analytics", "app"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractKeywords() = %v, want %v", got, want)
	}

	deduped := extractKeywords("database database database")
	if !reflect.DeepEqual(deduped, []string{"database"}) {
		t.Errorf("extractKeywords() did not dedupe: %v", deduped)
	}

	long := extractKeywords("alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu")
	if len(long) != 10 {
		t.Errorf("extractKeywords() returned %d terms, want 10", len(long))
	}
}

func TestSanitizeRequirements(t *testing.T) {
	tests := []struct {
		name string
		in   types.UserRequirements
		want types.UserRequirements
	}{
		{
			name: "unknown provider cleared",
			in:   types.UserRequirements{PreferredProvider: "oracle"},
			want: types.UserRequirements{},
		},
		{
			name: "unknown category cleared",
			in:   types.UserRequirements{PreferredCategory: "blockchain"},
			want: types.UserRequirements{},
		},
		{
			name: "hourly normalized",
			in:   types.UserRequirements{Budget: 1, BudgetPeriod: "Hourly"},
			want: types.UserRequirements{Budget: 1, BudgetPeriod: "hour"},
		},
		{
			name: "unknown period becomes month",
			in:   types.UserRequirements{Budget: 1, BudgetPeriod: "fortnightly"},
			want: types.UserRequirements{Budget: 1, BudgetPeriod: "month"},
		},
		{
			name: "negative budget dropped",
			in:   types.UserRequirements{Budget: -10},
			want: types.UserRequirements{},
		},
		{
			name: "valid values untouched",
			in: types.UserRequirements{
				PreferredProvider: types.ProviderGCP,
				PreferredCategory: types.CategoryStorage,
				Budget:            30,
				BudgetPeriod:      "day",
			},
			want: types.UserRequirements{
				PreferredProvider: types.ProviderGCP,
				PreferredCategory: types.CategoryStorage,
				Budget:            30,
				BudgetPeriod:      "day",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.in
			sanitizeRequirements(&req)
			if !reflect.DeepEqual(req, tt.want) {
				t.Errorf("sanitizeRequirements() = %+v, want %+v", req, tt.want)
			}
		})
	}
}

func TestLLMParserFlatReply(t *testing.T) {
	client := &mockNLPClient{
		reply: `{"preferred_provider":"aws","preferred_category":"database","database_engine":"postgresql","budget":500,"budget_period":"monthly","needs_high_availability":true}`,
	}
	parser := NewLLMParser(client, nil)

	result, err := parser.Parse(context.Background(), "managed postgres on aws")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	req := result.Requirements
	if req.PreferredProvider != types.ProviderAWS {
		t.Errorf("provider = %q, want aws", req.PreferredProvider)
	}
	if req.PreferredCategory != types.CategoryDatabase {
		t.Errorf("category = %q, want database", req.PreferredCategory)
	}
	if req.Budget != 500 || req.BudgetPeriod != "month" {
		t.Errorf("budget = %v %q, want 500 month", req.Budget, req.BudgetPeriod)
	}
	if !req.NeedsHighAvailability {
		t.Error("expected high availability flag")
	}
	if !strings.Contains(result.ExpandedQuery, "RDS") {
		t.Errorf("expanded query missing category synonyms: %q", result.ExpandedQuery)
	}
	if !reflect.DeepEqual(result.Keywords, []string{"managed", "postgres", "aws"}) {
		t.Errorf("keywords = %v", result.Keywords)
	}

	if got := client.lastCtx.Value(types.ContextKeyUsage); got != nlp.UsageParse {
		t.Errorf("usage context value = %v, want %q", got, nlp.UsageParse)
	}
	if got := client.lastCtx.Value(types.ContextKeySystemCall); got != true {
		t.Errorf("system call context value = %v, want true", got)
	}
}

func TestLLMParserWrappedReply(t *testing.T) {
	client := &mockNLPClient{reply: `{"requirements": {"preferred_provider": "gcp"}}`}
	parser := NewLLMParser(client, nil)

	result, err := parser.Parse(context.Background(), "something on google cloud")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Requirements.PreferredProvider != types.ProviderGCP {
		t.Errorf("provider = %q, want gcp", result.Requirements.PreferredProvider)
	}
}

func TestLLMParserSanitizesModelOutput(t *testing.T) {
	client := &mockNLPClient{reply: `{"preferred_provider":"oracle","preferred_category":"database"}`}
	parser := NewLLMParser(client, nil)

	result, err := parser.Parse(context.Background(), "some database")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Requirements.PreferredProvider != "" {
		t.Errorf("unknown provider survived: %q", result.Requirements.PreferredProvider)
	}
	if result.Requirements.PreferredCategory != types.CategoryDatabase {
		t.Errorf("category = %q, want database", result.Requirements.PreferredCategory)
	}
}

func TestLLMParserFallsBackOnClientError(t *testing.T) {
	client := &mockNLPClient{err: errors.New("model offline")}
	parser := NewLLMParser(client, nil)

	result, err := parser.Parse(context.Background(), "redis cache on azure")
	if err != nil {
		t.Fatalf("Parse() error = %v, want fallback", err)
	}
	if result.Requirements.PreferredProvider != types.ProviderAzure {
		t.Errorf("fallback provider = %q, want azure", result.Requirements.PreferredProvider)
	}
	if result.Requirements.DatabaseEngine != "redis" {
		t.Errorf("fallback engine = %q, want redis", result.Requirements.DatabaseEngine)
	}
	if client.calls == 0 {
		t.Error("expected the model to be tried before falling back")
	}
}

func TestLLMParserFallsBackOnGarbage(t *testing.T) {
	client := &mockNLPClient{reply: "I think you need a database"}
	parser := NewLLMParser(client, nil)

	result, err := parser.Parse(context.Background(), "postgres database")
	if err != nil {
		t.Fatalf("Parse() error = %v, want fallback", err)
	}
	if result.Requirements.PreferredCategory != types.CategoryDatabase {
		t.Errorf("fallback category = %q, want database", result.Requirements.PreferredCategory)
	}
}

func TestLLMParserEmptyQuery(t *testing.T) {
	client := &mockNLPClient{reply: `{}`}
	parser := NewLLMParser(client, nil)

	result, err := parser.Parse(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(*result.Requirements, types.UserRequirements{}) {
		t.Errorf("requirements = %+v, want empty", *result.Requirements)
	}
	if client.calls != 0 {
		t.Errorf("model called %d times for a blank query", client.calls)
	}
}

func TestApplyEntities(t *testing.T) {
	tests := []struct {
		name     string
		req      types.UserRequirements
		entities []Entity
		want     types.UserRequirements
	}{
		{
			name:     "provider hint fills blank",
			entities: []Entity{{Text: "Amazon Web Services", Label: labelProvider, Score: 0.9}},
			want:     types.UserRequirements{PreferredProvider: types.ProviderAWS},
		},
		{
			name:     "hint does not overwrite parser output",
			req:      types.UserRequirements{PreferredProvider: types.ProviderGCP},
			entities: []Entity{{Text: "AWS", Label: labelProvider, Score: 0.99}},
			want:     types.UserRequirements{PreferredProvider: types.ProviderGCP},
		},
		{
			name:     "low confidence span ignored",
			entities: []Entity{{Text: "azure", Label: labelProvider, Score: 0.2}},
			want:     types.UserRequirements{},
		},
		{
			name: "category engine region and budget",
			entities: []Entity{
				{Text: "managed database", Label: labelCategory, Score: 0.8},
				{Text: "PostgreSQL", Label: labelEngine, Score: 0.8},
				{Text: "us-east-1", Label: labelRegion, Score: 0.8},
				{Text: "$1,200", Label: labelBudget, Score: 0.8},
			},
			want: types.UserRequirements{
				PreferredCategory: types.CategoryDatabase,
				DatabaseEngine:    "postgresql",
				PreferredRegion:   "us-east-1",
				Budget:            1200,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			applyEntities(&req, tt.entities)
			if !reflect.DeepEqual(req, tt.want) {
				t.Errorf("applyEntities() = %+v, want %+v", req, tt.want)
			}
		})
	}
}

func TestGlinerExtractorLocalModel(t *testing.T) {
	dir := os.Getenv("GLINER_MODEL_DIR")
	if dir == "" {
		t.Skip("GLINER_MODEL_DIR not set")
	}

	extractor, err := NewGlinerExtractor(dir, nil)
	if err != nil {
		t.Fatalf("NewGlinerExtractor() error = %v", err)
	}
	defer extractor.Close()

	entities, err := extractor.Extract("PostgreSQL database on AWS in us-east-1")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	t.Logf("extracted %d entities", len(entities))
}
