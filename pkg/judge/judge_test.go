package judge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbium/cirro/pkg/crossencoder"
	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/types"
)

// fakeNLPClient returns canned replies and records what it was asked.
type fakeNLPClient struct {
	reply    string
	err      error
	block    bool
	lastCtx  context.Context
	messages []types.Message
}

func (f *fakeNLPClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	f.lastCtx = ctx
	f.messages = messages
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.Response{Content: f.reply}, nil
}

func (f *fakeNLPClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return f.Chat(ctx, messages)
}

func (f *fakeNLPClient) GetCapabilities() []nlp.TaskCapability {
	return []nlp.TaskCapability{nlp.TaskReranking}
}

func (f *fakeNLPClient) Close() error { return nil }

// fakeCrossEncoder returns fixed scores keyed by passage substring.
type fakeCrossEncoder struct {
	scores map[string]float64
	err    error
	drop   bool
}

func (f *fakeCrossEncoder) Rank(ctx context.Context, query string, passages []string) ([]crossencoder.RankedPassage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.drop {
		return []crossencoder.RankedPassage{}, nil
	}
	out := make([]crossencoder.RankedPassage, 0, len(passages))
	for _, p := range passages {
		score := 0.0
		for key, s := range f.scores {
			if strings.Contains(p, key) {
				score = s
				break
			}
		}
		out = append(out, crossencoder.RankedPassage{Passage: p, Score: score})
	}
	return out, nil
}

func (f *fakeCrossEncoder) Close() error { return nil }

func serviceCandidate(id, name string) *types.Candidate {
	return &types.Candidate{
		ID:       id,
		Provider: types.ProviderAWS,
		Service: &types.CloudService{
			ID:          id,
			Provider:    types.ProviderAWS,
			Name:        name,
			Category:    types.CategoryDatabase,
			Description: name + " description",
			Features:    []string{"encryption"},
		},
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    types.ComparisonLabel
	}{
		{name: "plain A", content: "A", want: types.AMoreRelevant},
		{name: "lowercase b", content: "b", want: types.BMoreRelevant},
		{name: "whitespace and period", content: "  B.  ", want: types.BMoreRelevant},
		{name: "quoted", content: `"A"`, want: types.AMoreRelevant},
		{name: "letter then prose", content: "A) it matches the budget", want: types.AMoreRelevant},
		{name: "json wrapped", content: `{"choice": "B"}`, want: types.BMoreRelevant},
		{name: "think tags stripped", content: "<think>weighing specs</think>A", want: types.AMoreRelevant},
		{name: "prose first", content: "Service A is better", want: types.Undetermined},
		{name: "other letter", content: "C", want: types.Undetermined},
		{name: "empty", content: "", want: types.Undetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseChoice(tt.content))
		})
	}
}

func TestLLMJudgeCompare(t *testing.T) {
	client := &fakeNLPClient{reply: "A"}
	j := NewLLMJudge(client, Config{}, nil)

	a := serviceCandidate("svc-a", "Amazon RDS for PostgreSQL")
	b := serviceCandidate("svc-b", "Amazon EC2")

	result, err := j.Compare(context.Background(), "managed postgres", a, b)
	require.NoError(t, err)
	assert.Equal(t, types.AMoreRelevant, result.Winner)

	// Both passages must reach the model
	require.Len(t, client.messages, 2)
	user := client.messages[1].Content
	assert.Contains(t, user, "Amazon RDS for PostgreSQL")
	assert.Contains(t, user, "Amazon EC2")

	// Calls are tagged for routing and telemetry
	assert.Equal(t, nlp.UsageRerank, client.lastCtx.Value(types.ContextKeyUsage))
	assert.Equal(t, true, client.lastCtx.Value(types.ContextKeySystemCall))
}

func TestLLMJudgeRequirementsInPrompt(t *testing.T) {
	client := &fakeNLPClient{reply: "B"}
	j := NewLLMJudge(client, Config{}, nil)

	ctx := WithRequirements(context.Background(), &types.UserRequirements{
		Budget:       300,
		BudgetPeriod: "month",
	})

	result, err := j.Compare(ctx, "managed postgres",
		serviceCandidate("svc-a", "RDS"), serviceCandidate("svc-b", "Cloud SQL"))
	require.NoError(t, err)
	assert.Equal(t, types.BMoreRelevant, result.Winner)
	assert.Contains(t, client.messages[1].Content, "<REQUIREMENTS>")
	assert.Contains(t, client.messages[1].Content, "budget: 300")
}

func TestLLMJudgeUnparseableVerdict(t *testing.T) {
	client := &fakeNLPClient{reply: "Both look reasonable to me"}
	j := NewLLMJudge(client, Config{}, nil)

	result, err := j.Compare(context.Background(), "query",
		serviceCandidate("svc-a", "RDS"), serviceCandidate("svc-b", "Cloud SQL"))
	require.NoError(t, err)
	assert.Equal(t, types.Undetermined, result.Winner)
	assert.Contains(t, result.Note, "unparseable verdict")
}

func TestLLMJudgeTimeout(t *testing.T) {
	client := &fakeNLPClient{block: true}
	j := NewLLMJudge(client, Config{Timeout: 20 * time.Millisecond}, nil)

	result, err := j.Compare(context.Background(), "query",
		serviceCandidate("svc-a", "RDS"), serviceCandidate("svc-b", "Cloud SQL"))
	require.NoError(t, err)
	assert.Equal(t, types.Undetermined, result.Winner)
	assert.Equal(t, "comparison timed out", result.Note)
}

func TestLLMJudgeCancelledRequest(t *testing.T) {
	client := &fakeNLPClient{block: true}
	j := NewLLMJudge(client, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := j.Compare(ctx, "query",
		serviceCandidate("svc-a", "RDS"), serviceCandidate("svc-b", "Cloud SQL"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLLMJudgeClientError(t *testing.T) {
	client := &fakeNLPClient{err: errors.New("provider unavailable")}
	j := NewLLMJudge(client, Config{}, nil)

	_, err := j.Compare(context.Background(), "query",
		serviceCandidate("svc-a", "RDS"), serviceCandidate("svc-b", "Cloud SQL"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")
}

func TestLLMJudgeNilCandidate(t *testing.T) {
	j := NewLLMJudge(&fakeNLPClient{reply: "A"}, Config{}, nil)

	result, err := j.Compare(context.Background(), "query", nil, serviceCandidate("svc-b", "X"))
	require.NoError(t, err)
	assert.Equal(t, types.Undetermined, result.Winner)
}

func TestCrossEncoderJudge(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   types.ComparisonLabel
	}{
		{
			name:   "a wins",
			scores: map[string]float64{"RDS": 0.9, "Cloud SQL": 0.4},
			want:   types.AMoreRelevant,
		},
		{
			name:   "b wins",
			scores: map[string]float64{"RDS": 0.2, "Cloud SQL": 0.7},
			want:   types.BMoreRelevant,
		},
		{
			name:   "tie",
			scores: map[string]float64{"RDS": 0.5, "Cloud SQL": 0.5},
			want:   types.Undetermined,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewCrossEncoderJudge(&fakeCrossEncoder{scores: tt.scores}, nil)

			result, err := j.Compare(context.Background(), "managed postgres",
				serviceCandidate("svc-a", "RDS"), serviceCandidate("svc-b", "Cloud SQL"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Winner)
		})
	}
}

func TestCrossEncoderJudgeError(t *testing.T) {
	j := NewCrossEncoderJudge(&fakeCrossEncoder{err: errors.New("model not loaded")}, nil)

	_, err := j.Compare(context.Background(), "query",
		serviceCandidate("svc-a", "RDS"), serviceCandidate("svc-b", "Cloud SQL"))
	require.Error(t, err)
}

func TestCrossEncoderJudgeFiltered(t *testing.T) {
	j := NewCrossEncoderJudge(&fakeCrossEncoder{drop: true}, nil)

	result, err := j.Compare(context.Background(), "query",
		serviceCandidate("svc-a", "RDS"), serviceCandidate("svc-b", "Cloud SQL"))
	require.NoError(t, err)
	assert.Equal(t, types.Undetermined, result.Winner)
}

func TestScriptedJudge(t *testing.T) {
	j := NewScriptedJudge([]string{"best", "middle", "worst"})

	a := &types.Candidate{ID: "best", Provider: types.ProviderAWS}
	b := &types.Candidate{ID: "middle", Provider: types.ProviderGCP}
	unknown := &types.Candidate{ID: "stranger", Provider: types.ProviderAzure}

	result, err := j.Compare(context.Background(), "ignored", a, b)
	require.NoError(t, err)
	assert.Equal(t, types.AMoreRelevant, result.Winner)

	result, err = j.Compare(context.Background(), "ignored", b, a)
	require.NoError(t, err)
	assert.Equal(t, types.BMoreRelevant, result.Winner)

	result, err = j.Compare(context.Background(), "ignored", a, unknown)
	require.NoError(t, err)
	assert.Equal(t, types.Undetermined, result.Winner)

	assert.Equal(t, 3, j.Calls())
}

func TestRateLimitedJudge(t *testing.T) {
	script := NewScriptedJudge([]string{"svc-a", "svc-b"})
	j := NewRateLimited(script, 0) // unlimited

	a := &types.Candidate{ID: "svc-a", Provider: types.ProviderAWS}
	b := &types.Candidate{ID: "svc-b", Provider: types.ProviderGCP}

	for i := 0; i < 5; i++ {
		result, err := j.Compare(context.Background(), "q", a, b)
		require.NoError(t, err)
		assert.Equal(t, types.AMoreRelevant, result.Winner)
	}
	assert.Equal(t, 5, script.Calls())
}

func TestRateLimitedJudgeCancelled(t *testing.T) {
	// 1 permit per 100 seconds: the second call must wait, and a
	// cancelled context aborts the wait.
	j := NewRateLimited(NewScriptedJudge([]string{"svc-a", "svc-b"}), 0.01)

	a := &types.Candidate{ID: "svc-a", Provider: types.ProviderAWS}
	b := &types.Candidate{ID: "svc-b", Provider: types.ProviderGCP}

	_, err := j.Compare(context.Background(), "q", a, b)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = j.Compare(ctx, "q", a, b)
	require.Error(t, err)
}

func TestPassage(t *testing.T) {
	c := serviceCandidate("svc-a", "Amazon RDS")
	text := Passage(c)
	assert.Contains(t, text, "Amazon RDS")
	assert.Contains(t, text, "aws")
	assert.Contains(t, text, "encryption")

	bare := &types.Candidate{ID: "only-id", Provider: types.ProviderGCP}
	assert.Equal(t, "only-id", Passage(bare))

	assert.Equal(t, "", Passage(nil))
}
