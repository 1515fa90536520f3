package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/nimbium/cirro/pkg/config"
	"github.com/nimbium/cirro/pkg/types"
)

// namedClient answers every chat with its own name, so routing tests can see
// which provider a request landed on.
type namedClient struct {
	name   string
	err    error
	calls  int
	closed bool
}

func (n *namedClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	n.calls++
	if n.err != nil {
		return nil, n.err
	}
	return &types.Response{Content: n.name}, nil
}

func (n *namedClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return n.Chat(ctx, messages)
}

func (n *namedClient) Close() error { n.closed = true; return nil }

func (n *namedClient) GetCapabilities() []TaskCapability {
	return []TaskCapability{TaskTextGeneration}
}

func TestRouterRequiresProviders(t *testing.T) {
	if _, err := NewRouterClient(nil, nil, nil); err == nil {
		t.Fatal("expected an error with no providers")
	}
}

func TestRouterUsageClassRouting(t *testing.T) {
	def := &namedClient{name: "default"}
	judge := &namedClient{name: "judge"}
	r, err := NewRouterClient(
		map[string]Client{"default": def, "judge": judge},
		[]config.RouterRule{{Usage: UsageRerank, Provider: "judge"}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewRouterClient: %v", err)
	}
	msgs := []types.Message{NewUserMessage("which service fits better?")}

	resp, err := r.Chat(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "default" {
		t.Errorf("untagged request landed on %q, want default", resp.Content)
	}

	resp, err = r.Chat(WithUsage(context.Background(), UsageRerank), msgs)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "judge" {
		t.Errorf("rerank request landed on %q, want judge", resp.Content)
	}
}

func TestRouterFallbackProvider(t *testing.T) {
	def := &namedClient{name: "default"}
	judge := &namedClient{name: "judge", err: errors.New("503 service unavailable")}
	backup := &namedClient{name: "backup"}
	r, err := NewRouterClient(
		map[string]Client{"default": def, "judge": judge, "backup": backup},
		[]config.RouterRule{{Usage: UsageRerank, Provider: "judge", Fallback: "backup"}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewRouterClient: %v", err)
	}

	resp, err := r.Chat(WithUsage(context.Background(), UsageRerank), []types.Message{NewUserMessage("compare")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "backup" {
		t.Errorf("failed primary should fall back, got %q", resp.Content)
	}
	if judge.calls != 1 {
		t.Errorf("judge calls = %d, want 1", judge.calls)
	}
	if def.calls != 0 {
		t.Errorf("default calls = %d, the default provider is not a fallback", def.calls)
	}
}

func TestRouterUnroutableUsageLandsOnDefault(t *testing.T) {
	def := &namedClient{name: "default"}
	r, err := NewRouterClient(
		map[string]Client{"default": def},
		[]config.RouterRule{{Usage: UsageParse, Provider: "missing"}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewRouterClient: %v", err)
	}
	msgs := []types.Message{NewUserMessage("parse this request")}

	// A rule naming an unknown provider and a usage class with no rule at
	// all both resolve to the default provider.
	for _, usage := range []string{UsageParse, UsageSummary} {
		resp, err := r.Chat(WithUsage(context.Background(), usage), msgs)
		if err != nil {
			t.Fatalf("Chat(%s): %v", usage, err)
		}
		if resp.Content != "default" {
			t.Errorf("usage %q landed on %q, want default", usage, resp.Content)
		}
	}
}

func TestRouterCloseClosesAllProviders(t *testing.T) {
	a := &namedClient{name: "a"}
	b := &namedClient{name: "b"}
	r, err := NewRouterClient(map[string]Client{"default": a, "b": b}, nil, nil)
	if err != nil {
		t.Fatalf("NewRouterClient: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Errorf("closed = %v/%v, want both true", a.closed, b.closed)
	}
}
