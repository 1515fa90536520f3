package nlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimbium/cirro/pkg/types"
)

// flakyClient fails a fixed number of calls before succeeding. It stands in
// for a judge backend with transient upstream trouble.
type flakyClient struct {
	calls    int
	failures int
	err      error
}

func (f *flakyClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &types.Response{Content: "B"}, nil
}

func (f *flakyClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &types.Response{Content: `{"winner": "B"}`}, nil
}

func (f *flakyClient) Close() error { return nil }

func (f *flakyClient) GetCapabilities() []TaskCapability {
	return []TaskCapability{TaskReranking}
}

// fastRetry keeps test backoffs in the millisecond range.
func fastRetry(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries: maxRetries, Multiplier: 2,
		InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond,
	}
}

// slowRetry spaces the retries far enough apart to watch deadlines cut in.
func slowRetry() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 5, Multiplier: 2,
		InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second,
	}
}

func TestRetryClientFirstCallSucceeds(t *testing.T) {
	backend := &flakyClient{}
	rc := NewRetryClient(backend, fastRetry(3), nil)

	resp, err := rc.Chat(t.Context(), []types.Message{NewUserMessage("which service fits better?")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "B" {
		t.Errorf("Content = %q, want %q", resp.Content, "B")
	}
	if backend.calls != 1 {
		t.Errorf("calls = %d, want 1", backend.calls)
	}
}

func TestRetryClientRecoversFromServerErrors(t *testing.T) {
	backend := &flakyClient{failures: 2, err: errors.New("503 service unavailable")}
	rc := NewRetryClient(backend, fastRetry(3), nil)

	start := time.Now()
	resp, err := rc.Chat(t.Context(), []types.Message{NewUserMessage("compare")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "B" {
		t.Errorf("Content = %q, want %q", resp.Content, "B")
	}
	if backend.calls != 3 {
		t.Errorf("calls = %d, want 3 (initial plus two retries)", backend.calls)
	}
	// Backoff of 10ms then 20ms has to show up in the wall clock.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 30ms of backoff", elapsed)
	}
}

func TestRetryClientExhaustsRetries(t *testing.T) {
	upstream := errors.New("502 bad gateway")
	backend := &flakyClient{failures: 100, err: upstream}
	rc := NewRetryClient(backend, fastRetry(3), nil)

	_, err := rc.Chat(t.Context(), []types.Message{NewUserMessage("compare")})
	if err == nil {
		t.Fatal("expected an error once retries run out")
	}
	if backend.calls != 4 {
		t.Errorf("calls = %d, want 4 (initial plus three retries)", backend.calls)
	}
	if !errors.Is(err, upstream) {
		t.Errorf("error %v should wrap the upstream error", err)
	}
}

func TestRetryClientSkipsNonRetryable(t *testing.T) {
	backend := &flakyClient{failures: 100, err: errors.New("400 bad request")}
	rc := NewRetryClient(backend, fastRetry(3), nil)

	if _, err := rc.Chat(t.Context(), []types.Message{NewUserMessage("compare")}); err == nil {
		t.Fatal("expected the client error to surface")
	}
	if backend.calls != 1 {
		t.Errorf("calls = %d, want 1 (client errors are not retried)", backend.calls)
	}
}

func TestRetryClientRetriesRateLimit(t *testing.T) {
	backend := &flakyClient{failures: 2, err: NewRateLimitError("rate limit exceeded")}
	rc := NewRetryClient(backend, fastRetry(3), nil)

	resp, err := rc.Chat(t.Context(), []types.Message{NewUserMessage("compare")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "B" {
		t.Errorf("Content = %q, want %q", resp.Content, "B")
	}
	if backend.calls != 3 {
		t.Errorf("calls = %d, want 3", backend.calls)
	}
}

func TestRetryClientHonorsContext(t *testing.T) {
	backend := &flakyClient{failures: 100, err: errors.New("500 internal server error")}
	rc := NewRetryClient(backend, slowRetry(), nil)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := rc.Chat(ctx, []types.Message{NewUserMessage("compare")})
	if err == nil {
		t.Fatal("expected an error after the deadline")
	}
	if backend.calls >= 6 {
		t.Errorf("calls = %d, deadline should have cut the retries short", backend.calls)
	}
}

func TestRetryClientStructuredOutput(t *testing.T) {
	backend := &flakyClient{failures: 2, err: errors.New("500 internal server error")}
	rc := NewRetryClient(backend, fastRetry(3), nil)

	resp, err := rc.ChatWithStructuredOutput(t.Context(),
		[]types.Message{NewUserMessage("compare")}, map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("ChatWithStructuredOutput: %v", err)
	}
	if resp.Content != `{"winner": "B"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if backend.calls != 3 {
		t.Errorf("calls = %d, want 3", backend.calls)
	}
}

func TestBackoffDelays(t *testing.T) {
	rc := NewRetryClient(nil, slowRetry(), nil)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		// 1600ms capped at MaxDelay
		1000 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := rc.backoff(attempt + 1); got != expected {
			t.Errorf("backoff(%d) = %v, want %v", attempt+1, got, expected)
		}
	}
}

func TestRetryDefaults(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialDelay != time.Second {
		t.Errorf("InitialDelay = %v, want 1s", cfg.InitialDelay)
	}
	if cfg.MaxDelay != time.Minute {
		t.Errorf("MaxDelay = %v, want 1m", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2 {
		t.Errorf("Multiplier = %v, want 2", cfg.Multiplier)
	}
}

// statusError exposes an HTTP status code without naming it in the message, so
// only the HTTPStatusCode path can classify it.
type statusError struct {
	code int
}

func (e statusError) Error() string       { return "upstream request failed" }
func (e statusError) HTTPStatusCode() int { return e.code }

func TestIsTransient(t *testing.T) {
	t.Run("message patterns", func(t *testing.T) {
		cases := []struct {
			name string
			err  error
			want bool
		}{
			{"nil", nil, false},
			{"server error", errors.New("500 internal server error"), true},
			{"bad gateway", errors.New("502 bad gateway"), true},
			{"unavailable", errors.New("503 service unavailable"), true},
			{"gateway timeout", errors.New("504 gateway timeout"), true},
			{"dial timeout", errors.New("connection timeout"), true},
			{"conn reset", errors.New("connection reset by peer"), true},
			{"rate limit text", errors.New("rate limit exceeded"), true},
			{"too many requests", errors.New("429 too many requests"), true},
			{"bad request", errors.New("400 bad request"), false},
			{"unauthorized", errors.New("401 unauthorized"), false},
			{"forbidden", errors.New("403 forbidden"), false},
			{"not found", errors.New("404 not found"), false},
			{"typed rate limit", NewRateLimitError(""), true},
			{"refusal", NewRefusalError("refused"), false},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if got := isTransient(tc.err); got != tc.want {
					t.Errorf("isTransient(%v) = %v, want %v", tc.err, got, tc.want)
				}
			})
		}
	})

	t.Run("status codes", func(t *testing.T) {
		cases := []struct {
			code int
			want bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{504, true},
			{429, true},
			{400, false},
			{401, false},
			{403, false},
			{404, false},
		}
		for _, tc := range cases {
			if got := isTransient(statusError{code: tc.code}); got != tc.want {
				t.Errorf("isTransient(%d) = %v, want %v", tc.code, got, tc.want)
			}
		}
	})
}
