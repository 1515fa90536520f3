package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"

	"github.com/nimbium/cirro/pkg/config"
	"github.com/nimbium/cirro/pkg/types"
)

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:     true,
		MaxRequests: 1,
		Interval:    60,
		Timeout:     60,
		TripRatio:   0.5,
	}
}

func TestCircuitBreakerPassesThroughSuccess(t *testing.T) {
	backend := &flakyClient{}
	client := NewCircuitBreakerClient(backend, breakerConfig(), nil, nil, "primary")

	resp, err := client.Chat(context.Background(), []types.Message{NewUserMessage("which service fits better?")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "B" {
		t.Errorf("Content = %q, want %q", resp.Content, "B")
	}
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	boom := errors.New("provider down")
	backend := &flakyClient{failures: 100, err: boom}
	client := NewCircuitBreakerClient(backend, breakerConfig(), nil, nil, "primary")

	for i := 0; i < 3; i++ {
		if _, err := client.Chat(context.Background(), nil); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want %v", i, err, boom)
		}
	}

	// Three straight failures trip the breaker; the next call must not
	// reach the backend.
	_, err := client.Chat(context.Background(), nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want %v", err, gobreaker.ErrOpenState)
	}
	if backend.calls != 3 {
		t.Errorf("backend calls = %d, want 3", backend.calls)
	}
}
