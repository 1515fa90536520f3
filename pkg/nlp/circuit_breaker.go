package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nimbium/cirro/pkg/alert"
	"github.com/nimbium/cirro/pkg/config"
	"github.com/nimbium/cirro/pkg/types"
)

// CircuitBreakerClient wraps a judge backend so a run of failures stops the
// pipeline from hammering a broken provider. Callers should check cfg.Enabled
// and skip the wrapper when breaking is off.
type CircuitBreakerClient struct {
	backend Client
	cb      *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient wraps client with a breaker named after the
// provider. The breaker opens once at least three requests have been seen
// and the failure ratio crosses the configured threshold; opening fires an
// operator alert.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger, name string) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}

	readyToTrip := func(counts gobreaker.Counts) bool {
		if counts.Requests < 3 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.TripRatio
	}
	onChange := func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		if to == gobreaker.StateOpen && alerter != nil {
			subject := fmt.Sprintf("circuit breaker open: %s", name)
			body := fmt.Sprintf("Provider %q went from %s to %s after repeated call failures. Pairwise comparisons fail fast and candidates keep their fusion order until the breaker closes.", name, from, to)
			_ = alerter.Alert(subject, body)
		}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      time.Duration(cfg.Interval) * time.Second,
		Timeout:       time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip:   readyToTrip,
		OnStateChange: onChange,
	})
	return &CircuitBreakerClient{backend: client, cb: cb}
}

// Chat implements Client
func (c *CircuitBreakerClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	return c.guard(func() (any, error) { return c.backend.Chat(ctx, messages) })
}

// ChatWithStructuredOutput implements Client
func (c *CircuitBreakerClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return c.guard(func() (any, error) { return c.backend.ChatWithStructuredOutput(ctx, messages, schema) })
}

// guard runs call through the breaker, failing fast while it is open.
func (c *CircuitBreakerClient) guard(call func() (any, error)) (*types.Response, error) {
	out, err := c.cb.Execute(call)
	if err != nil {
		return nil, err
	}
	return out.(*types.Response), nil
}

// Close implements Client
func (c *CircuitBreakerClient) Close() error {
	return c.backend.Close()
}

// GetCapabilities reports the wrapped client's capabilities.
func (c *CircuitBreakerClient) GetCapabilities() []TaskCapability {
	return c.backend.GetCapabilities()
}
