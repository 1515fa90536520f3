package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/nimbium/cirro/pkg/types"
)

// RetryConfig controls the exponential backoff applied to judge calls.
type RetryConfig struct {
	// MaxRetries bounds the retry attempts after the initial call.
	MaxRetries int
	// InitialDelay seeds the backoff; MaxDelay caps its growth.
	InitialDelay, MaxDelay time.Duration
	// Multiplier scales the delay between consecutive retries.
	Multiplier float64
}

// DefaultRetryConfig returns the retry policy used when the config file does
// not override it: three retries starting at one second, doubling, capped at
// a minute.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}
}

// normalize fills in zero or negative fields so a partially populated config
// cannot produce a busy loop.
func (c *RetryConfig) normalize() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = time.Minute
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
}

// RetryClient retries transient judge failures with exponential backoff.
// Client errors such as 400s surface immediately.
type RetryClient struct {
	backend Client
	cfg     *RetryConfig
	logger  *slog.Logger
}

// NewRetryClient wraps client with the given retry policy. A nil config gets
// the defaults and a nil logger falls back to slog.Default.
func NewRetryClient(client Client, cfg *RetryConfig, logger *slog.Logger) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{backend: client, cfg: cfg, logger: logger}
}

// Chat implements the Client interface with retry logic
func (r *RetryClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	return r.retry(ctx, func() (*types.Response, error) { return r.backend.Chat(ctx, messages) })
}

// ChatWithStructuredOutput implements the Client interface with retry logic
func (r *RetryClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return r.retry(ctx, func() (*types.Response, error) {
		return r.backend.ChatWithStructuredOutput(ctx, messages, schema)
	})
}

func (r *RetryClient) retry(ctx context.Context, call func() (*types.Response, error)) (*types.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		if attempt == r.cfg.MaxRetries {
			return nil, fmt.Errorf("failed after %d retries: %w", r.cfg.MaxRetries, err)
		}

		delay := r.backoff(attempt + 1)
		r.logger.Warn("retrying llm call",
			"attempt", attempt+1,
			"max_retries", r.cfg.MaxRetries,
			"delay", delay,
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("retry wait interrupted: %w", ctx.Err())
		}
	}
}

// Close implements the Client interface
func (r *RetryClient) Close() error { return r.backend.Close() }

// GetCapabilities reports the wrapped client's capabilities.
func (r *RetryClient) GetCapabilities() []TaskCapability { return r.backend.GetCapabilities() }

// backoff grows the delay geometrically per retry, capped at MaxDelay.
// Numbering starts at 1 for the first retry.
func (r *RetryClient) backoff(attempt int) time.Duration {
	d := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	return time.Duration(math.Min(d, float64(r.cfg.MaxDelay)))
}

// transientPatterns are substrings that mark an error message as worth
// retrying. Provider SDKs are inconsistent about error types, so string
// matching stays the broadest net.
var transientPatterns = []string{
	"rate limit", "too many requests", "429",
	"internal server error", "500",
	"bad gateway", "502",
	"service unavailable", "503",
	"gateway timeout", "504",
	"timeout",
	"connection reset", "connection refused", "temporary failure",
}

// isTransient reports whether err looks worth retrying. Rate limits, 5xx
// responses, and connection-level failures qualify. Refusals and other 4xx
// client errors do not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) || errors.Is(err, ErrRateLimit) {
		return true
	}

	type statusCoder interface {
		HTTPStatusCode() int
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.HTTPStatusCode(); code >= 500 || code == http.StatusTooManyRequests {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
