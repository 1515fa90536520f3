package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nimbium/cirro/pkg/config"
	"github.com/nimbium/cirro/pkg/types"
)

// Usage class values recognized by the router. Callers tag the context with
// types.ContextKeyUsage so pipeline stages can run on different models.
const (
	UsageRerank  = "rerank"
	UsageParse   = "parse"
	UsageSummary = "summary"
)

// WithUsage tags a context with the usage class for routing.
func WithUsage(ctx context.Context, usage string) context.Context {
	return context.WithValue(ctx, types.ContextKeyUsage, usage)
}

// RouterClient sends each request to the provider configured for its usage
// class, with an optional per-rule fallback provider.
type RouterClient struct {
	providers map[string]Client
	rules     []config.RouterRule
	base      Client
	logger    *slog.Logger
}

// NewRouterClient builds a router over the named providers. The provider
// keyed "default" handles untagged requests; without one, an arbitrary
// provider takes that role.
func NewRouterClient(providers map[string]Client, rules []config.RouterRule, logger *slog.Logger) (*RouterClient, error) {
	if len(providers) == 0 {
		return nil, errors.New("no providers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := providers["default"]
	if base == nil {
		for _, c := range providers {
			base = c
			break
		}
	}

	return &RouterClient{providers: providers, rules: rules, base: base, logger: logger}, nil
}

// route resolves the provider for the context's usage class. Untagged
// requests, unmatched classes, and rules naming unknown providers all land on
// the default provider.
func (r *RouterClient) route(ctx context.Context) (primary Client, name string, fallback Client) {
	usage, _ := ctx.Value(types.ContextKeyUsage).(string)
	if usage == "" {
		return r.base, "default", nil
	}

	for _, rule := range r.rules {
		if !strings.EqualFold(rule.Usage, usage) {
			continue
		}
		p, ok := r.providers[rule.Provider]
		if !ok {
			continue
		}
		return p, rule.Provider, r.providers[rule.Fallback]
	}

	return r.base, "default", nil
}

// dispatch routes the call, retrying once on the rule's fallback provider.
func (r *RouterClient) dispatch(ctx context.Context, call func(Client) (*types.Response, error)) (*types.Response, error) {
	primary, name, fallback := r.route(ctx)

	resp, err := call(primary)
	if err != nil && fallback != nil {
		r.logger.Warn("routing fallback triggered", "provider", name, "error", err)
		return call(fallback)
	}
	return resp, err
}

// Chat implements Client with routing and fallback.
func (r *RouterClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	return r.dispatch(ctx, func(c Client) (*types.Response, error) { return c.Chat(ctx, messages) })
}

// ChatWithStructuredOutput implements Client with routing and fallback.
func (r *RouterClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return r.dispatch(ctx, func(c Client) (*types.Response, error) { return c.ChatWithStructuredOutput(ctx, messages, schema) })
}

// Close closes every provider and reports the failures together.
func (r *RouterClient) Close() error {
	var errs []error
	for id, c := range r.providers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// GetCapabilities returns the capabilities of the default provider.
func (r *RouterClient) GetCapabilities() []TaskCapability {
	if r.base == nil {
		return nil
	}
	return r.base.GetCapabilities()
}
