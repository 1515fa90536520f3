package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/nimbium/cirro/pkg/cost"
	"github.com/nimbium/cirro/pkg/types"
)

// ctxString reads a string context value, returning "" when absent.
func ctxString(ctx context.Context, key types.ContextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// TokenUsageRecord is one persisted row of model token accounting.
type TokenUsageRecord struct {
	ID        string    `parquet:"id"`
	Timestamp time.Time `parquet:"timestamp"`
	Model     string    `parquet:"model"`

	PromptTokens     int     `parquet:"prompt_tokens"`
	CompletionTokens int     `parquet:"completion_tokens"`
	TotalTokens      int     `parquet:"total_tokens"`
	EstimatedCost    float64 `parquet:"estimated_cost"`

	UserID        string `parquet:"user_id"`
	SessionID     string `parquet:"session_id"`
	RequestSource string `parquet:"request_source"`
	UsageClass    string `parquet:"usage_class"`
	IsSystemCall  bool   `parquet:"is_system_call"`
}

// usageBatchSize is how many records accumulate before a parquet file is cut.
const usageBatchSize = 100

// ParquetTokenTracker buffers token usage rows and writes them to parquet
// files in batches.
type ParquetTokenTracker struct {
	dir    string
	costs  *cost.CostCalculator
	logger *slog.Logger

	mu    sync.Mutex
	buf   []TokenUsageRecord
	batch int
}

// NewTokenTracker creates a tracker writing under dir.
func NewTokenTracker(dir string, logger *slog.Logger) (*ParquetTokenTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create token usage dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ParquetTokenTracker{
		dir:    dir,
		costs:  cost.NewCostCalculator(),
		logger: logger,
		buf:    make([]TokenUsageRecord, 0, usageBatchSize),
		batch:  usageBatchSize,
	}, nil
}

// AddUsage records one response's token counts along with its estimated cost
// and whatever request identity the context carries.
func (p *ParquetTokenTracker) AddUsage(ctx context.Context, u *types.TokenUsage, model string) error {
	if u == nil {
		return nil
	}

	rec := TokenUsageRecord{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Model:     model,

		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		EstimatedCost:    p.costs.CalculateCost(model, u.PromptTokens, u.CompletionTokens),

		UserID:        ctxString(ctx, types.ContextKeyUserID),
		SessionID:     ctxString(ctx, types.ContextKeySessionID),
		RequestSource: ctxString(ctx, types.ContextKeyRequestSource),
		UsageClass:    ctxString(ctx, types.ContextKeyUsage),
	}
	rec.IsSystemCall, _ = ctx.Value(types.ContextKeySystemCall).(bool)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, rec)
	if len(p.buf) >= p.batch {
		return p.flush()
	}
	return nil
}

// Flush writes any buffered records to disk.
func (p *ParquetTokenTracker) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flush()
}

// Close flushes remaining buffered records.
func (p *ParquetTokenTracker) Close() error {
	return p.Flush()
}

// flush writes the buffer out as one parquet file. Caller holds the lock.
func (p *ParquetTokenTracker) flush() error {
	if len(p.buf) == 0 {
		return nil
	}

	now := time.Now()
	name := fmt.Sprintf("token_usage_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(p.dir, name)

	if err := parquet.WriteFile(path, p.buf); err != nil {
		p.logger.Error("failed to write token usage parquet file", "path", path, "error", err)
		return err
	}

	p.buf = p.buf[:0]
	return nil
}

// TokenTrackingClient decorates a Client, feeding every response's usage
// counts into a tracker. Tracking failures are logged, never surfaced.
type TokenTrackingClient struct {
	next    Client
	tracker *ParquetTokenTracker
}

// NewTokenTrackingClient wraps next so its usage flows into tracker.
func NewTokenTrackingClient(next Client, tracker *ParquetTokenTracker) *TokenTrackingClient {
	return &TokenTrackingClient{next: next, tracker: tracker}
}

// Chat implements Client.
func (tc *TokenTrackingClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := tc.next.Chat(ctx, messages)
	if err == nil {
		tc.record(ctx, resp)
	}
	return resp, err
}

// ChatWithStructuredOutput implements Client.
func (tc *TokenTrackingClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	resp, err := tc.next.ChatWithStructuredOutput(ctx, messages, schema)
	if err == nil {
		tc.record(ctx, resp)
	}
	return resp, err
}

func (tc *TokenTrackingClient) record(ctx context.Context, resp *types.Response) {
	if resp == nil || resp.TokensUsed == nil {
		return
	}
	model := "unknown"
	if resp.Model != "" {
		model = resp.Model
	}
	if err := tc.tracker.AddUsage(ctx, resp.TokensUsed, model); err != nil {
		tc.tracker.logger.Warn("failed to log token usage", "error", err)
	}
}

// GetCapabilities implements Client.
func (tc *TokenTrackingClient) GetCapabilities() []TaskCapability {
	return tc.next.GetCapabilities()
}

// Close flushes pending usage rows, then closes the wrapped client.
func (tc *TokenTrackingClient) Close() error {
	if err := tc.tracker.Flush(); err != nil {
		tc.tracker.logger.Warn("failed to flush token usage on close", "error", err)
	}
	return tc.next.Close()
}
