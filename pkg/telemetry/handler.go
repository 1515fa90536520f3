// Package telemetry persists error-level log records to durable sinks so
// pipeline faults can be analyzed after the fact. The Parquet sink batches
// records into timestamped files; the SQL sink writes rows to a shared table.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/nimbium/cirro/pkg/types"
)

// LogRecord represents a single log entry for Parquet storage.
type LogRecord struct {
	ID        string    `parquet:"id"`
	Timestamp time.Time `parquet:"timestamp"`
	Level     string    `parquet:"level"`
	Message   string    `parquet:"message"`

	UserID        string `parquet:"user_id"`
	SessionID     string `parquet:"session_id"`
	RequestSource string `parquet:"request_source"`

	SourceFile string `parquet:"source_file"`
	LineNumber int    `parquet:"line_number"`
	Attributes string `parquet:"attributes"` // JSON string
}

const logBatchSize = 100

// parquetSink holds the buffer shared by a handler and all of its clones, so
// records logged through WithAttrs/WithGroup children flush together.
type parquetSink struct {
	dir string

	mu    sync.Mutex
	buf   []LogRecord
	batch int
}

// ParquetHandler is a slog.Handler that writes error logs to Parquet files.
type ParquetHandler struct {
	base slog.Handler
	sink *parquetSink
}

// NewParquetHandler creates a handler that forwards every record to next and
// additionally buffers error records for Parquet output under dir.
func NewParquetHandler(next slog.Handler, dir string) (*ParquetHandler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry dir: %w", err)
	}

	sink := &parquetSink{dir: dir, buf: make([]LogRecord, 0, logBatchSize), batch: logBatchSize}
	return &ParquetHandler{base: next, sink: sink}, nil
}

// Enabled implements slog.Handler.
func (h *ParquetHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle implements slog.Handler. The wrapped handler always runs; records at
// error level and above are additionally buffered for Parquet output.
func (h *ParquetHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.base.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= slog.LevelError {
		return h.sink.capture(ctx, r)
	}
	return nil
}

// capture buffers one record, flushing when the batch fills.
func (s *parquetSink) capture(ctx context.Context, r slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, newLogRecord(ctx, r))
	if len(s.buf) >= s.batch {
		return s.flush()
	}
	return nil
}

// newLogRecord captures one slog record plus whatever request identity the
// context carries.
func newLogRecord(ctx context.Context, r slog.Record) LogRecord {
	kv := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		kv[a.Key] = a.Value.Any()
		return true
	})
	attrsJSON, _ := json.Marshal(kv)

	frames := runtime.CallersFrames([]uintptr{r.PC})
	frame, _ := frames.Next()

	return LogRecord{
		ID:        uuid.New().String(),
		Timestamp: r.Time.UTC(),
		Level:     r.Level.String(),
		Message:   r.Message,

		UserID:        contextString(ctx, types.ContextKeyUserID),
		SessionID:     contextString(ctx, types.ContextKeySessionID),
		RequestSource: contextString(ctx, types.ContextKeyRequestSource),

		SourceFile: frame.File,
		LineNumber: frame.Line,
		Attributes: string(attrsJSON),
	}
}

func contextString(ctx context.Context, key types.ContextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// Flush writes any buffered records to a Parquet file.
func (h *ParquetHandler) Flush() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.flush()
}

// Close flushes remaining buffered records. The handler must not be used
// after Close.
func (h *ParquetHandler) Close() error {
	return h.Flush()
}

// flush writes the buffer out as one parquet file. Caller holds the lock.
func (s *parquetSink) flush() error {
	if len(s.buf) == 0 {
		return nil
	}

	now := time.Now()
	name := fmt.Sprintf("execution_errors_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(s.dir, name)

	if err := parquet.WriteFile(path, s.buf); err != nil {
		// The logging chain cannot log its own failure, so fall back to stderr.
		fmt.Fprintf(os.Stderr, "failed to write telemetry parquet file: %v\n", err)
		return err
	}

	s.buf = s.buf[:0]
	return nil
}

// WithAttrs implements slog.Handler. Clones share the parent's buffer.
func (h *ParquetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ParquetHandler{base: h.base.WithAttrs(attrs), sink: h.sink}
}

// WithGroup implements slog.Handler. Clones share the parent's buffer.
func (h *ParquetHandler) WithGroup(name string) slog.Handler {
	return &ParquetHandler{base: h.base.WithGroup(name), sink: h.sink}
}
