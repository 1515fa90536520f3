package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbium/cirro/pkg/types"
)

func newTestHandler(t *testing.T) (*ParquetHandler, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "errors")
	next := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	h, err := NewParquetHandler(next, dir)
	require.NoError(t, err)
	return h, dir
}

func readLogRecords(t *testing.T, dir string) []LogRecord {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	rows, err := parquet.ReadFile[LogRecord](filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	return rows
}

func TestParquetHandlerPersistsOnlyErrors(t *testing.T) {
	h, dir := newTestHandler(t)
	logger := slog.New(h)

	ctx := context.WithValue(context.Background(), types.ContextKeyUserID, "u-42")
	ctx = context.WithValue(ctx, types.ContextKeySessionID, "s-9000")
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "api")

	logger.InfoContext(ctx, "routine progress")
	logger.ErrorContext(ctx, "stage failed", "stage", "rerank")
	require.NoError(t, h.Flush())

	rows := readLogRecords(t, dir)
	require.Len(t, rows, 1)

	rec := rows[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "ERROR", rec.Level)
	assert.Equal(t, "stage failed", rec.Message)
	assert.Equal(t, "u-42", rec.UserID)
	assert.Equal(t, "s-9000", rec.SessionID)
	assert.Equal(t, "api", rec.RequestSource)
	assert.Contains(t, rec.SourceFile, "handler_test.go")
	assert.Greater(t, rec.LineNumber, 0)

	var attrs map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.Attributes), &attrs))
	assert.Equal(t, "rerank", attrs["stage"])
}

func TestParquetHandlerFlushWithEmptyBuffer(t *testing.T) {
	h, dir := newTestHandler(t)
	require.NoError(t, h.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "an empty buffer must not produce a file")
}

func TestParquetHandlerClonesShareBuffer(t *testing.T) {
	h, dir := newTestHandler(t)
	base := slog.New(h)
	tagged := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "judge")}))

	base.Error("plain failure")
	tagged.Error("tagged failure")
	require.NoError(t, h.Flush())

	rows := readLogRecords(t, dir)
	assert.Len(t, rows, 2)
}

func TestParquetHandlerFlushesAtBatchSize(t *testing.T) {
	h, dir := newTestHandler(t)
	h.sink.batch = 2
	logger := slog.New(h)

	logger.Error("first failure")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "one record is below the batch threshold")

	logger.Error("second failure")
	rows := readLogRecords(t, dir)
	assert.Len(t, rows, 2)
}

func TestNewSQLHandlerFromDSNRejectsBadDSN(t *testing.T) {
	next := slog.NewTextHandler(io.Discard, nil)
	_, err := NewSQLHandlerFromDSN(next, "not a dsn")
	assert.Error(t, err)
}
