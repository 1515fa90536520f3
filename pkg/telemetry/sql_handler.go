package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/go-sql-driver/mysql" // register the mysql driver for DSN-based sinks
)

const createLogTable = `
CREATE TABLE IF NOT EXISTS telemetry_logs (
	id             VARCHAR(36) PRIMARY KEY,
	timestamp      TIMESTAMP,
	level          VARCHAR(16),
	message        TEXT,
	user_id        VARCHAR(255),
	session_id     VARCHAR(255),
	request_source VARCHAR(32),
	source_file    VARCHAR(255),
	line_number    INT,
	attributes     JSON
)`

const insertLogRecord = `
INSERT INTO telemetry_logs
	(id, timestamp, level, message, user_id, session_id, request_source, source_file, line_number, attributes)
VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLHandler is a slog.Handler that writes error logs to a SQL table. It is
// an alternative to the Parquet sink for deployments that already run a
// MySQL-compatible database.
type SQLHandler struct {
	base slog.Handler
	db   *sql.DB
}

// NewSQLHandler wraps next with a SQL sink over an existing DB connection,
// creating the log table if needed.
func NewSQLHandler(next slog.Handler, db *sql.DB) (*SQLHandler, error) {
	if _, err := db.Exec(createLogTable); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry table: %w", err)
	}
	return &SQLHandler{base: next, db: db}, nil
}

// NewSQLHandlerFromDSN opens a mysql connection for the given DSN and wraps
// next with a SQL sink.
func NewSQLHandlerFromDSN(next slog.Handler, dsn string) (*SQLHandler, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach telemetry database: %w", err)
	}
	h, err := NewSQLHandler(next, db)
	if err != nil {
		db.Close()
	}
	return h, err
}

// Enabled implements slog.Handler.
func (h *SQLHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle implements slog.Handler. The wrapped handler always runs; records at
// error level and above are additionally persisted. A failed insert goes to
// stderr rather than failing the logging chain.
func (h *SQLHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.base.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= slog.LevelError {
		if err := h.insert(ctx, r); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write telemetry log to SQL: %v\n", err)
		}
	}
	return nil
}

func (h *SQLHandler) insert(ctx context.Context, r slog.Record) error {
	rec := newLogRecord(ctx, r)

	// The record's context is often already canceled by the time an error
	// is logged, so the insert does not use it.
	_, err := h.db.Exec(insertLogRecord,
		rec.ID, rec.Timestamp, rec.Level, rec.Message,
		rec.UserID, rec.SessionID, rec.RequestSource,
		rec.SourceFile, rec.LineNumber, rec.Attributes,
	)
	return err
}

// Close releases the database connection.
func (h *SQLHandler) Close() error {
	return h.db.Close()
}

// WithAttrs implements slog.Handler.
func (h *SQLHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SQLHandler{base: h.base.WithAttrs(attrs), db: h.db}
}

// WithGroup implements slog.Handler.
func (h *SQLHandler) WithGroup(name string) slog.Handler {
	return &SQLHandler{base: h.base.WithGroup(name), db: h.db}
}
