package logger_test

import (
	"log/slog"
	"os"

	"github.com/nimbium/cirro/pkg/logger"
)

func ExampleNewDefaultLogger() {
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Debug("resolved provider config")
	log.Info("Persisting service batch", "count", 42) // green in a terminal
	log.Warn("rate limit approaching", "current", 95, "limit", 100)
	log.Error("catalog load failed", "error", "timeout")
}

func ExampleNewLogger() {
	// JSON output suits log shippers; "text" selects the colored handler.
	log := logger.NewLogger(os.Stdout, logger.ParseLevel("info"), "json")

	log.Info("processing request", "user_id", "12345", "action", "recommend")
	log.Error("catalog connection failed", "error", "timeout", "retry_count", 3)
}
