// Command demo prints one line in every style the colored handler produces.
package main

import (
	"log/slog"

	"github.com/nimbium/cirro/pkg/logger"
)

func main() {
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Debug("debug in the default color")
	log.Info("info in the default color")
	log.Warn("warnings come out yellow")
	log.Error("errors come out red")

	// Catalog persistence milestones render green.
	log.Info("Persisting service batch", "count", 42, "batch_size", 100)
	log.Info("Ingested catalog snapshot", "services", 312, "duration", "2.5s")
	log.Info("Flushed token usage records", "rows", 156)

	// Grouped attributes carry a dotted prefix.
	reqLog := log.WithGroup("request").With("id", "a1b2c3")
	reqLog.Info("ranked candidates", "top_k", 20)
	reqLog.Warn("pairwise comparison failed, keeping order", "pair", "7 vs 12")
}
