// Package handlers implements the HTTP API endpoints over the
// recommendation client.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimbium/cirro"
)

// Build metadata, overridable with -ldflags -X.
var (
	Version   = "dev"
	GitCommit = "none"
	BuildTime = "unknown"
)

// Probe budgets. Readiness stays short so orchestrators get a quick
// answer; the detailed check tolerates a slow catalog.
const (
	readinessTimeout = 5 * time.Second
	detailedTimeout  = 10 * time.Second
)

// statusBody seeds the envelope every probe response shares.
func statusBody(status string) gin.H {
	return gin.H{
		"status":    status,
		"service":   "cirro",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// HealthHandler answers liveness, readiness, and detailed health
// probes.
type HealthHandler struct {
	client cirro.Cirro
}

// NewHealthHandler creates a health handler over the given client.
func NewHealthHandler(client cirro.Cirro) *HealthHandler {
	return &HealthHandler{client: client}
}

// Health handles GET /health, a basic liveness check.
func (h *HealthHandler) Health(c *gin.Context) {
	body := statusBody("healthy")
	body["version"] = Version
	c.JSON(http.StatusOK, body)
}

// Live handles GET /live, the Kubernetes liveness probe.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, statusBody("alive"))
}

// Ready handles GET /ready. The service is ready when the catalog
// answers a stats query within the probe timeout; a client without a
// catalog cannot serve recommendations and reports not ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := gin.H{}
	body := statusBody("ready")
	body["checks"] = checks

	ready := true
	if h.client == nil {
		checks["client"] = gin.H{"status": "unhealthy", "error": "pipeline client not initialized"}
		ready = false
	} else {
		start := time.Now()
		stats, err := h.client.CatalogStats(ctx)
		took := time.Since(start)

		switch {
		case err == nil:
			checks["catalog"] = gin.H{"status": "healthy", "services": stats.Total, "duration": took.String()}
		case errors.Is(err, cirro.ErrNoCatalog):
			checks["catalog"] = gin.H{"status": "unhealthy", "error": "no catalog store configured"}
			ready = false
		default:
			checks["catalog"] = gin.H{"status": "unhealthy", "error": err.Error(), "duration": took.String()}
			ready = false
		}
	}

	if !ready {
		body["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// DetailedHealth handles GET /health/detailed: build information,
// per-dependency checks, and runtime metrics.
func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), detailedTimeout)
	defer cancel()

	start := time.Now()
	checks := gin.H{}
	body := statusBody("healthy")
	body["version"] = Version
	body["build"] = gin.H{"commit": GitCommit, "built": BuildTime, "go": runtime.Version()}
	body["checks"] = checks

	healthy := true
	if h.client == nil {
		checks["client"] = gin.H{"status": "unhealthy", "error": "pipeline client not initialized"}
		healthy = false
	} else {
		catalogOK := h.checkCatalog(ctx, checks)
		parserOK := h.checkParser(ctx, checks)
		healthy = catalogOK && parserOK
	}
	checks["system"] = runtimeStats()

	body["response_time_ms"] = time.Since(start).Milliseconds()
	if !healthy {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// checkCatalog probes the catalog store and records the outcome under
// checks["catalog"].
func (h *HealthHandler) checkCatalog(ctx context.Context, checks gin.H) bool {
	start := time.Now()
	stats, err := h.client.CatalogStats(ctx)
	entry := gin.H{"operation": "CatalogStats", "duration_ms": time.Since(start).Milliseconds()}
	checks["catalog"] = entry
	if err != nil {
		entry["status"] = "unhealthy"
		entry["error"] = err.Error()
		return false
	}
	entry["status"] = "healthy"
	entry["services"] = stats.Total
	entry["embedded"] = stats.Embedded
	entry["providers"] = len(stats.ByProvider)
	return true
}

// checkParser runs a canned query through the parser. The parser always
// has the keyword fallback, so an error here means the query path
// itself is broken.
func (h *HealthHandler) checkParser(ctx context.Context, checks gin.H) bool {
	start := time.Now()
	_, err := h.client.ParseQuery(ctx, "managed postgres database on aws")
	entry := gin.H{"operation": "ParseQuery", "duration_ms": time.Since(start).Milliseconds()}
	checks["query_parsing"] = entry
	if err != nil {
		entry["status"] = "unhealthy"
		entry["error"] = err.Error()
		return false
	}
	entry["status"] = "healthy"
	return true
}

// runtimeStats reports process-level runtime metrics.
func runtimeStats() gin.H {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return gin.H{
		"status":        "healthy",
		"goroutines":    runtime.NumGoroutine(),
		"heap_alloc_mb": float64(ms.Alloc) / (1 << 20),
		"heap_objects":  ms.HeapObjects,
		"gc_cycles":     ms.NumGC,
	}
}
