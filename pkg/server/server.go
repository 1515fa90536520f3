// Package server exposes the recommendation pipeline over HTTP: health
// probes, the recommendation and query-parsing endpoints, and catalog
// management.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nimbium/cirro"
	"github.com/nimbium/cirro/pkg/config"
	"github.com/nimbium/cirro/pkg/server/handlers"
	"github.com/nimbium/cirro/pkg/types"
)

// Server is the HTTP front of a pipeline client.
type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	client     cirro.Cirro
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a server over the given client. Call Setup before Start.
func New(cfg *config.Config, client cirro.Cirro, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, client: client, logger: logger}
}

// Setup builds the router, middleware, and the underlying http.Server.
func (s *Server) Setup() {
	gin.SetMode(s.cfg.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger(), gin.Recovery(), cors(), identity())
	s.routes()

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
}

func (s *Server) routes() {
	health := handlers.NewHealthHandler(s.client)
	recommend := handlers.NewRecommendHandler(s.client)
	catalog := handlers.NewCatalogHandler(s.client)

	// Health endpoints
	s.router.GET("/health", health.Health)
	s.router.GET("/healthcheck", health.Health) // legacy path
	s.router.GET("/ready", health.Ready)
	s.router.GET("/live", health.Live) // Kubernetes liveness probe
	s.router.GET("/health/detailed", health.DetailedHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/recommend", recommend.Recommend)
		v1.POST("/query/parse", recommend.ParseQuery)

		cat := v1.Group("/catalog")
		{
			cat.POST("/services", catalog.AddServices)
			cat.GET("/services", catalog.ListServices)
			cat.GET("/services/:id", catalog.GetService)
			cat.DELETE("/services/:id", catalog.DeleteService)
			cat.GET("/stats", catalog.Stats)
		}
	}

	// Legacy route kept for pre-v1 clients
	s.router.POST("/recommend", recommend.Recommend)
}

// Start runs the server until it fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully, draining in-flight requests
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying router, for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// cors adds permissive CORS headers and answers preflight requests.
func cors() gin.HandlerFunc {
	headers := map[string]string{
		"Access-Control-Allow-Origin":      "*",
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Allow-Headers":     "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With",
		"Access-Control-Allow-Methods":     "POST, OPTIONS, GET, PUT, DELETE",
	}
	return func(c *gin.Context) {
		for k, v := range headers {
			c.Header(k, v)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// identity copies request identity headers into the context so the telemetry
// log handlers can attribute pipeline activity.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), types.ContextKeyRequestSource, "http")
		if v := c.GetHeader("X-User-ID"); v != "" {
			ctx = context.WithValue(ctx, types.ContextKeyUserID, v)
		}
		if v := c.GetHeader("X-Session-ID"); v != "" {
			ctx = context.WithValue(ctx, types.ContextKeySessionID, v)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
