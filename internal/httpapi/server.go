// Package httpapi is the HTTP surface of spec.md §6.1: POST /chat and
// GET /health, behind CORS-wildcard and zap request logging, the same
// gin.New()+gin.Recovery() shape the teacher uses in its own server.go.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/modelgateway/chatproxy/internal/proxy"
	"go.uber.org/zap"
)

// poolTag is a process-lifetime diagnostic id for the upstream connection
// pool, surfaced as GET /health's pool_tag field (SPEC_FULL.md §C.1) — not a
// wire-contract id, just something to grep for across restarts in logs.
var poolTag = uuid.New().String()

// Server wraps the gin engine and its lifecycle.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config is the bind address and gin mode.
type Config struct {
	Host string
	Port string
	Mode string // debug, release
}

// NewServer builds the HTTP surface.
func NewServer(cfg Config, orch *proxy.Orchestrator, upstreamHealthy func() bool, logger *zap.Logger) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))
	router.Use(corsMiddleware())

	chatHandler := NewChatHandler(orch, logger)

	router.POST("/chat", chatHandler.Handle)
	router.GET("/health", healthHandler(upstreamHealthy))

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	return &Server{server: srv, logger: logger}
}

// Start runs the server in the background; errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func healthHandler(upstreamHealthy func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if upstreamHealthy() {
			c.JSON(http.StatusOK, gin.H{
				"status":   "ok",
				"detail":   "upstream client initialized",
				"pool_tag": poolTag,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "warning", "detail": "upstream client not initialized"})
	}
}

// corsMiddleware is the wildcard CORS policy of spec.md §6.1: origins,
// methods and headers are all "*", credentials allowed, everything exposed.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Expose-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
