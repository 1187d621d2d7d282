package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/presence-relay/internal/registry"
	"github.com/rickgao/presence-relay/internal/version"
)

// Server serves the request layer over a session registry.
type Server struct {
	registry *registry.Registry
	logger   *slog.Logger
	engine   *gin.Engine
}

// NewServer creates a Server and registers its routes.
func NewServer(reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry: reg,
		logger:   logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(logger), allowCORS())
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.POST("/connect", s.handleConnect)
	api.POST("/set-activity", s.handleSetActivity)
	api.POST("/clear-activity", s.handleClearActivity)
	api.POST("/set-status", s.handleSetStatus)
	api.GET("/status", s.handleStatus)
	api.POST("/disconnect", s.handleDisconnect)
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// allowCORS answers preflight requests and allows any origin.
func allowCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.registry.Len(),
		Version:  version.Version,
	})
}
