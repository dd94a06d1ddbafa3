// Package httpapi exposes the Engine over HTTP: starting and inspecting
// investigations, health, and Prometheus metrics.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autosint/engine/pkg/orchestrator"
	"github.com/autosint/engine/pkg/relstore"
)

// Server wraps the Engine and relational store behind a gin router.
type Server struct {
	router *gin.Engine
	engine *orchestrator.Engine
	rel    *relstore.Store
	logger *slog.Logger
}

// New builds a Server. ginMode is passed straight to gin.SetMode
// ("debug"/"release"/"test").
func New(engine *orchestrator.Engine, rel *relstore.Store, ginMode string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	s := &Server{router: gin.Default(), engine: engine, rel: rel, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.POST("/investigations", s.handleCreateInvestigation)
	v1.GET("/investigations/:id", s.handleGetInvestigation)
	v1.GET("/investigations/:id/assessments", s.handleListAssessments)
	v1.POST("/investigations/:id/resume", s.handleResumeInvestigation)
}

// Run starts the HTTP server on addr, blocking until it returns an error.
func (s *Server) Run(addr string) error {
	s.logger.Info("httpapi: listening", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
