// Package api implements the HTTP surface: routes, admission
// (validation, rate limiting, UUID checks), streaming, and uniform error
// handling.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/database"
	"github.com/codeready-toolchain/deepresearch/pkg/orchestrator"
	"github.com/codeready-toolchain/deepresearch/pkg/ratelimit"
)

// Server wires the orchestrator, persistence, and rate limiters into a
// gin.Engine and owns the HTTP listener's lifecycle.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	orchestrator *orchestrator.Orchestrator
	store        database.Store
	db           *sql.DB
	logger       *zap.Logger

	researchLimiter *ratelimit.Limiter
	historyLimiter  *ratelimit.Limiter
}

// Config holds the values needed to construct a Server.
type Config struct {
	Port                  int
	Production            bool
	ResearchRatePerMinute int
	HistoryRatePerMinute  int
}

// NewServer builds a Server with its routes fully wired. db is used only
// for the /health readiness check and may be nil (e.g. in unit tests),
// in which case /health reports application liveness without a database
// connectivity check. ValidateWiring is implicit: every other dependency
// is a required constructor argument.
func NewServer(cfg Config, orch *orchestrator.Orchestrator, store database.Store, db *sql.DB, logger *zap.Logger) *Server {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:          gin.New(),
		orchestrator:    orch,
		store:           store,
		db:              db,
		logger:          logger,
		researchLimiter: ratelimit.New(cfg.ResearchRatePerMinute),
		historyLimiter:  ratelimit.New(cfg.HistoryRatePerMinute),
	}

	s.engine.Use(gin.Recovery(), corsMiddleware, bodySizeLimit)
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the stream endpoint has no overall deadline, per spec §5
	}

	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	research := s.engine.Group("/research")
	research.POST("", rateLimitMiddleware(s.researchLimiter), s.submitResearchHandler)
	research.GET("/:id", requireValidSessionID, s.getSessionHandler)
	research.GET("/:id/stream", requireValidSessionID, s.streamSessionHandler)

	history := s.engine.Group("/history")
	history.Use(rateLimitMiddleware(s.historyLimiter))
	history.GET("", s.listHistoryHandler)
	history.DELETE("/:id", requireValidSessionID, s.deleteSessionHandler)
}

func (s *Server) healthHandler(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Timestamp: time.Now().UTC()}

	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status, err := database.Health(pingCtx, s.db)
		resp.Database = status
		if err != nil {
			resp.Status = "degraded"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests, including open streams,
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
