// Package http - REST API for the gamification engine
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tila/internal/core"
	"tila/internal/protocols/websocket"
	"tila/pkg/config"
	"tila/pkg/logger"
	"tila/pkg/metrics"
	"tila/pkg/models"
)

// Rescanner runs the retroactive evaluation over all users
type Rescanner interface {
	RunNow() (*models.RescanReport, error)
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server manages HTTP REST API server
type Server struct {
	router       *gin.Engine
	config       *config.Config
	authSvc      core.AuthService
	gamification core.GamificationService
	rescanner    Rescanner
	store        HealthChecker
	metrics      *metrics.Metrics
	wsHandler    *websocket.Handler
	httpServer   *http.Server
}

// NewServer creates a new HTTP server with all handlers. rescanner, m and ws may be nil.
func NewServer(
	cfg *config.Config,
	authSvc core.AuthService,
	gamification core.GamificationService,
	rescanner Rescanner,
	store HealthChecker,
	m *metrics.Metrics,
	ws *websocket.Handler,
) *Server {
	mode := cfg.Server.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	router := gin.New()

	// Global middleware
	router.Use(requestID())
	router.Use(requestLogger(m))
	// Recovered panics go through the structured logger instead of gin's stderr
	router.Use(gin.RecoveryWithWriter(logger.Logrus().WriterLevel(logrus.ErrorLevel)))
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	s := &Server{
		router:       router,
		config:       cfg,
		authSvc:      authSvc,
		gamification: gamification,
		rescanner:    rescanner,
		store:        store,
		metrics:      m,
		wsHandler:    ws,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	if s.wsHandler != nil {
		s.router.GET("/ws/badges", s.wsHandler.HandleWebSocket)
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/badges", s.listBadges) // Public: catalog

		me := v1.Group("/me", AuthMiddleware(s.authSvc))
		{
			me.POST("/stats", s.registerUser)
			me.GET("/stats", s.getStats)
			me.POST("/items", s.recordItemCreated)
			me.POST("/completions", s.recordCompletion)
			me.POST("/todos/complete", s.recordTodoCompleted)
			me.POST("/badges/evaluate", s.evaluateBadges)
			me.GET("/badges", s.getBadgeProgress)
			me.GET("/activity", s.getDailyActivity)
		}

		admin := v1.Group("/admin", AuthMiddleware(s.authSvc), AdminMiddleware())
		{
			admin.POST("/badges/rescan", s.rescanBadges)
			admin.POST("/users/:user_id/points", s.awardPoints)
			admin.GET("/users/:user_id/badges", s.getUserBadgeProgress)
		}
	}
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
	logger.Infof("HTTP server listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if s.store != nil {
		if err := s.store.HealthCheck(c.Request.Context()); err != nil {
			logger.WithRequestID(c.Request.Context()).WithError(err).Warn("health check failed")
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
