// Package api exposes the forecast and risk endpoints over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/iop-forecast-server/internal/domain"
	"github.com/iop-forecast-server/internal/middleware"
	"github.com/iop-forecast-server/internal/service"
)

// HealthChecker reports readiness of a backing service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	cfg      *domain.ServerConfig
	router   *gin.Engine
	server   *http.Server
	log      *logrus.Logger
	parser   *service.InputParser
	scorer   domain.RiskScorer
	engine   domain.ForecastEngine
	history  domain.HistoryStore
	cache    domain.ForecastCache
	dbHealth HealthChecker
}

// Deps bundles the collaborators the server needs. History, Cache and
// DBHealth are optional; nil disables the corresponding feature.
type Deps struct {
	Config   *domain.ServerConfig
	Logger   *logrus.Logger
	Scorer   domain.RiskScorer
	Engine   domain.ForecastEngine
	History  domain.HistoryStore
	Cache    domain.ForecastCache
	DBHealth HealthChecker
}

// NewServer creates a new HTTP server instance
func NewServer(deps Deps) *Server {
	if deps.Logger.GetLevel() == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	if deps.Config.RequestTimeout > 0 {
		router.Use(middleware.RequestTimeout(deps.Config.RequestTimeout))
	}
	if deps.Config.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst)
		router.Use(limiter.Middleware())
	}

	server := &Server{
		cfg:      deps.Config,
		router:   router,
		log:      deps.Logger,
		parser:   service.NewInputParser(),
		scorer:   deps.Scorer,
		engine:   deps.Engine,
		history:  deps.History,
		cache:    deps.Cache,
		dbHealth: deps.DBHealth,
	}

	server.setupRoutes()

	return server
}

// Router returns the underlying gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/forecast", s.handleForecast)
		v1.POST("/risk", s.handleRisk)
		v1.GET("/risk/live", s.handleRiskLive)
		v1.GET("/forecasts", s.handleListForecasts)
		v1.GET("/forecasts/export", s.handleExportForecasts)
		v1.GET("/forecasts/:id", s.handleGetForecast)
	}
}

// corsMiddleware adds CORS headers so the dashboard can call the API from
// another origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
