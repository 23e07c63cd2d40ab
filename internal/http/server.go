// Package http provides the finsight HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/logging"
	"github.com/fyrsmithlabs/finsight/internal/orchestrator"
	"github.com/fyrsmithlabs/finsight/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const serviceName = "finsight"

// Answerer runs one query through the pipeline.
type Answerer interface {
	Answer(ctx context.Context, query string) (*orchestrator.AnswerResult, error)
}

// Server provides HTTP endpoints for finsight.
type Server struct {
	echo     *echo.Echo
	answerer Answerer
	store    vectorstore.Store
	logger   *zap.Logger
	config   *Config
	metrics  *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
	// BodyLimit uses echo's size syntax, e.g. "64K".
	BodyLimit  string
	Collection string
	Version    string
	// Meter receives the HTTP instruments; nil uses the global provider.
	Meter metric.Meter
}

func defaultConfig() *Config {
	return &Config{
		Host:        "localhost",
		Port:        8000,
		CORSOrigins: []string{"http://localhost:3000"},
		BodyLimit:   "64K",
		Collection:  "stock",
	}
}

// NewServer creates a new HTTP server. store may be nil, in which case the
// status endpoint reports the store as unavailable.
func NewServer(answerer Answerer, store vectorstore.Store, logger *zap.Logger, cfg *Config) (*Server, error) {
	if answerer == nil {
		return nil, fmt.Errorf("answerer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = defaultConfig().CORSOrigins
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = defaultConfig().BodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	metrics := NewHTTPMetrics(cfg.Meter, logger)
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		answerer: answerer,
		store:    store,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/query", s.handleQuery)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: serviceName})
}

// handleQuery answers one natural-language question.
func (s *Server) handleQuery(c echo.Context) error {
	ctx := c.Request().Context()

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		s.metrics.RecordQueryFailure(ctx, failureBadRequest)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.answerer.Answer(ctx, req.Query)
	switch {
	case err == nil:
		c.Set(sourceKey, string(result.Source))
		return c.JSON(http.StatusOK, result)
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		s.logger.Error("query failed, collection missing", zap.String("collection", s.config.Collection), zap.Error(err))
		s.metrics.RecordQueryFailure(ctx, failureStoreUnavailable)
		return echo.NewHTTPError(http.StatusBadGateway, "collection not loaded, run ingest first")
	case errors.Is(err, orchestrator.ErrRetrievalFailed):
		s.logger.Error("query failed", zap.Error(err))
		s.metrics.RecordQueryFailure(ctx, failureStoreUnavailable)
		return echo.NewHTTPError(http.StatusBadGateway, "vector store unavailable")
	default:
		s.logger.Error("query failed", zap.Error(err))
		s.metrics.RecordQueryFailure(ctx, failureInternal)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// handleStatus reports service and store state.
func (s *Server) handleStatus(c echo.Context) error {
	points := PointCount(c.Request().Context(), s.store, s.config.Collection)

	resp := StatusResponse{
		Status:   "ok",
		Version:  s.config.Version,
		Services: map[string]string{"vectorstore": "ok"},
		Counts:   StatusCounts{Points: points},
	}
	if points < 0 {
		resp.Status = "degraded"
		resp.Services["vectorstore"] = "unavailable"
	}
	return c.JSON(http.StatusOK, resp)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
