// Package server exposes the compression pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/compressd/internal/config"
	"github.com/fyrsmithlabs/compressd/internal/document"
	"github.com/fyrsmithlabs/compressd/internal/ingest"
	"github.com/fyrsmithlabs/compressd/internal/pipeline"
	"github.com/fyrsmithlabs/compressd/internal/report"
	"github.com/fyrsmithlabs/compressd/internal/summarizer"
)

// ErrNilLogger signals a missing logger.
var ErrNilLogger = errors.New("logger is required")

// Runner runs one compression over ingested paragraphs.
type Runner interface {
	Run(ctx context.Context, paragraphs []document.Paragraph) (*document.Report, error)
}

// Server serves the compression API.
type Server struct {
	echo   *echo.Echo
	logger *zap.Logger
	base   config.Config

	// newRunner builds a pipeline for a request-specific configuration.
	// Swappable in tests.
	newRunner func(cfg config.Config) (Runner, error)

	// runner handles requests without overrides.
	runner Runner
}

// New creates the server around the base configuration.
func New(base config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = base.Server.ReadTimeout
	e.Server.WriteTimeout = base.Server.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		logger: logger,
		base:   base,
		newRunner: func(cfg config.Config) (Runner, error) {
			return pipeline.New(cfg.Pipeline, cfg.Chunker, cfg.Summarizer, logger)
		},
	}

	runner, err := s.newRunner(base)
	if err != nil {
		return nil, err
	}
	s.runner = runner

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/compress", s.handleCompress)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleCompress compresses a plain-text document body and returns the
// report. Query parameters strategy, target_ratio, and max_length override
// the configured values for this request only; invalid overrides are
// rejected before any processing.
func (s *Server) handleCompress(c echo.Context) error {
	runner, err := s.requestRunner(c)
	if err != nil {
		s.logger.Warn("rejected compress request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	paragraphs, err := ingest.ReadDocument(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rep, err := runner.Run(c.Request().Context(), paragraphs)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyDocument) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("compression run failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "compression failed")
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, rep); err != nil {
		s.logger.Error("report encoding failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "report encoding failed")
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, buf.Bytes())
}

// requestRunner returns the default runner, or builds one for validated
// query-parameter overrides.
func (s *Server) requestRunner(c echo.Context) (Runner, error) {
	overridden := false
	cfg := s.base

	if v := c.QueryParam("strategy"); v != "" {
		cfg.Pipeline.Strategy = summarizer.Strategy(v)
		overridden = true
	}
	if v := c.QueryParam("target_ratio"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, config.ErrTargetRatioRange
		}
		cfg.Summarizer.TargetRatio = ratio
		overridden = true
	}
	if v := c.QueryParam("max_length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, pipeline.ErrMaxLengthNonPositive
		}
		cfg.Pipeline.MaxLength = n
		overridden = true
	}

	if !overridden {
		return s.runner, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return s.newRunner(cfg)
}

// Start starts the HTTP server on the configured address.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.base.Server.Addr))
	return s.echo.Start(s.base.Server.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
