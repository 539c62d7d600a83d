// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/wolverine5550/clausecheck/internal/domain/ports"
	"github.com/wolverine5550/clausecheck/internal/domain/usecases"
	"github.com/wolverine5550/clausecheck/internal/infrastructure/metrics"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	CORSOrigins     []string
}

// Server is the HTTP server for the contract API.
type Server struct {
	echo          *echo.Echo
	ingest        *usecases.IngestUseCase
	contracts     *usecases.ContractsUseCase
	exporter      ports.ClauseExporter
	metrics       *metrics.Metrics
	logger        *zap.Logger
	config        Config
	segmentSchema *jsonschema.Schema
}

// NewServer creates a new HTTP server. metrics may be nil.
func NewServer(
	ingestUC *usecases.IngestUseCase,
	contractsUC *usecases.ContractsUseCase,
	exporter ports.ClauseExporter,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg Config,
) (*Server, error) {
	if ingestUC == nil || contractsUC == nil {
		return nil, errors.New("ingest and contracts usecases are required")
	}
	if exporter == nil {
		return nil, errors.New("exporter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	schema, err := compileSegmentSchema()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{
		echo:          e,
		ingest:        ingestUC,
		contracts:     contractsUC,
		exporter:      exporter,
		metrics:       m,
		logger:        logger,
		config:        cfg,
		segmentSchema: schema,
	}

	e.HTTPErrorHandler = s.handleError

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(s.observe)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
	}))

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/segment", s.handleSegment)

	api.POST("/contracts", s.handleUpload)
	api.GET("/contracts", s.handleList)
	api.GET("/contracts/:id", s.handleGet)
	api.GET("/contracts/:id/export.xlsx", s.handleExport)
	api.POST("/contracts/:id/resegment", s.handleResegment)
	api.DELETE("/contracts/:id", s.handleDelete)
}

// Handler exposes the router, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
		errCh <- s.echo.Start(s.config.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// observe logs every request and records it in the metrics. Errors are
// rendered here so the final status code is known.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		duration := time.Since(start)

		req := c.Request()
		status := c.Response().Status
		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.String("route", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		if s.metrics != nil && !strings.HasPrefix(c.Path(), "/metrics") {
			s.metrics.ObserveRequest(req.Method, c.Path(), status, duration)
		}
		return nil
	}
}
