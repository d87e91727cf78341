// Package httpcontroller wires the echo server: middleware, templates, static
// assets and routes.
package httpcontroller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/handlers"
	"github.com/Brownie44l1/plant-disease-api/internal/logger"
	"github.com/Brownie44l1/plant-disease-api/internal/observability/metrics"
)

// Config controls the HTTP server.
type Config struct {
	Address   string // host:port
	BodyLimit string // e.g. 10M
	CORS      bool
	Metrics   bool // expose /metrics
}

// Server encapsulates the echo instance and its dependencies.
type Server struct {
	Echo     *echo.Echo
	Handlers *handlers.Handler

	cfg     Config
	metrics *metrics.Metrics
	log     logger.Logger
}

// New builds a server with middleware, renderer and routes configured.
func New(cfg Config, h *handlers.Handler, m *metrics.Metrics, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewDiscard()
	}
	s := &Server{
		Echo:     echo.New(),
		Handlers: h,
		cfg:      cfg,
		metrics:  m,
		log:      log,
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true

	if err := s.setupTemplateRenderer(); err != nil {
		return nil, err
	}
	s.configureMiddleware()
	s.initRoutes()
	return s, nil
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info("HTTP server starting", logger.String("address", s.cfg.Address))
	err := s.Echo.Start(s.cfg.Address)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryHTTP).
			Context("address", s.cfg.Address).
			Build()
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("HTTP server shutting down")
	return s.Echo.Shutdown(ctx)
}
