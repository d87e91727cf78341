package httpcontroller

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Brownie44l1/plant-disease-api/internal/logger"
)

// configureMiddleware sets up middleware for the server. The request logger
// wraps Recover so panics are logged with their final status.
func (s *Server) configureMiddleware() {
	s.Echo.Use(s.RequestMiddleware())
	s.Echo.Use(middleware.Recover())
	if s.cfg.BodyLimit != "" {
		s.Echo.Use(middleware.BodyLimit(s.cfg.BodyLimit))
	}
	if s.cfg.CORS {
		s.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// RequestMiddleware tags each request with an ID, logs it and records
// request metrics.
func (s *Server) RequestMiddleware() echo.MiddlewareFunc {
	log := s.log.Module("request")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()[:8]
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			if err := next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			elapsed := time.Since(start)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			s.metrics.RecordHTTPRequest(req.Method, route, status, elapsed)

			fields := []logger.Field{
				logger.String("request_id", requestID),
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("status", status),
				logger.Duration("latency", elapsed),
				logger.String("client_ip", c.RealIP()),
			}
			switch {
			case status >= http.StatusInternalServerError:
				log.Error("Request failed", fields...)
			case status >= http.StatusBadRequest:
				log.Warn("Request rejected", fields...)
			default:
				log.Debug("Request served", fields...)
			}
			return nil
		}
	}
}
