package httpcontroller

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// initRoutes registers every endpoint.
func (s *Server) initRoutes() {
	s.Echo.GET("/", s.Handlers.Index)
	s.Echo.POST("/predict", s.Handlers.Predict)
	s.Echo.GET("/result", s.Handlers.Result)
	s.Echo.GET("/health", s.Handlers.Health)

	s.Echo.StaticFS("/static", echo.MustSubFS(staticFS, "static"))

	if s.cfg.Metrics && s.metrics.Registry() != nil {
		reg := s.metrics.Registry()
		s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry: reg,
		})))
	}
}
