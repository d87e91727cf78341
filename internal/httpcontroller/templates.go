package httpcontroller

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/logger"
)

//go:embed views/*.html
var viewsFS embed.FS

//go:embed static
var staticFS embed.FS

// TemplateRenderer is a custom HTML template renderer for echo.
type TemplateRenderer struct {
	templates *template.Template
	log       logger.Logger
}

// Render executes the named template into a buffer before writing it to w.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		t.log.Error("Error executing template", logger.String("template", name), logger.Error(err))
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// setupTemplateRenderer parses the embedded views and installs the renderer.
func (s *Server) setupTemplateRenderer() error {
	tmpl, err := template.ParseFS(viewsFS, "views/*.html")
	if err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryConfiguration).
			Build()
	}
	s.Echo.Renderer = &TemplateRenderer{
		templates: tmpl,
		log:       s.log.Module("templates"),
	}
	return nil
}
