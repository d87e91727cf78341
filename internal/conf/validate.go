package conf

import (
	"fmt"
	"strings"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/logger"
	"github.com/Brownie44l1/plant-disease-api/internal/model"
)

// Validate checks settings that would otherwise fail late, at first request.
func (s *Settings) Validate() error {
	var errs []error

	if s.Server.Port < 1 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Server.Port))
	}

	if s.Model.Path == "" {
		errs = append(errs, fmt.Errorf("model.path must be set"))
	}
	if s.Model.ClassIndices == "" {
		errs = append(errs, fmt.Errorf("model.classindices must be set"))
	}
	if s.Model.Backend != "" {
		if _, err := model.ResolveBackend(model.Config{Backend: s.Model.Backend}); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Model.ImageSize <= 0 {
		errs = append(errs, fmt.Errorf("model.imagesize must be positive, got %d", s.Model.ImageSize))
	}
	if _, err := s.ImageOptions(); err != nil {
		errs = append(errs, err)
	}
	if s.Model.Threads < 0 {
		errs = append(errs, fmt.Errorf("model.threads must not be negative, got %d", s.Model.Threads))
	}

	if s.Upload.Dir == "" {
		errs = append(errs, fmt.Errorf("upload.dir must be set"))
	}
	if n, err := s.MaxUploadBytes(); err != nil || n <= 0 {
		errs = append(errs, fmt.Errorf("upload.maxsize %q is not a valid size", s.Upload.MaxSize))
	}
	if s.Upload.Retention < 0 {
		errs = append(errs, fmt.Errorf("upload.retention must not be negative, got %s", s.Upload.Retention))
	}
	if s.Upload.MinFreeBytes < 0 {
		errs = append(errs, fmt.Errorf("upload.minfreebytes must not be negative, got %d", s.Upload.MinFreeBytes))
	}

	switch logger.LogLevel(strings.ToLower(s.Log.Level)) {
	case logger.LogLevelDebug, logger.LogLevelInfo, logger.LogLevelWarn, logger.LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s.Log.Level))
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.New(errors.Join(errs...)).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("problems", len(errs)).
		Build()
}
