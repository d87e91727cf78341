// Package telemetry forwards categorized errors to Sentry when a DSN is configured.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
)

// SentryReporter implements errors.Reporter on top of the global Sentry hub.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a reporter; a disabled reporter drops everything.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether the reporter sends events
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends an enhanced error to Sentry once.
func (sr *SentryReporter) ReportError(ee *errors.EnhancedError) {
	if !sr.enabled || ee.MarkReported() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		for key, value := range ee.GetContext() {
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(levelFor(ee.Category))
		sentry.CaptureException(ee)
	})
}

func levelFor(category errors.ErrorCategory) sentry.Level {
	switch category {
	case errors.CategoryModelInit, errors.CategoryModelLoad, errors.CategoryLabelLoad, errors.CategoryConfiguration:
		return sentry.LevelFatal
	case errors.CategoryValidation, errors.CategoryImageDecode, errors.CategoryNotFound:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

// Init configures Sentry and installs the reporter. An empty dsn leaves
// telemetry off and returns a no-op flush function.
func Init(dsn, release string) (flush func(), err error) {
	if dsn == "" {
		errors.SetReporter(nil)
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	errors.SetReporter(NewSentryReporter(true))
	return func() { sentry.Flush(2 * time.Second) }, nil
}
