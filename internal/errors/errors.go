// Package errors provides categorized errors with an optional telemetry hook.
//
// It doubles as a drop-in for the standard errors package (Is, As, Unwrap, Join).
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for grouping and reporting
type ErrorCategory string

const (
	CategoryModelInit     ErrorCategory = "model-initialization"
	CategoryModelLoad     ErrorCategory = "model-loading"
	CategoryLabelLoad     ErrorCategory = "label-loading"
	CategoryValidation    ErrorCategory = "validation"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryImageDecode   ErrorCategory = "image-decode"
	CategoryInference     ErrorCategory = "inference"
	CategoryProcessing    ErrorCategory = "processing"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryHTTP          ErrorCategory = "http-request"
	CategoryStorage       ErrorCategory = "storage"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is used when no component was given.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with a category, component and context data.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	mu       sync.Mutex
	reported bool
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// GetContext returns a copy of the context data.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	out := make(map[string]any, len(ee.Context))
	maps.Copy(out, ee.Context)
	return out
}

// MarkReported marks the error as sent to telemetry and reports whether it
// had already been sent.
func (ee *EnhancedError) MarkReported() bool {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	was := ee.reported
	ee.reported = true
	return was
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts building an enhanced error from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds a context value
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Timing records an operation name and its duration
func (eb *ErrorBuilder) Timing(operation string, d time.Duration) *ErrorBuilder {
	return eb.Context("operation", operation).Context("duration_ms", d.Milliseconds())
}

// Build creates the EnhancedError and hands it to the active reporter, if any.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Err == nil {
		ee.Err = stderrors.New("unknown error")
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = categoryOf(eb.err)
	}

	if r := currentReporter(); r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
	return ee
}

// categoryOf inherits the category of an already enhanced cause.
func categoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if As(err, &ee) && ee.Category != "" {
		return ee.Category
	}
	return CategoryGeneric
}

// Reporter receives every built error. Implementations must be safe for
// concurrent use.
type Reporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu sync.RWMutex
	reporter   Reporter
)

// SetReporter installs the process-wide reporter. Passing nil disables reporting.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
}

func currentReporter() Reporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return reporter
}

// NewStd creates a plain error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if err is an EnhancedError with the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}
