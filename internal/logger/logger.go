// Package logger provides a module-scoped structured logger built on log/slog.
//
// Components receive a Logger through their constructors and derive their own
// scope with Module:
//
//	log := central.Module("upload")
//	log.Info("File saved", logger.String("path", p), logger.Int64("bytes", n))
//
// Output is JSON on stdout, optionally mirrored to a size-rotated file.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// Logger is the logging interface injected into components.
type Logger interface {
	// Module returns a logger scoped to a specific module
	Module(name string) Logger

	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to every record
	With(fields ...Field) Logger
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a 64-bit integer field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates an unsigned 64-bit integer field.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float32 creates a 32-bit float field, used mostly for confidence scores.
func Float32(key string, value float32) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a 64-bit float field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field. The key is always "error".
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a duration field rendered as a string ("1.5s", "200ms").
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Any creates a field holding an arbitrary value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(level))) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, "warning":
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	base   *slog.Logger
	module string
}

// NewSlogLogger creates a JSON logger writing to w at the given level.
// Timestamps are rendered in tz; a nil tz keeps local time.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(string(level)),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && tz != nil {
				a.Value = slog.TimeValue(a.Value.Time().In(tz))
			}
			return a
		},
	}
	return &slogLogger{base: slog.New(slog.NewJSONHandler(w, opts))}
}

// NewDiscard returns a logger that drops everything. Intended for tests.
func NewDiscard() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, time.UTC)
}

func (l *slogLogger) Module(name string) Logger {
	module := name
	if l.module != "" {
		module = l.module + "." + name
	}
	return &slogLogger{
		base:   l.base,
		module: module,
	}
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.log(slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.log(slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.log(slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields)
}

func (l *slogLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, fieldToAttr(f))
	}
	return &slogLogger{
		base:   l.base.With(args...),
		module: l.module,
	}
}

func (l *slogLogger) log(level slog.Level, msg string, fields []Field) {
	if !l.base.Enabled(context.Background(), level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields)+1)
	if l.module != "" {
		attrs = append(attrs, slog.String("module", l.module))
	}
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	l.base.LogAttrs(context.Background(), level, msg, attrs...)
}

func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case uint64:
		return slog.Uint64(f.Key, v)
	case float32:
		return slog.Float64(f.Key, float64(v))
	case float64:
		return slog.Float64(f.Key, v)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Duration:
		return slog.Duration(f.Key, v)
	default:
		return slog.Any(f.Key, v)
	}
}
