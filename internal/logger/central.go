package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOutput configures the optional rotated log file.
type FileOutput struct {
	Enabled    bool
	Path       string
	MaxSize    int // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
}

// Config controls the central logger.
type Config struct {
	Level    string
	Timezone string
	File     FileOutput
	Console  io.Writer // defaults to os.Stdout
}

// CentralLogger owns the output writers and hands out module loggers.
type CentralLogger struct {
	Logger
	file *lumberjack.Logger
}

// NewCentralLogger builds the process logger. Console output always goes to
// cfg.Console; file output is added when enabled.
func NewCentralLogger(cfg *Config) (*CentralLogger, error) {
	if cfg == nil {
		cfg = &Config{Level: string(LogLevelInfo)}
	}

	tz := time.Local
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid log timezone %q: %w", cfg.Timezone, err)
		}
		tz = loc
	}

	cl := &CentralLogger{}
	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	w := console

	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("log file output enabled without a path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cl.file = &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
		}
		w = io.MultiWriter(console, cl.file)
	}

	cl.Logger = NewSlogLogger(w, LogLevel(cfg.Level), tz)
	return cl, nil
}

// Rotate forces a rotation of the log file, if one is configured.
func (cl *CentralLogger) Rotate() error {
	if cl.file == nil {
		return nil
	}
	return cl.file.Rotate()
}

// Close releases the log file.
func (cl *CentralLogger) Close() error {
	if cl.file == nil {
		return nil
	}
	return cl.file.Close()
}
