// Package conf loads service settings from defaults, an optional config.yaml,
// PLANTDOC_* environment variables and command line flags.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/imageproc"
	"github.com/Brownie44l1/plant-disease-api/internal/logger"
	"github.com/Brownie44l1/plant-disease-api/internal/model"
	"github.com/Brownie44l1/plant-disease-api/internal/upload"
)

// EnvPrefix is prepended to every environment override, e.g. PLANTDOC_SERVER_PORT.
const EnvPrefix = "PLANTDOC"

// AppName is used for the per-user config directory.
const AppName = "plant-disease-api"

// Settings is the complete service configuration.
type Settings struct {
	Debug bool

	Server struct {
		Host string
		Port int
		CORS bool // allow cross-origin GET/POST
	}

	Model struct {
		Path              string // .onnx or .tflite artifact
		ClassIndices      string // JSON label -> index map
		Backend           string
		ImageSize         int
		Layout            string // nhwc or nchw
		Interpolation     string
		InputName         string
		OutputName        string
		Threads           int
		SharedLibraryPath string // onnxruntime shared library
	}

	Upload struct {
		Dir          string
		MaxSize      string // request body limit, e.g. 10M
		Retention    time.Duration
		MinFreeBytes int64
	}

	Log struct {
		Level    string
		Timezone string
		File     struct {
			Enabled    bool
			Path       string
			MaxSize    int
			MaxBackups int
			MaxAge     int
		}
	}

	Metrics struct {
		Enabled bool
	}

	Telemetry struct {
		SentryDSN string
	}
}

// New returns a viper instance with defaults and environment overrides set up.
// Flags may be bound to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaultConfig(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultConfigPaths returns the directories searched for config.yaml.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	return paths
}

// Load reads configFile, or config.yaml from the default paths when configFile
// is empty, and returns validated settings. A missing default config file is
// not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(fmt.Errorf("error reading config file: %w", err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("file", configFile).
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Address returns the listen address.
func (s *Settings) Address() string {
	return fmt.Sprintf("%s:%d", s.Server.Host, s.Server.Port)
}

// MaxUploadBytes returns Upload.MaxSize in bytes.
func (s *Settings) MaxUploadBytes() (int64, error) {
	return bytes.Parse(s.Upload.MaxSize)
}

// ImageOptions returns the preprocessing options.
func (s *Settings) ImageOptions() (imageproc.Options, error) {
	layout, err := imageproc.ParseLayout(s.Model.Layout)
	if err != nil {
		return imageproc.Options{}, err
	}
	interp, err := imageproc.ParseInterpolation(s.Model.Interpolation)
	if err != nil {
		return imageproc.Options{}, err
	}
	return imageproc.Options{
		Size:          s.Model.ImageSize,
		Layout:        layout,
		Interpolation: interp,
	}, nil
}

// ModelConfig returns the classifier configuration for a catalog of numClasses labels.
func (s *Settings) ModelConfig(numClasses int) (model.Config, error) {
	opts, err := s.ImageOptions()
	if err != nil {
		return model.Config{}, err
	}
	size := int64(opts.Size)
	shape := []int64{1, size, size, 3}
	if opts.Layout == imageproc.LayoutNCHW {
		shape = []int64{1, 3, size, size}
	}
	return model.Config{
		Path:              s.Model.Path,
		Backend:           s.Model.Backend,
		NumClasses:        numClasses,
		InputShape:        shape,
		InputName:         s.Model.InputName,
		OutputName:        s.Model.OutputName,
		SharedLibraryPath: s.Model.SharedLibraryPath,
		Threads:           s.Model.Threads,
	}, nil
}

// UploadConfig returns the upload store configuration.
func (s *Settings) UploadConfig() upload.Config {
	minFree := s.Upload.MinFreeBytes
	if minFree < 0 {
		minFree = 0
	}
	return upload.Config{
		Dir:          s.Upload.Dir,
		Retention:    s.Upload.Retention,
		MinFreeBytes: uint64(minFree),
	}
}

// LoggerConfig returns the central logger configuration. Debug forces the
// debug level.
func (s *Settings) LoggerConfig() *logger.Config {
	level := s.Log.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}
	return &logger.Config{
		Level:    level,
		Timezone: s.Log.Timezone,
		File: logger.FileOutput{
			Enabled:    s.Log.File.Enabled,
			Path:       s.Log.File.Path,
			MaxSize:    s.Log.File.MaxSize,
			MaxBackups: s.Log.File.MaxBackups,
			MaxAge:     s.Log.File.MaxAge,
		},
	}
}
