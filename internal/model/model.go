// Package model wraps the pretrained classifier behind a backend-neutral interface.
package model

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/imageproc"
)

// Backend names.
const (
	BackendONNX   = "onnx"
	BackendTFLite = "tflite"
)

// Classifier produces one score per class for a preprocessed image.
type Classifier interface {
	Predict(ctx context.Context, t *imageproc.Tensor) ([]float32, error)
	NumClasses() int
	Close() error
}

// Config describes the model artifact and the tensors it exchanges.
type Config struct {
	Path       string
	Backend    string // empty selects by file extension
	NumClasses int
	InputShape []int64

	// ONNX only; empty names are discovered from the model file.
	InputName         string
	OutputName        string
	SharedLibraryPath string

	Threads int // 0 keeps the runtime default
}

// ResolveBackend returns the backend for cfg, looking at the file extension
// when none is set.
func ResolveBackend(cfg Config) (string, error) {
	if cfg.Backend != "" {
		switch b := strings.ToLower(cfg.Backend); b {
		case BackendONNX, BackendTFLite:
			return b, nil
		default:
			return "", fmt.Errorf("unknown model backend %q", cfg.Backend)
		}
	}
	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".onnx":
		return BackendONNX, nil
	case ".tflite":
		return BackendTFLite, nil
	default:
		return "", fmt.Errorf("cannot infer model backend from %q, set model.backend", cfg.Path)
	}
}

// Open loads the model once. Any failure here must stop the process from serving.
func Open(cfg Config) (Classifier, error) {
	backend, err := ResolveBackend(cfg)
	if err != nil {
		return nil, errors.New(err).
			Component("model").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.NumClasses <= 0 {
		return nil, errors.Newf("model needs a positive class count, got %d", cfg.NumClasses).
			Component("model").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if len(cfg.InputShape) == 0 {
		return nil, errors.Newf("model input shape is not set").
			Component("model").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, errors.New(fmt.Errorf("model artifact not found: %w", err)).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("path", cfg.Path).
			Build()
	}

	if backend == BackendTFLite {
		clf, err := newTFLite(cfg)
		if err != nil {
			return nil, err
		}
		return clf, nil
	}
	clf, err := newONNX(cfg)
	if err != nil {
		return nil, err
	}
	return clf, nil
}

// Argmax returns the index and value of the highest score. On exact ties the
// lowest index wins. NaN scores are skipped. An empty or all-NaN slice yields -1.
func Argmax(scores []float32) (int, float32) {
	best := -1
	var bestVal float32
	for i, v := range scores {
		if math.IsNaN(float64(v)) {
			continue
		}
		if best == -1 || v > bestVal {
			best = i
			bestVal = v
		}
	}
	return best, bestVal
}

func closedError() error {
	return errors.Newf("classifier is closed").
		Component("model").
		Category(errors.CategoryInference).
		Build()
}

// shapeCompatible reports whether a model declaring shape declared accepts a
// tensor of shape want. Non-positive declared dimensions are dynamic.
func shapeCompatible(declared, want []int64) bool {
	if len(declared) != len(want) {
		return false
	}
	for i, d := range declared {
		if d > 0 && d != want[i] {
			return false
		}
	}
	return true
}

func shapeLen(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

func checkInput(t *imageproc.Tensor, want int) error {
	if t == nil {
		return errors.Newf("nil input tensor").
			Component("model").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(t.Data) != want {
		return errors.Newf("input size mismatch: expected %d values, got %d", want, len(t.Data)).
			Component("model").
			Category(errors.CategoryValidation).
			Context("shape", fmt.Sprint(t.Shape)).
			Build()
	}
	return nil
}
