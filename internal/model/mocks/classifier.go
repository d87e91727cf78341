// Package mocks provides testify mocks for the model package.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Brownie44l1/plant-disease-api/internal/imageproc"
)

// Classifier is a mock model.Classifier.
type Classifier struct {
	mock.Mock
	Classes int
}

// NewClassifier returns a mock reporting n classes.
func NewClassifier(n int) *Classifier {
	return &Classifier{Classes: n}
}

// Predict returns the scores and error registered with On("Predict", ...).
func (m *Classifier) Predict(ctx context.Context, t *imageproc.Tensor) ([]float32, error) {
	args := m.Called(ctx, t)
	var scores []float32
	if v := args.Get(0); v != nil {
		scores = v.([]float32)
	}
	return scores, args.Error(1)
}

// NumClasses returns Classes.
func (m *Classifier) NumClasses() int {
	return m.Classes
}

// Close is a no-op.
func (m *Classifier) Close() error {
	return nil
}
