// Package diagnosis ties preprocessing, inference and the advisory lookup together.
//
// A Service is built once at startup and shared by all requests. Nothing in it
// changes after New returns.
package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/Brownie44l1/plant-disease-api/internal/advisory"
	"github.com/Brownie44l1/plant-disease-api/internal/catalog"
	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/imageproc"
	"github.com/Brownie44l1/plant-disease-api/internal/model"
)

// Result is the outcome of one diagnosis.
type Result struct {
	PredictedIndex int             `json:"predicted_index"`
	PredictedLabel string          `json:"predicted_label"`
	Confidence     float32         `json:"confidence"`
	Known          bool            `json:"known"`
	Advisory       advisory.Record `json:"advisory"`

	// Predictions maps every catalog label to its score.
	Predictions map[string]float32 `json:"predictions"`
}

// Observer receives per-diagnosis measurements. A nil Observer is allowed.
type Observer interface {
	ObserveInference(d time.Duration, err error)
	ObserveLabel(label string, known bool)
}

// Service is the immutable request-handling context.
type Service struct {
	classifier model.Classifier
	catalog    *catalog.Catalog
	advisories *advisory.Table
	opts       imageproc.Options
	observer   Observer
}

// New validates the parts and returns a Service.
func New(clf model.Classifier, cat *catalog.Catalog, table *advisory.Table, opts imageproc.Options, obs Observer) (*Service, error) {
	if clf == nil || cat == nil || table == nil {
		return nil, errors.Newf("diagnosis service needs a classifier, catalog and advisory table").
			Component("diagnosis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if clf.NumClasses() != cat.Len() {
		return nil, errors.Newf("model has %d classes, catalog has %d", clf.NumClasses(), cat.Len()).
			Component("diagnosis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Service{
		classifier: clf,
		catalog:    cat,
		advisories: table,
		opts:       opts,
		observer:   obs,
	}, nil
}

// Diagnose classifies the image stored at path.
func (s *Service) Diagnose(ctx context.Context, path string) (*Result, error) {
	tensor, err := imageproc.Preprocess(path, s.opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	scores, err := s.classifier.Predict(ctx, tensor)
	if s.observer != nil {
		s.observer.ObserveInference(time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	return s.resolve(scores)
}

func (s *Service) resolve(scores []float32) (*Result, error) {
	idx, confidence := model.Argmax(scores)
	label, ok := s.catalog.Label(idx)
	if !ok {
		return nil, errors.New(fmt.Errorf("predicted index %d outside catalog of %d classes", idx, s.catalog.Len())).
			Component("diagnosis").
			Category(errors.CategoryProcessing).
			Context("scores", len(scores)).
			Build()
	}

	known := s.advisories.Has(label)
	if s.observer != nil {
		s.observer.ObserveLabel(label, known)
	}

	predictions := make(map[string]float32, s.catalog.Len())
	for i, score := range scores {
		if l, ok := s.catalog.Label(i); ok {
			predictions[l] = score
		}
	}

	return &Result{
		PredictedIndex: idx,
		PredictedLabel: label,
		Confidence:     confidence,
		Known:          known,
		Advisory:       s.advisories.Lookup(label),
		Predictions:    predictions,
	}, nil
}

// Catalog returns the class catalog in use.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}
