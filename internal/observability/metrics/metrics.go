// Package metrics provides Prometheus collectors for the prediction pipeline and HTTP layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector registered by the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	predictionsTotal  *prometheus.CounterVec
	labelsTotal       *prometheus.CounterVec
	inferenceDuration prometheus.Histogram
	inferenceErrors   prometheus.Counter
	uploadBytes       prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		predictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantdoc_predictions_total",
				Help: "Prediction requests by outcome",
			},
			[]string{"outcome"}, // success, no_file, invalid_image, insufficient_storage, error
		),
		labelsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantdoc_predicted_labels_total",
				Help: "Predicted class labels and whether advice was available",
			},
			[]string{"label", "known"},
		),
		inferenceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plantdoc_inference_duration_seconds",
				Help:    "Time spent in model inference",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		inferenceErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plantdoc_inference_errors_total",
				Help: "Failed inference calls",
			},
		),
		uploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plantdoc_upload_bytes",
				Help:    "Size of uploaded images",
				Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantdoc_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plantdoc_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	for _, c := range m.collectors() {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.predictionsTotal,
		m.labelsTotal,
		m.inferenceDuration,
		m.inferenceErrors,
		m.uploadBytes,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordPrediction counts a /predict outcome.
func (m *Metrics) RecordPrediction(outcome string) {
	if m == nil {
		return
	}
	m.predictionsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpload observes the size of a stored upload.
func (m *Metrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Observe(float64(bytes))
}

// ObserveInference records inference latency and failures.
func (m *Metrics) ObserveInference(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.inferenceDuration.Observe(d.Seconds())
	if err != nil {
		m.inferenceErrors.Inc()
	}
}

// ObserveLabel counts a predicted label.
func (m *Metrics) ObserveLabel(label string, known bool) {
	if m == nil {
		return
	}
	m.labelsTotal.WithLabelValues(label, strconv.FormatBool(known)).Inc()
}

// RecordHTTPRequest records one handled HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
