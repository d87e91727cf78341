package main

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Brownie44l1/plant-disease-api/internal/advisory"
	"github.com/Brownie44l1/plant-disease-api/internal/catalog"
	"github.com/Brownie44l1/plant-disease-api/internal/conf"
	"github.com/Brownie44l1/plant-disease-api/internal/diagnosis"
	"github.com/Brownie44l1/plant-disease-api/internal/logger"
	"github.com/Brownie44l1/plant-disease-api/internal/model"
	"github.com/Brownie44l1/plant-disease-api/internal/observability/metrics"
	"github.com/Brownie44l1/plant-disease-api/internal/telemetry"
)

// app holds the process-wide parts built at startup.
type app struct {
	settings   *conf.Settings
	log        *logger.CentralLogger
	classifier model.Classifier
	service    *diagnosis.Service
	metrics    *metrics.Metrics
	flush      func()
}

// bootstrap loads the catalog and the model and builds the diagnosis service.
// Any error here means the process must not serve. Console logs go to console.
func bootstrap(settings *conf.Settings, console io.Writer, withMetrics bool) (*app, error) {
	logCfg := settings.LoggerConfig()
	logCfg.Console = console
	central, err := logger.NewCentralLogger(logCfg)
	if err != nil {
		return nil, err
	}
	a := &app{settings: settings, log: central, flush: func() {}}
	log := central.Module("main")

	flush, err := telemetry.Init(settings.Telemetry.SentryDSN, version)
	if err != nil {
		// Telemetry is optional.
		log.Warn("Sentry initialization failed", logger.Error(err))
	} else {
		a.flush = flush
	}

	cat, err := catalog.Load(settings.Model.ClassIndices)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("Class catalog loaded",
		logger.String("path", settings.Model.ClassIndices),
		logger.Int("classes", cat.Len()))

	modelCfg, err := settings.ModelConfig(cat.Len())
	if err != nil {
		a.Close()
		return nil, err
	}
	clf, err := model.Open(modelCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.classifier = clf
	backend, _ := model.ResolveBackend(modelCfg)
	log.Info("Model loaded",
		logger.String("path", modelCfg.Path),
		logger.String("backend", backend),
		logger.Any("input_shape", modelCfg.InputShape))

	if withMetrics && settings.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := metrics.New(registry)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.metrics = m
	}

	opts, err := settings.ImageOptions()
	if err != nil {
		a.Close()
		return nil, err
	}
	svc, err := diagnosis.New(clf, cat, advisory.Default(), opts, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = svc

	for _, label := range cat.Labels() {
		if !advisory.Default().Has(label) {
			log.Debug("No advisory for class, default advice will be shown", logger.String("label", label))
		}
	}
	return a, nil
}

// Close releases the model, flushes telemetry and closes the log file.
func (a *app) Close() {
	log := a.log.Module("main")
	if a.classifier != nil {
		if err := a.classifier.Close(); err != nil {
			log.Warn("Failed to release model", logger.Error(err))
		}
	}
	a.flush()
	_ = a.log.Close()
}
