package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/plant-disease-api/internal/conf"
	"github.com/Brownie44l1/plant-disease-api/internal/handlers"
	"github.com/Brownie44l1/plant-disease-api/internal/httpcontroller"
	"github.com/Brownie44l1/plant-disease-api/internal/logger"
	"github.com/Brownie44l1/plant-disease-api/internal/upload"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(load settingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), settings)
		},
	}
}

// runServe serves until SIGINT or SIGTERM, then drains in-flight requests.
func runServe(ctx context.Context, settings *conf.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := bootstrap(settings, os.Stdout, true)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log.Module("main")

	store, err := upload.New(settings.UploadConfig(), a.log.Module("upload"))
	if err != nil {
		return err
	}
	defer store.Close()

	h := handlers.New(a.service, store, a.metrics, a.log.Module("handlers"))
	srv, err := httpcontroller.New(httpcontroller.Config{
		Address:   settings.Address(),
		BodyLimit: settings.Upload.MaxSize,
		CORS:      settings.Server.CORS,
		Metrics:   settings.Metrics.Enabled,
	}, h, a.metrics, a.log.Module("http"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info("Service ready",
		logger.String("address", settings.Address()),
		logger.String("upload_dir", store.Dir()),
		logger.Duration("upload_retention", settings.Upload.Retention),
		logger.Bool("metrics", settings.Metrics.Enabled))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", logger.Error(err))
		return err
	}
	return <-errCh
}
