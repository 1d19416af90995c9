// Package server wires the datastore, inference client and HTTP API together
// and runs the service until interrupted.
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	api "github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/api/v2"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/conf"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/datastore"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/inference"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/logging"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// InferenceConfig converts settings into an inference client configuration.
func InferenceConfig(settings *conf.Settings) inference.Config {
	return inference.Config{
		BaseURL:             settings.Inference.URL,
		Timeout:             time.Duration(settings.Inference.Timeout) * time.Second,
		ConfidenceThreshold: settings.Inference.ConfidenceThreshold,
		IoUThreshold:        settings.Inference.IoUThreshold,
		NDThreshold:         settings.Inference.NDThreshold,
		ModelVersion:        settings.Inference.ModelVersion,
		CacheTTL:            time.Duration(settings.Inference.CacheTTL) * time.Minute,
		RateLimit:           settings.Inference.RateLimit,
	}
}

// Run starts the inspection service and blocks until SIGINT or SIGTERM.
func Run(settings *conf.Settings) error {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)
	logger := logging.ForService("server")

	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("Failed to close datastore", "error", err)
		}
	}()

	client, err := inference.NewClient(InferenceConfig(settings))
	if err != nil {
		return fmt.Errorf("failed to create inference client: %w", err)
	}
	defer client.Close()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	client.SetMetrics(metrics.Inference)
	ds.SetMetrics(metrics.Datastore)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	controller, err := api.New(e, ds, settings, client, log.Default(), metrics)
	if err != nil {
		return fmt.Errorf("failed to create API controller: %w", err)
	}
	defer controller.Shutdown()

	// metrics endpoint lives outside the API group so it skips the
	// request logging middleware
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("Starting HTTP server", "addr", addr, "version", settings.Version)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server failed: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
