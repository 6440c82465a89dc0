package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"cashflow/internal/cli"
	apphttp "cashflow/internal/http"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, stop := cli.SignalContext()
	defer stop()

	store, err := cli.InitBackend(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize storage backend", err)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close storage backend", log.FieldError, err)
		}
	}()

	amqpClient, err := cli.InitAMQP(cfg, logger)
	if err != nil {
		// Publishing is best effort; serve without change events.
		logger.Error("AMQP unavailable, ledger changes will not be published", log.FieldError, err)
	}

	var publisher services.Publisher
	if amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	ledger := services.NewLedgerService(store.Backend, publisher)
	forecasts := services.NewForecastService(store.Backend, store.Backend)

	detector, err := cli.NewDetector(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to configure trusted proxies", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger, forecasts, store.Backend, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Detector:           detector,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting cashflow server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
