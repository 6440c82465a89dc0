package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"cashflow/internal/cli"
	"cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting forecast-worker", "schedule", cfg.SnapshotSchedule, "cadence", cfg.SnapshotCadence)

	ctx, stop := cli.SignalContext()
	defer stop()

	store, err := cli.InitBackend(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize storage backend", err)
	}
	defer store.Cleanup()

	forecasts := services.NewForecastService(store.Backend, store.Backend)
	processor, err := services.NewSnapshotProcessor(forecasts, store.Backend, services.Cadence(cfg.SnapshotCadence))
	if err != nil {
		cli.Fatal(logger, "Failed to create snapshot processor", err)
	}
	snapshotWorker, err := worker.NewSnapshotWorker(processor, cfg.SnapshotSchedule)
	if err != nil {
		cli.Fatal(logger, "Failed to create snapshot worker", err)
	}

	amqpClient, err := cli.InitAMQP(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	var wg sync.WaitGroup
	if amqpClient != nil {
		defer amqpClient.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := amqpClient.ConsumeLedgerChanges(ctx, snapshotWorker.HandleLedgerChange)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				stop()
			}
		}()
	} else {
		logger.Info("Skipping ledger change consumption - no AMQP client available")
	}

	if err := snapshotWorker.Run(ctx); err != nil {
		logger.Error("Snapshot worker failed", log.FieldError, err)
	}
	wg.Wait()
	logger.Info("Forecast worker stopped")
}
