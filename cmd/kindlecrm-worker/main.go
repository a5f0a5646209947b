package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kindlecrm/internal/amqp"
	"kindlecrm/internal/backend"
	"kindlecrm/internal/cli"
	"kindlecrm/internal/config"
	"kindlecrm/internal/log"
	"kindlecrm/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting kindlecrm-worker", "spreadsheet", cfg.HasSheets())

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	factory := backend.NewFactory(logger)

	drafts, err := factory.Drafts(cfg)
	if err != nil {
		logger.Error("Failed to open drafts", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer drafts.Close()

	archiver, err := factory.Archiver(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize archive sheet", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(drafts, archiver, nil, logger, cfg.SyncBatchSize)

	// Drafts saved while the worker was down
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeDraftSync(gctx, syncWorker.HandleSyncMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, relying on the periodic sweep")
	}

	// Periodic sweep for lost messages and failed archives
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := syncWorker.ProcessPendingDrafts(gctx); err != nil {
					logger.Error("Periodic sync failed", log.FieldError, err, log.FieldOperation, log.OpSync)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
