package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AdleyRodrigues/financing-simulator/internal/amqp"
	"github.com/AdleyRodrigues/financing-simulator/internal/cli"
	"github.com/AdleyRodrigues/financing-simulator/internal/remote"
	"github.com/AdleyRodrigues/financing-simulator/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting divida-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mirror worker")
		os.Exit(1)
	}

	plan := cli.LoadPlan(logger, cfg.PlanFile)

	journal := cli.InitJournal(logger, cfg.SQLiteDBPath)
	defer journal.Close()

	gateway := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteTimeout)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(journal, gateway, plan, cfg.MirrorBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Drain anything left over from previous runs before consuming.
	logger.Info("Performing startup mirror sweep")
	mirrorWorker.StartupSweep(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeMirror(ctx, mirrorWorker.HandleMirrorMessage)
	})

	// Periodic sweep catches payments whose retry message was lost.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.MirrorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if n, err := mirrorWorker.ProcessPendingPayments(ctx); err != nil {
					logger.Warn("Periodic mirror sweep failed", "mirrored", n, "error", err)
				} else if n > 0 {
					logger.Info("Periodic mirror sweep finished", "mirrored", n)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
