// Command recalc-worker consumes queued IRR recalculation requests and runs
// them against the back-office API.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"backoffice/internal/adapters"
	"backoffice/internal/amqp"
	"backoffice/internal/cache"
	"backoffice/internal/cli"
	"backoffice/internal/log"
	"backoffice/internal/worker"
)

func main() {
	_ = cli.LoadEnvFile("")
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, os.Stdout)

	logger.Info("Starting recalc-worker", "queue", cfg.AMQPQueue)

	client, err := adapters.NewMutationClient(cfg)
	if err != nil {
		logger.Error("Failed to initialize back-office client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	recalcWorker := worker.NewRecalcWorker(client, logger)
	caches := cache.NewManager()
	caches.Register(recalcWorker.Cache())
	caches.StartCleanup(5 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		caches.Stop()
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
	})

	if err := amqpClient.ConsumeRecalcRequests(ctx, recalcWorker.HandleRecalcMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
