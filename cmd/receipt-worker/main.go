package main

import (
	"os"
	"time"

	"dentalstudio/internal/amqp"
	"dentalstudio/internal/cli"
	"dentalstudio/internal/log"
	"dentalstudio/internal/pdf/gofpdf"
	"dentalstudio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting receipt-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	repo := cli.InitSQLite(ctx, logger, cfg.SQLiteDBPath, cfg.DirectorySeedDir)
	defer repo.Close()

	writer, err := cli.NewExpenseWriter(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize commission export", log.FieldError, err, "backend", cfg.ExportBackend)
		os.Exit(1)
	}
	logger.Info("Commission export initialized", "backend", cfg.ExportBackend)

	// With no broker the worker still runs the scheduled sweep.
	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		consumer = amqpClient
	} else {
		logger.Info("AMQP disabled, running scheduled sweeps only")
	}

	w := worker.NewReceiptWorker(repo, repo, gofpdf.New(cfg.BusinessName), writer, cfg.ReceiptsDir, cfg.SyncBatchSize)
	if err := w.Run(ctx, consumer, cfg.SyncSchedule); err != nil {
		logger.Error("Receipt worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
