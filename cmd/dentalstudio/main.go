package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"dentalstudio/internal/amqp"
	"dentalstudio/internal/cli"
	apphttp "dentalstudio/internal/http"
	"dentalstudio/internal/log"
	"dentalstudio/internal/middleware/ratelimit"
	"dentalstudio/internal/pdf/gofpdf"
	"dentalstudio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(context.Background(), logger, cfg.SQLiteDBPath, cfg.DirectorySeedDir)
	defer repo.Close()

	// Without a broker payments are still stored; the worker's pending
	// sweep generates their receipts.
	var publisher services.PaymentPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, payment events disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewQuotationService(repo, repo, publisher,
		services.WithLogger(logger.WithComponent(log.ComponentQuotation)))

	srv := apphttp.NewServer(":"+cfg.Port, svc, gofpdf.New(cfg.BusinessName), apphttp.Options{
		Logger:    logger,
		RateLimit: ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		Ready:     repo.Ping,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting dentalstudio API", "port", cfg.Port, "export_backend", cfg.ExportBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
