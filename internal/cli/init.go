// Package cli provides common CLI initialization utilities shared by
// cmd/dentalstudio and cmd/receipt-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dentalstudio/internal/config"
	dirmemory "dentalstudio/internal/directory/memory"
	"dentalstudio/internal/log"
	"dentalstudio/internal/sheets"
	"dentalstudio/internal/sheets/google"
	sheetsmemory "dentalstudio/internal/sheets/memory"
	"dentalstudio/internal/storage"
)

// SetupLogger builds the process logger for component at the given
// LOG_LEVEL and installs it as the slog default.
func SetupLogger(component, level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	if lvl, ok := config.ParseLevel(level); ok {
		cfg.Level = lvl
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the repository and seeds the directory on first start.
// Returns the repository or exits the process on failure.
func InitSQLite(ctx context.Context, logger *log.Logger, dbPath, seedDir string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	if err := SeedDirectory(ctx, repo, seedDir); err != nil {
		logger.Error("Failed to seed doctor directory", log.FieldError, err, "seed_dir", seedDir)
		repo.Close()
		os.Exit(1)
	}
	return repo
}

// SeedDirectory imports seed_doctors.json and seed_specialties.json from seedDir (or
// the built-in defaults) when the stored directory is empty.
func SeedDirectory(ctx context.Context, repo *storage.SQLiteRepository, seedDir string) error {
	empty, err := repo.DirectoryEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}
	return repo.ImportDirectory(ctx, dirmemory.NewFromFiles(seedDir))
}

// NewExpenseWriter returns the commission export backend selected by
// EXPORT_BACKEND.
func NewExpenseWriter(ctx context.Context, cfg *config.Config) (sheets.CommissionExpenseWriter, error) {
	switch cfg.ExportBackend {
	case "sheets":
		client, err := google.New(ctx, google.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("google sheets: %w", err)
		}
		return client, nil
	case "memory", "":
		return sheetsmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown export backend %q", cfg.ExportBackend)
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
