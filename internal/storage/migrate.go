package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Embedded schema:
//
//	000001 quotations, service lines, allocations, payments, cash movements
//	000002 doctor directory (specialties, catalog services, doctors)
//	000003 commission expenses and their sheet sync status
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// LatestSchemaVersion is the version of the newest embedded migration.
const LatestSchemaVersion uint = 3

// RunMigrations brings the quotation schema at dsn up to
// LatestSchemaVersion and returns the version now applied. A database left
// dirty by an interrupted migration is reported rather than migrated.
func RunMigrations(dsn string) (uint, error) {
	migrateDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if version, dirty, err := m.Version(); err == nil && dirty {
		return version, fmt.Errorf("schema version %d is dirty, fix it by hand before starting", version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
