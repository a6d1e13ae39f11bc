package sqlite3

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryDSN returns the dsn of a private in-memory database shared by all connections of one *sql.DB.
func MemoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared"
}

func NewDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql db: %w", err)
	}

	// sqlite has a single writer
	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping sql db: %w", err)
	}

	return db, nil
}

// Open connects to dsn and brings the schema up to date.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := NewDB(ctx, dsn)
	if err != nil {
		return nil, err
	}

	err = MigrateUp(ctx, db)
	if err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			slog.ErrorContext(ctx, "failed to close database", "error", closeErr)
		}

		return nil, err
	}

	return db, nil
}

func getMigrateInstance(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, nil
}

func MigrateUp(ctx context.Context, db *sql.DB) error {
	m, err := getMigrateInstance(db)
	if err != nil {
		return fmt.Errorf("failed to get migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migration: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get current active migration version: %w", err)
	}

	slog.InfoContext(ctx, "migration applied successfully", "version", version, "dirty", dirty)

	return nil
}

func MigrateDown(db *sql.DB) error {
	m, err := getMigrateInstance(db)
	if err != nil {
		return fmt.Errorf("failed to get migrate instance: %w", err)
	}

	err = m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migration down: %w", err)
	}

	return nil
}
