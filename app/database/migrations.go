package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// SchemaMigrationsTable keeps migration state apart from any other tooling
// sharing the Supabase database.
const SchemaMigrationsTable = "eurosari_schema_migrations"

//go:embed migrations/*.sql
var schemaFS embed.FS

// schemaSource reads the embedded posts schema.
func schemaSource() (source.Driver, error) {
	src, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded schema: %w", err)
	}
	return src, nil
}

// RunMigrations brings the posts schema up to date and reports the applied
// version.
func RunMigrations(db *DB) (uint, bool, error) {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{MigrationsTable: SchemaMigrationsTable})
	if err != nil {
		return 0, false, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	src, err := schemaSource()
	if err != nil {
		return 0, false, err
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("failed to migrate posts schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get schema version: %w", err)
	}

	return version, dirty, nil
}
