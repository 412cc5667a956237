// Package migrate owns the schema of the Postgres credential store: the client_credentials
// table holding the persisted bearer token slot.
package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// versionTable keeps the credential store's migration state apart from any other schema
// sharing the database.
const versionTable = "storefront_schema_migrations"

//go:embed sql/*.sql
var credentialMigrations embed.FS

// Apply creates or upgrades the credential store tables. An up-to-date schema is not an
// error.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	source, err := iofs.New(credentialMigrations, "sql")
	if err != nil {
		return fmt.Errorf("credential migrations: load embedded files: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("credential migrations: reach database: %w", err)
	}

	target, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: versionTable})
	if err != nil {
		return fmt.Errorf("credential migrations: prepare %s: %w", versionTable, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", target)
	if err != nil {
		return fmt.Errorf("credential migrations: %w", err)
	}
	defer m.Close()

	switch err := m.Up(); {
	case err == nil, errors.Is(err, migrate.ErrNoChange):
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("credential migrations: %w (a client_credentials migration is missing its .up.sql or .down.sql)", err)
	default:
		return fmt.Errorf("credential migrations: apply: %w", err)
	}
}
