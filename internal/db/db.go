// Package db records feedback submissions.
//
// The history lives in SQLite by default (~/.feedback/history.db) or in
// PostgreSQL when history.driver is "postgres". Tokens, feedback bodies and
// screenshots are never written.
package db

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/jira-feedback/internal/db/driver"
)

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFS embed.FS

// schemaHistory is the migration prefix for the submissions table.
const schemaHistory = "history"

// DB wraps a database connection with driver abstraction.
type DB struct {
	driver driver.Driver
	path   string
}

// Open opens a SQLite database at the given path.
// Creates the parent directory if it doesn't exist.
func Open(path string) (*DB, error) {
	return OpenWithDialect(path, driver.DialectSQLite)
}

// OpenInMemory opens an in-memory SQLite database with the schema applied.
// Each call creates a new isolated database.
func OpenInMemory() (*DB, error) {
	return OpenWithDialect(":memory:", driver.DialectSQLite)
}

// OpenWithDialect opens a database with a specific dialect and applies
// pending migrations.
func OpenWithDialect(dsn string, dialect driver.Dialect) (*DB, error) {
	if dialect == driver.DialectSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	drv, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}

	d := &DB{driver: drv, path: dsn}
	if err := d.Migrate(context.Background()); err != nil {
		_ = drv.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.driver.Close()
}

// Path returns the database DSN/path.
func (d *DB) Path() string {
	return d.path
}

// Dialect returns the database dialect.
func (d *DB) Dialect() driver.Dialect {
	return d.driver.Dialect()
}

// Migrate applies pending history migrations.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.driver.Migrate(ctx, schemaFS, schemaHistory); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	return nil
}

// placeholders returns "p1, p2, ..., pn" for the dialect.
func (d *DB) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.driver.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}
