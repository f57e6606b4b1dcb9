package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"
)

// Supported database backends
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
	DriverMemory = "memory"
)

// Options selects the backing database
type Options struct {
	Driver string
	Path   string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS completions (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL,
		completed_at BIGINT NOT NULL
	)`,
}

// openDB opens the configured database and makes sure the schema exists
func openDB(opts Options) (*sql.DB, error) {
	driverName, dsn, err := resolveDSN(opts)
	if err != nil {
		return nil, err
	}

	if dsn != "" && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driverName, err)
	}

	// Both engines behave best with a single connection, and an in-memory
	// SQLite database only exists on the connection that created it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driverName, err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return db, nil
}

func resolveDSN(opts Options) (string, string, error) {
	switch opts.Driver {
	case DriverMemory:
		return "sqlite", ":memory:", nil
	case DriverDuckDB:
		return "duckdb", opts.Path, nil
	case DriverSQLite, "":
		if opts.Path == "" {
			return "", "", fmt.Errorf("sqlite storage requires a path")
		}
		return "sqlite", opts.Path, nil
	default:
		return "", "", fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
