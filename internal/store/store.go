package store

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the registry's backing database: admin users, API keys, and the
// tool catalog. SQLite is the default; a PostgreSQL DSN may be supplied for
// multi-instance deployments.
type Store struct {
	db      *sqlx.DB
	dialect string
}

// Options configures how the store is opened.
type Options struct {
	// Driver selects the backing database: "sqlite" (default) or "postgres".
	Driver string
	// DSN is the PostgreSQL connection string. Ignored for SQLite.
	DSN string
	// DataDir is the directory holding the SQLite file. Empty means in-memory.
	DataDir string
}

// Open creates the store and runs schema migrations. Pass a zero Options for
// an in-memory SQLite store (used by tests and `serve --dev`).
func Open(opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = "sqlite"
	}

	var db *sqlx.DB
	var err error

	switch driver {
	case "sqlite":
		var dsn string
		if opts.DataDir == "" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(opts.DataDir, "gantry.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sqlx.Connect("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	case "postgres":
		db, err = sqlx.Connect("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	s := &Store{db: db, dialect: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind translates ? placeholders into the dialect's bindvar style.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}
