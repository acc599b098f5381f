package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "DATETIME"
	if s.dialect == "postgres" {
		serial = "BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}

	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			last_login_at %s,
			created_at %s NOT NULL
		)`, serial, ts, ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS api_keys (
			id %s,
			name TEXT UNIQUE NOT NULL,
			key_hash TEXT UNIQUE NOT NULL,
			key_prefix TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			can_create BOOLEAN NOT NULL DEFAULT TRUE,
			can_read BOOLEAN NOT NULL DEFAULT TRUE,
			can_update BOOLEAN NOT NULL DEFAULT TRUE,
			can_delete BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at %s,
			last_used %s,
			created_at %s NOT NULL
		)`, serial, ts, ts, ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tools (
			id %s,
			name TEXT UNIQUE NOT NULL,
			version TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			schema_json TEXT NOT NULL,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, serial, ts, ts),

		`CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(key_prefix)`,
		`CREATE INDEX IF NOT EXISTS idx_tools_name ON tools(name)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// ALTER TABLE ADD COLUMN fails when the column already exists;
			// treat duplicates as a no-op so migrations stay idempotent.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
