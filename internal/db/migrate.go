package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Every statement is safe to re-run.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// One row per cache key; writes replace the row wholesale.
	`CREATE TABLE IF NOT EXISTS cache_snapshots (
		cache_key  TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS idempotency_records (
		scope      TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		token      TEXT NOT NULL,
		status     INTEGER NOT NULL,
		body       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		PRIMARY KEY (scope, subject_id, token)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_records(expires_at)`,

	`CREATE TABLE IF NOT EXISTS time_entries (
		id           TEXT PRIMARY KEY,
		member       TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		project      TEXT NOT NULL DEFAULT '',
		start_at     TEXT NOT NULL,
		stop_at      TEXT,
		duration_sec INTEGER NOT NULL DEFAULT 0,
		stat_date    TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_time_entries_member ON time_entries(member)`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_stat_date ON time_entries(stat_date)`,

	// At most one open entry per member.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_running
		ON time_entries(member) WHERE stop_at IS NULL`,
}
