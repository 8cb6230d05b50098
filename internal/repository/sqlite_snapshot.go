package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexanderramin/togglguard/internal/db"
	"github.com/alexanderramin/togglguard/internal/domain"
)

// SQLiteSnapshotRepo implements SnapshotRepo using a SQLite database.
type SQLiteSnapshotRepo struct {
	db db.DBTX
}

// NewSQLiteSnapshotRepo creates a new SQLiteSnapshotRepo.
func NewSQLiteSnapshotRepo(conn db.DBTX) *SQLiteSnapshotRepo {
	return &SQLiteSnapshotRepo{db: conn}
}

func (r *SQLiteSnapshotRepo) Upsert(ctx context.Context, s *domain.Snapshot) error {
	query := `INSERT INTO cache_snapshots (cache_key, payload, created_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		s.Key,
		string(s.Payload),
		db.FormatTime(s.CreatedAt),
		db.FormatTime(s.ExpiresAt),
		db.FormatTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting snapshot %q: %w", s.Key, err)
	}
	return nil
}

func (r *SQLiteSnapshotRepo) GetLatest(ctx context.Context, key string) (*domain.Snapshot, error) {
	query := `SELECT cache_key, payload, created_at, expires_at
		FROM cache_snapshots WHERE cache_key = ?
		ORDER BY updated_at DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, key)

	var s domain.Snapshot
	var payload, createdAtStr, expiresAtStr string
	if err := row.Scan(&s.Key, &payload, &createdAtStr, &expiresAtStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}

	var err error
	if s.CreatedAt, err = db.ParseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.ExpiresAt, err = db.ParseTime(expiresAtStr); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if !json.Valid([]byte(payload)) {
		return nil, fmt.Errorf("snapshot %q: payload is not valid JSON", key)
	}
	s.Payload = json.RawMessage(payload)
	return &s, nil
}
