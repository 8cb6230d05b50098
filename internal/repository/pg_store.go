package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alexanderramin/togglguard/internal/domain"
)

// PGConn is the subset of *pgxpool.Pool the Postgres repositories use.
type PGConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var pgMigrations = []string{
	`CREATE TABLE IF NOT EXISTS cache_snapshots (
		cache_key  TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_records (
		scope      TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		token      TEXT NOT NULL,
		status     INTEGER NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (scope, subject_id, token)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_records(expires_at)`,
}

// MigratePG creates the shared snapshot and idempotency tables.
func MigratePG(ctx context.Context, conn PGConn) error {
	for i, stmt := range pgMigrations {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migration %d: %w", i, classifyPGError(err))
		}
	}
	return nil
}

// classifyPGError marks connection-level failures with ErrStoreUnavailable.
func classifyPGError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgerrcode.IsConnectionException(pgErr.Code) ||
			pgErr.Code == pgerrcode.AdminShutdown ||
			pgErr.Code == pgerrcode.CannotConnectNow ||
			pgErr.Code == pgerrcode.TooManyConnections {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return err
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// PGSnapshotRepo implements SnapshotRepo on Postgres so that every instance
// shares one durable tier.
type PGSnapshotRepo struct {
	conn PGConn
}

// NewPGSnapshotRepo creates a new PGSnapshotRepo.
func NewPGSnapshotRepo(conn PGConn) *PGSnapshotRepo {
	return &PGSnapshotRepo{conn: conn}
}

func (r *PGSnapshotRepo) Upsert(ctx context.Context, s *domain.Snapshot) error {
	query := `INSERT INTO cache_snapshots (cache_key, payload, created_at, expires_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4, $3)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.conn.Exec(ctx, query, s.Key, string(s.Payload), s.CreatedAt.UTC(), s.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("upserting snapshot %q: %w", s.Key, classifyPGError(err))
	}
	return nil
}

func (r *PGSnapshotRepo) GetLatest(ctx context.Context, key string) (*domain.Snapshot, error) {
	query := `SELECT cache_key, payload::text, created_at, expires_at
		FROM cache_snapshots WHERE cache_key = $1
		ORDER BY updated_at DESC LIMIT 1`
	var s domain.Snapshot
	var payload string
	err := r.conn.QueryRow(ctx, query, key).Scan(&s.Key, &payload, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("snapshot %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("reading snapshot %q: %w", key, classifyPGError(err))
	}
	s.Payload = json.RawMessage(payload)
	return &s, nil
}

// PGIdempotencyRepo implements IdempotencyRepo on Postgres.
type PGIdempotencyRepo struct {
	conn PGConn
}

// NewPGIdempotencyRepo creates a new PGIdempotencyRepo.
func NewPGIdempotencyRepo(conn PGConn) *PGIdempotencyRepo {
	return &PGIdempotencyRepo{conn: conn}
}

func (r *PGIdempotencyRepo) Get(ctx context.Context, scope, subjectID, token string) (*domain.IdempotencyRecord, error) {
	query := `SELECT scope, subject_id, token, status, body, created_at, expires_at
		FROM idempotency_records WHERE scope = $1 AND subject_id = $2 AND token = $3`
	var rec domain.IdempotencyRecord
	var body string
	err := r.conn.QueryRow(ctx, query, scope, subjectID, token).Scan(
		&rec.Scope, &rec.SubjectID, &rec.Token, &rec.Status, &body, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("idempotency record: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("reading idempotency record: %w", classifyPGError(err))
	}
	rec.Body = json.RawMessage(body)
	return &rec, nil
}

func (r *PGIdempotencyRepo) Insert(ctx context.Context, rec *domain.IdempotencyRecord, now time.Time) (bool, error) {
	query := `INSERT INTO idempotency_records (scope, subject_id, token, status, body, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scope, subject_id, token) DO UPDATE SET
			status = EXCLUDED.status,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_records.expires_at <= $8`
	tag, err := r.conn.Exec(ctx, query,
		rec.Scope, rec.SubjectID, rec.Token, rec.Status, string(rec.Body),
		rec.CreatedAt.UTC(), rec.ExpiresAt.UTC(), now.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting idempotency record: %w", classifyPGError(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGIdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM idempotency_records WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired idempotency records: %w", classifyPGError(err))
	}
	return tag.RowsAffected(), nil
}
