package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/togglguard/internal/db"
	"github.com/alexanderramin/togglguard/internal/domain"
)

// SQLiteIdempotencyRepo implements IdempotencyRepo using a SQLite database.
type SQLiteIdempotencyRepo struct {
	db db.DBTX
}

// NewSQLiteIdempotencyRepo creates a new SQLiteIdempotencyRepo.
func NewSQLiteIdempotencyRepo(conn db.DBTX) *SQLiteIdempotencyRepo {
	return &SQLiteIdempotencyRepo{db: conn}
}

func (r *SQLiteIdempotencyRepo) Get(ctx context.Context, scope, subjectID, token string) (*domain.IdempotencyRecord, error) {
	query := `SELECT scope, subject_id, token, status, body, created_at, expires_at
		FROM idempotency_records WHERE scope = ? AND subject_id = ? AND token = ?`
	row := r.db.QueryRowContext(ctx, query, scope, subjectID, token)

	var rec domain.IdempotencyRecord
	var body, createdAtStr, expiresAtStr string
	err := row.Scan(&rec.Scope, &rec.SubjectID, &rec.Token, &rec.Status, &body, &createdAtStr, &expiresAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("idempotency record: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning idempotency record: %w", err)
	}
	if rec.CreatedAt, err = db.ParseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.ExpiresAt, err = db.ParseTime(expiresAtStr); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	rec.Body = []byte(body)
	return &rec, nil
}

func (r *SQLiteIdempotencyRepo) Insert(ctx context.Context, rec *domain.IdempotencyRecord, now time.Time) (bool, error) {
	// A live row wins; only an expired row may be replaced.
	query := `INSERT INTO idempotency_records (scope, subject_id, token, status, body, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, subject_id, token) DO UPDATE SET
			status = excluded.status,
			body = excluded.body,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		WHERE idempotency_records.expires_at <= ?`
	res, err := r.db.ExecContext(ctx, query,
		rec.Scope,
		rec.SubjectID,
		rec.Token,
		rec.Status,
		string(rec.Body),
		db.FormatTime(rec.CreatedAt),
		db.FormatTime(rec.ExpiresAt),
		db.FormatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("inserting idempotency record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteIdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE expires_at <= ?`, db.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired idempotency records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}
