package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/togglguard/internal/db"
	"github.com/alexanderramin/togglguard/internal/domain"
)

const timeEntryColumns = `id, member, description, project, start_at, stop_at, duration_sec, stat_date, created_at, updated_at`

// SQLiteTimeEntryRepo implements TimeEntryRepo using a SQLite database.
type SQLiteTimeEntryRepo struct {
	db db.DBTX
}

// NewSQLiteTimeEntryRepo creates a new SQLiteTimeEntryRepo.
func NewSQLiteTimeEntryRepo(conn db.DBTX) *SQLiteTimeEntryRepo {
	return &SQLiteTimeEntryRepo{db: conn}
}

func (r *SQLiteTimeEntryRepo) Create(ctx context.Context, e *domain.TimeEntry) error {
	query := `INSERT INTO time_entries (` + timeEntryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Member,
		e.Description,
		e.Project,
		db.FormatTime(e.StartAt),
		nullableTimeToString(e.StopAt),
		e.DurationSec,
		e.StatDate,
		db.FormatTime(e.CreatedAt),
		db.FormatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting time entry: %w", err)
	}
	return nil
}

func (r *SQLiteTimeEntryRepo) GetByID(ctx context.Context, member, id string) (*domain.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE member = ? AND id = ?`
	return r.scanEntry(r.db.QueryRowContext(ctx, query, member, id))
}

func (r *SQLiteTimeEntryRepo) GetRunning(ctx context.Context, member string) (*domain.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE member = ? AND stop_at IS NULL`
	return r.scanEntry(r.db.QueryRowContext(ctx, query, member))
}

func (r *SQLiteTimeEntryRepo) ListRunning(ctx context.Context, members []string) ([]*domain.TimeEntry, error) {
	if len(members) == 0 {
		return nil, nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries
		WHERE stop_at IS NULL AND member IN (` + placeholders(len(members)) + `)
		ORDER BY start_at`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing running time entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TimeEntry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating time entries: %w", err)
	}
	return entries, nil
}

func (r *SQLiteTimeEntryRepo) Update(ctx context.Context, e *domain.TimeEntry) error {
	query := `UPDATE time_entries SET description = ?, project = ?, start_at = ?, stop_at = ?,
		duration_sec = ?, stat_date = ?, updated_at = ?
		WHERE id = ? AND member = ?`
	res, err := r.db.ExecContext(ctx, query,
		e.Description,
		e.Project,
		db.FormatTime(e.StartAt),
		nullableTimeToString(e.StopAt),
		e.DurationSec,
		e.StatDate,
		db.FormatTime(e.UpdatedAt),
		e.ID,
		e.Member,
	)
	if err != nil {
		return fmt.Errorf("updating time entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("time entry %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteTimeEntryRepo) Delete(ctx context.Context, member, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM time_entries WHERE member = ? AND id = ?`, member, id)
	if err != nil {
		return fmt.Errorf("deleting time entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("time entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteTimeEntryRepo) SumByStatDate(ctx context.Context, date string) (map[string]int64, error) {
	query := `SELECT member, COALESCE(SUM(duration_sec), 0) FROM time_entries
		WHERE stat_date = ? AND stop_at IS NOT NULL
		GROUP BY member`
	rows, err := r.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("summing time entries: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var member string
		var seconds int64
		if err := rows.Scan(&member, &seconds); err != nil {
			return nil, fmt.Errorf("scanning daily total: %w", err)
		}
		totals[member] = seconds
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily totals: %w", err)
	}
	return totals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry scans one time entry from a *sql.Row or *sql.Rows.
func (r *SQLiteTimeEntryRepo) scanEntry(row rowScanner) (*domain.TimeEntry, error) {
	var e domain.TimeEntry
	var startAtStr, createdAtStr, updatedAtStr string
	var stopAt sql.NullString

	err := row.Scan(
		&e.ID, &e.Member, &e.Description, &e.Project, &startAtStr, &stopAt,
		&e.DurationSec, &e.StatDate, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("time entry: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning time entry: %w", err)
	}

	if e.StartAt, err = db.ParseTime(startAtStr); err != nil {
		return nil, fmt.Errorf("parsing start_at: %w", err)
	}
	if e.CreatedAt, err = db.ParseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = db.ParseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	e.StopAt = parseNullableTime(stopAt)
	return &e, nil
}
