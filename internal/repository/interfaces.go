package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/togglguard/internal/domain"
)

// SnapshotRepo is the durable snapshot store: insert-or-replace by key and
// read latest by key.
type SnapshotRepo interface {
	Upsert(ctx context.Context, s *domain.Snapshot) error
	GetLatest(ctx context.Context, key string) (*domain.Snapshot, error)
}

// IdempotencyRepo stores replayable results of mutating requests.
type IdempotencyRepo interface {
	Get(ctx context.Context, scope, subjectID, token string) (*domain.IdempotencyRecord, error)
	// Insert stores rec unless a record for the same key is still live at
	// now. It reports whether rec was stored.
	Insert(ctx context.Context, rec *domain.IdempotencyRecord, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TimeEntryRepo stores locally tracked time entries.
type TimeEntryRepo interface {
	Create(ctx context.Context, e *domain.TimeEntry) error
	GetByID(ctx context.Context, member, id string) (*domain.TimeEntry, error)
	GetRunning(ctx context.Context, member string) (*domain.TimeEntry, error)
	ListRunning(ctx context.Context, members []string) ([]*domain.TimeEntry, error)
	Update(ctx context.Context, e *domain.TimeEntry) error
	Delete(ctx context.Context, member, id string) error
	SumByStatDate(ctx context.Context, date string) (map[string]int64, error)
}
