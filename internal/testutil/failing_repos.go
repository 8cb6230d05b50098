package testutil

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/togglguard/internal/domain"
)

// ErrInjected is returned by the failing repositories.
var ErrInjected = errors.New("injected store failure")

// FailingSnapshotRepo fails every call and counts attempts.
type FailingSnapshotRepo struct {
	Upserts atomic.Int32
	Reads   atomic.Int32
}

func (r *FailingSnapshotRepo) Upsert(context.Context, *domain.Snapshot) error {
	r.Upserts.Add(1)
	return ErrInjected
}

func (r *FailingSnapshotRepo) GetLatest(context.Context, string) (*domain.Snapshot, error) {
	r.Reads.Add(1)
	return nil, ErrInjected
}

// FailingIdempotencyRepo fails every call.
type FailingIdempotencyRepo struct{}

func (FailingIdempotencyRepo) Get(context.Context, string, string, string) (*domain.IdempotencyRecord, error) {
	return nil, ErrInjected
}

func (FailingIdempotencyRepo) Insert(context.Context, *domain.IdempotencyRecord, time.Time) (bool, error) {
	return false, ErrInjected
}

func (FailingIdempotencyRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, ErrInjected
}
