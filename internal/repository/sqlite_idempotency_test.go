package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(token string, status int, body string, created time.Time, ttl time.Duration) *domain.IdempotencyRecord {
	return &domain.IdempotencyRecord{
		Scope:     "time-entries-current-patch",
		SubjectID: "ana",
		Token:     token,
		Status:    status,
		Body:      json.RawMessage(body),
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	}
}

func TestIdempotencyRepo_InsertAndGet(t *testing.T) {
	repo := NewSQLiteIdempotencyRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	rec := newRecord("tok-1", 200, `{"ok":true}`, testutil.Epoch, 180*time.Second)
	stored, err := repo.Insert(ctx, rec, testutil.Epoch)
	require.NoError(t, err)
	assert.True(t, stored)

	got, err := repo.Get(ctx, rec.Scope, "ana", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 200, got.Status)
	assert.JSONEq(t, `{"ok":true}`, string(got.Body))
	assert.True(t, got.ExpiresAt.Equal(rec.ExpiresAt))
}

func TestIdempotencyRepo_LiveRecordWins(t *testing.T) {
	repo := NewSQLiteIdempotencyRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	first := newRecord("tok-1", 200, `{"n":1}`, testutil.Epoch, 180*time.Second)
	_, err := repo.Insert(ctx, first, testutil.Epoch)
	require.NoError(t, err)

	now := testutil.Epoch.Add(30 * time.Second)
	second := newRecord("tok-1", 500, `{"n":2}`, now, 60*time.Second)
	stored, err := repo.Insert(ctx, second, now)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := repo.Get(ctx, first.Scope, "ana", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 200, got.Status)
	assert.JSONEq(t, `{"n":1}`, string(got.Body))
}

func TestIdempotencyRepo_ExpiredRecordReplaced(t *testing.T) {
	repo := NewSQLiteIdempotencyRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	_, err := repo.Insert(ctx, newRecord("tok-1", 500, `{"n":1}`, testutil.Epoch, 60*time.Second), testutil.Epoch)
	require.NoError(t, err)

	now := testutil.Epoch.Add(2 * time.Minute)
	stored, err := repo.Insert(ctx, newRecord("tok-1", 200, `{"n":2}`, now, 180*time.Second), now)
	require.NoError(t, err)
	assert.True(t, stored)

	got, err := repo.Get(ctx, "time-entries-current-patch", "ana", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 200, got.Status)
}

func TestIdempotencyRepo_KeysAreIndependent(t *testing.T) {
	repo := NewSQLiteIdempotencyRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	_, err := repo.Insert(ctx, newRecord("tok-1", 200, `{}`, testutil.Epoch, time.Minute), testutil.Epoch)
	require.NoError(t, err)

	other := newRecord("tok-1", 201, `{}`, testutil.Epoch, time.Minute)
	other.SubjectID = "bruno"
	stored, err := repo.Insert(ctx, other, testutil.Epoch)
	require.NoError(t, err)
	assert.True(t, stored)

	_, err = repo.Get(ctx, "time-entries-current-patch", "ana", "tok-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIdempotencyRepo_DeleteExpired(t *testing.T) {
	repo := NewSQLiteIdempotencyRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	_, err := repo.Insert(ctx, newRecord("short", 500, `{}`, testutil.Epoch, 60*time.Second), testutil.Epoch)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newRecord("long", 200, `{}`, testutil.Epoch, 180*time.Second), testutil.Epoch)
	require.NoError(t, err)

	n, err := repo.DeleteExpired(ctx, testutil.Epoch.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Get(ctx, "time-entries-current-patch", "ana", "short")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(ctx, "time-entries-current-patch", "ana", "long")
	assert.NoError(t, err)
}
