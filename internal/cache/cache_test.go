package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/repository"
	"github.com/alexanderramin/togglguard/internal/testutil"
)

type summary struct {
	TotalSeconds int64 `json:"totalSeconds"`
}

func newTestCache(t *testing.T, durable repository.SnapshotRepo) (*Cache, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(testutil.Epoch)
	c := New(Options{Durable: durable, Clock: clock, Logger: testutil.Logger(t)})
	return c, clock
}

func TestCache_FreshThenStale(t *testing.T) {
	c, clock := newTestCache(t, nil)
	ctx := context.Background()
	key := domain.EntriesKey("ana", "2024-05-01")

	_, err := c.Set(ctx, key, summary{TotalSeconds: 60}, 10*time.Minute)
	require.NoError(t, err)

	s, ok := c.Get(ctx, key, true)
	require.True(t, ok)
	assert.JSONEq(t, `{"totalSeconds":60}`, string(s.Payload))

	clock.Advance(10*time.Minute + time.Second)

	_, ok = c.Get(ctx, key, true)
	assert.False(t, ok, "expired snapshot must not be returned fresh")

	s, ok = c.Get(ctx, key, false)
	require.True(t, ok)
	assert.JSONEq(t, `{"totalSeconds":60}`, string(s.Payload))
}

func TestCache_ExpiryBoundaryIsFresh(t *testing.T) {
	c, clock := newTestCache(t, nil)
	ctx := context.Background()

	_, err := c.Set(ctx, "k", summary{}, time.Minute)
	require.NoError(t, err)
	clock.Advance(time.Minute)

	_, ok := c.Get(ctx, "k", true)
	assert.True(t, ok)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t, nil)

	_, ok := c.Get(context.Background(), "nothing", false)
	assert.False(t, ok)
}

func TestCache_DurableHitRepopulatesMemory(t *testing.T) {
	durable := repository.NewSQLiteSnapshotRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	key := domain.TeamWeekKey("2024-04-25", "2024-05-01")

	// A sibling instance wrote the snapshot.
	sibling, _ := newTestCache(t, durable)
	_, err := sibling.Set(ctx, key, summary{TotalSeconds: 7}, 30*time.Minute)
	require.NoError(t, err)

	c, _ := newTestCache(t, durable)
	s, ok := c.Get(ctx, key, true)
	require.True(t, ok)
	assert.JSONEq(t, `{"totalSeconds":7}`, string(s.Payload))

	c.mu.Lock()
	_, inMemory := c.mem[key]
	c.mu.Unlock()
	assert.True(t, inMemory)
}

func TestCache_DurableStaleNotFresh(t *testing.T) {
	durable := repository.NewSQLiteSnapshotRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	require.NoError(t, durable.Upsert(ctx, &domain.Snapshot{
		Key:       "k",
		Payload:   json.RawMessage(`{"totalSeconds":1}`),
		CreatedAt: testutil.Epoch.Add(-time.Hour),
		ExpiresAt: testutil.Epoch.Add(-time.Minute),
	}))

	c, _ := newTestCache(t, durable)
	_, ok := c.Get(ctx, "k", true)
	assert.False(t, ok)

	s, ok := c.Get(ctx, "k", false)
	require.True(t, ok)
	assert.JSONEq(t, `{"totalSeconds":1}`, string(s.Payload))
}

func TestCache_DurableFailuresAreAbsorbed(t *testing.T) {
	failing := &testutil.FailingSnapshotRepo{}
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	clock := quartz.NewMock(t)
	clock.Set(testutil.Epoch)
	c := New(Options{Durable: failing, Clock: clock, Logger: testutil.Logger(t), Metrics: metrics})
	ctx := context.Background()

	_, ok := c.Get(ctx, "k", false)
	assert.False(t, ok, "read failure is a miss")

	_, err = c.Set(ctx, "k", summary{TotalSeconds: 5}, time.Minute)
	require.NoError(t, err, "write failure is swallowed")

	s, ok := c.Get(ctx, "k", true)
	require.True(t, ok, "memory tier serves the write")
	assert.JSONEq(t, `{"totalSeconds":5}`, string(s.Payload))

	assert.Equal(t, int32(1), failing.Upserts.Load())
	assert.Equal(t, int32(1), failing.Reads.Load())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.storeErrors.WithLabelValues(OpRead)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.storeErrors.WithLabelValues(OpWrite)))
}

func TestCache_LastWriteWins(t *testing.T) {
	c, _ := newTestCache(t, nil)
	ctx := context.Background()

	_, err := c.Set(ctx, "k", summary{TotalSeconds: 1}, time.Minute)
	require.NoError(t, err)
	_, err = c.Set(ctx, "k", summary{TotalSeconds: 2}, time.Minute)
	require.NoError(t, err)

	s, ok := c.Get(ctx, "k", true)
	require.True(t, ok)
	assert.JSONEq(t, `{"totalSeconds":2}`, string(s.Payload))
}

func TestCache_RejectsInvalidRawPayload(t *testing.T) {
	c, _ := newTestCache(t, nil)

	_, err := c.Set(context.Background(), "k", json.RawMessage(`{not json`), time.Minute)
	assert.Error(t, err)
}
