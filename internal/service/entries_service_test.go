package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alexanderramin/togglguard/internal/testutil"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

func newEntriesService(f *upstreamFixture) EntriesService {
	return NewEntriesService(testutil.TestTeam(), f.upstream, f.orch, f.clock, DefaultEntriesTTL)
}

func stoppedEntry(id int64, start time.Time, d time.Duration) toggl.TimeEntry {
	stop := start.Add(d)
	return toggl.TimeEntry{ID: id, Start: start, Stop: &stop, Duration: int64(d / time.Second)}
}

func TestEntriesDaily_NoSnapshotNoRefresh(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newEntriesService(f)

	v, err := svc.Daily(context.Background(), EntriesRequest{Member: "Ana", Date: "2024-05-01"})
	require.NoError(t, err)
	assert.True(t, v.Stale)
	assert.Equal(t, "No cached snapshot yet. Click Refresh view to load data.", v.Warning)
	assert.Empty(t, v.Payload.Entries)
	assert.Equal(t, "2024-05-01", v.Payload.Date)
	assert.Zero(t, v.Payload.TotalSeconds)
}

func TestEntriesDaily_RefreshThenCached(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newEntriesService(f)
	ctx := context.Background()

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.upstream.EXPECT().
		ListEntries(gomock.Any(), "token-ana", day, day.Add(24*time.Hour-time.Millisecond)).
		Return([]toggl.TimeEntry{
			stoppedEntry(2, day.Add(10*time.Hour), 40*time.Minute),
			stoppedEntry(1, day.Add(8*time.Hour), 20*time.Minute),
		}, nil)
	f.upstream.EXPECT().CurrentEntry(gomock.Any(), "token-ana").Return(nil, nil)

	v, err := svc.Daily(ctx, EntriesRequest{Member: "ana", Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)
	assert.False(t, v.Stale)
	assert.Equal(t, int64(3600), v.Payload.TotalSeconds)
	require.Len(t, v.Payload.Entries, 2)
	assert.Equal(t, int64(1), v.Payload.Entries[0].ID, "sorted by start")
	assert.Nil(t, v.Payload.Current)

	f.clock.Advance(time.Minute)
	again, err := svc.Daily(ctx, EntriesRequest{Member: "Ana", Date: "2024-05-01"})
	require.NoError(t, err)
	assert.False(t, again.Stale)
	assert.Empty(t, again.Warning)
	assert.Equal(t, v.Payload.TotalSeconds, again.Payload.TotalSeconds)
	assert.Equal(t, len(v.Payload.Entries), len(again.Payload.Entries))
	assert.True(t, again.CachedAt.Equal(v.CachedAt))
}

func TestEntriesDaily_RunningEntryCountsElapsed(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newEntriesService(f)

	running := toggl.TimeEntry{ID: 9, Start: testutil.Epoch.Add(-30 * time.Minute), Duration: -1, ProjectID: int64Ptr(7)}
	f.upstream.EXPECT().ListEntries(gomock.Any(), "token-ana", gomock.Any(), gomock.Any()).
		Return([]toggl.TimeEntry{running}, nil)
	f.upstream.EXPECT().CurrentEntry(gomock.Any(), "token-ana").Return(&running, nil)
	f.upstream.EXPECT().ListProjects(gomock.Any(), "token-ana").
		Return([]toggl.Project{{ID: 7, Name: "Ops"}}, nil)

	v, err := svc.Daily(context.Background(), EntriesRequest{Member: "Ana", Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1800), v.Payload.TotalSeconds)
	require.NotNil(t, v.Payload.Current)
	assert.Equal(t, "Ops", v.Payload.Current.ProjectName)
	assert.Equal(t, "Ops", v.Payload.Entries[0].ProjectName)
}

func TestEntriesDaily_PastDaySkipsCurrent(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newEntriesService(f)

	f.upstream.EXPECT().ListEntries(gomock.Any(), "token-ana", gomock.Any(), gomock.Any()).Return(nil, nil)

	v, err := svc.Daily(context.Background(), EntriesRequest{Member: "Ana", Date: "2024-04-20", Refresh: true})
	require.NoError(t, err)
	assert.Empty(t, v.Payload.Entries)
	assert.NotNil(t, v.Payload.Entries)
}

func TestEntriesDaily_TZOffsetShiftsWindow(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newEntriesService(f)

	start := time.Date(2024, 4, 20, 3, 0, 0, 0, time.UTC)
	f.upstream.EXPECT().ListEntries(gomock.Any(), "token-bruno", start, start.Add(24*time.Hour-time.Millisecond)).Return(nil, nil)

	_, err := svc.Daily(context.Background(), EntriesRequest{Member: "Bruno", Date: "2024-04-20", TZOffsetMinutes: 180, Refresh: true})
	require.NoError(t, err)
}

func TestEntriesDaily_RateLimitedFallsBack(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newEntriesService(f)
	ctx := context.Background()

	f.upstream.EXPECT().ListEntries(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]toggl.TimeEntry{stoppedEntry(1, testutil.Epoch.Add(-2*time.Hour), time.Hour)}, nil)
	f.upstream.EXPECT().CurrentEntry(gomock.Any(), gomock.Any()).Return(nil, nil)
	_, err := svc.Daily(ctx, EntriesRequest{Member: "Ana", Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	f.upstream.EXPECT().ListEntries(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &toggl.UpstreamError{Kind: toggl.RateLimited, StatusCode: 429, RetryAfter: "60"})
	f.upstream.EXPECT().CurrentEntry(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	v, err := svc.Daily(ctx, EntriesRequest{Member: "Ana", Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)
	assert.True(t, v.Stale)
	assert.Equal(t, "Rate limited. Showing last cached snapshot.", v.Warning)
	assert.Equal(t, "60", v.RetryAfter)
	assert.Equal(t, int64(3600), v.Payload.TotalSeconds)
}

func TestEntriesDaily_Validation(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newEntriesService(f)
	ctx := context.Background()

	_, err := svc.Daily(ctx, EntriesRequest{Member: " "})
	assert.ErrorIs(t, err, ErrMissingMember)

	_, err = svc.Daily(ctx, EntriesRequest{Member: "Zed"})
	assert.ErrorIs(t, err, ErrUnknownMember)

	_, err = svc.Daily(ctx, EntriesRequest{Member: "Ana", Date: "2024-5-1"})
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.True(t, IsBadRequest(err))
}
