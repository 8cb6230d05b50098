package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/testutil"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

func newTeamService(f *upstreamFixture) TeamService {
	return NewTeamService(testutil.TestTeam(), f.upstream, f.orch, f.clock, TeamTTLs{})
}

func TestTeamWeek_EmptyFallbackListsMembers(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newTeamService(f)

	v, err := svc.Week(context.Background(), TeamWeekRequest{Date: "2024-05-01"})
	require.NoError(t, err)
	assert.True(t, v.Stale)
	assert.Equal(t, "No cached 7-day snapshot yet. Click Refresh view to load data.", v.Warning)
	assert.Equal(t, "2024-04-25", v.Payload.StartDate)
	require.Len(t, v.Payload.Members, 2)
	for _, m := range v.Payload.Members {
		assert.Len(t, m.Days, 7)
		assert.Zero(t, m.TotalSeconds)
	}
}

func TestTeamWeek_RefreshAggregatesAndSorts(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newTeamService(f)

	start := time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC)
	f.upstream.EXPECT().ListEntries(gomock.Any(), "token-ana", start, end).Return([]toggl.TimeEntry{
		stoppedEntry(1, time.Date(2024, 4, 25, 9, 0, 0, 0, time.UTC), time.Hour),
	}, nil)
	f.upstream.EXPECT().ListEntries(gomock.Any(), "token-bruno", start, end).Return([]toggl.TimeEntry{
		stoppedEntry(2, time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC), time.Hour),
		stoppedEntry(3, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 30*time.Minute),
		// Outside the week, ignored.
		stoppedEntry(4, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), time.Hour),
		// Running since 11:00, contributes one hour at noon.
		{ID: 5, Start: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC), Duration: -1},
	}, nil)

	v, err := svc.Week(context.Background(), TeamWeekRequest{Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)
	assert.False(t, v.Stale)
	require.Len(t, v.Payload.Members, 2)

	bruno := v.Payload.Members[0]
	assert.Equal(t, "Bruno", bruno.Name)
	assert.Equal(t, int64(3600+1800+3600), bruno.TotalSeconds)
	assert.Equal(t, 3, bruno.EntryCount)
	assert.Equal(t, "2024-05-01", bruno.Days[6].Date)
	assert.Equal(t, int64(5400), bruno.Days[6].Seconds)
	assert.Equal(t, 2, bruno.Days[6].EntryCount)

	ana := v.Payload.Members[1]
	assert.Equal(t, int64(3600), ana.TotalSeconds)
	assert.Equal(t, int64(3600), ana.Days[0].Seconds)
}

func TestTeamWeek_TieBreaksByCountThenName(t *testing.T) {
	f := newUpstreamFixture(t)
	team := domain.NewTeam([]domain.Member{
		{Name: "Carla", Token: "c"},
		{Name: "Ana", Token: "a"},
		{Name: "Bruno", Token: "b"},
	})
	svc := NewTeamService(team, f.upstream, f.orch, f.clock, TeamTTLs{})

	day := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	f.upstream.EXPECT().ListEntries(gomock.Any(), "c", gomock.Any(), gomock.Any()).
		Return([]toggl.TimeEntry{stoppedEntry(1, day, time.Hour)}, nil)
	f.upstream.EXPECT().ListEntries(gomock.Any(), "a", gomock.Any(), gomock.Any()).
		Return([]toggl.TimeEntry{stoppedEntry(2, day, time.Hour)}, nil)
	f.upstream.EXPECT().ListEntries(gomock.Any(), "b", gomock.Any(), gomock.Any()).
		Return([]toggl.TimeEntry{stoppedEntry(3, day, 30*time.Minute), stoppedEntry(4, day.Add(time.Hour), 30*time.Minute)}, nil)

	v, err := svc.Week(context.Background(), TeamWeekRequest{Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)
	names := []string{v.Payload.Members[0].Name, v.Payload.Members[1].Name, v.Payload.Members[2].Name}
	assert.Equal(t, []string{"Bruno", "Ana", "Carla"}, names)
}

func TestTeamWeek_QuotaFallback(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newTeamService(f)
	ctx := context.Background()

	f.upstream.EXPECT().ListEntries(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	_, err := svc.Week(ctx, TeamWeekRequest{Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)

	f.upstream.EXPECT().ListEntries(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &toggl.UpstreamError{Kind: toggl.QuotaExhausted, StatusCode: 402, QuotaResetsIn: "900"}).
		MinTimes(1).MaxTimes(2)
	v, err := svc.Week(ctx, TeamWeekRequest{Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)
	assert.True(t, v.Stale)
	assert.Equal(t, "Quota reached. Showing last cached 7-day snapshot. Try Refresh view after reset.", v.Warning)
	assert.Equal(t, "900", v.QuotaResetsIn)
}

func TestTeamWeek_NoMembers(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := NewTeamService(domain.NewTeam(nil), f.upstream, f.orch, f.clock, TeamTTLs{})

	_, err := svc.Week(context.Background(), TeamWeekRequest{Date: "2024-05-01"})
	assert.ErrorIs(t, err, ErrNoMembers)
}

func TestTeamDay_RefreshAndEmpty(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := newTeamService(f)
	ctx := context.Background()

	empty, err := svc.Day(ctx, TeamDayRequest{Date: "2024-05-01"})
	require.NoError(t, err)
	assert.True(t, empty.Stale)
	require.Len(t, empty.Payload.Members, 2)
	assert.Equal(t, "Ana", empty.Payload.Members[0].Name)

	f.upstream.EXPECT().ListEntries(gomock.Any(), "token-ana", gomock.Any(), gomock.Any()).
		Return([]toggl.TimeEntry{stoppedEntry(1, testutil.Epoch.Add(-3*time.Hour), time.Hour)}, nil)
	f.upstream.EXPECT().ListEntries(gomock.Any(), "token-bruno", gomock.Any(), gomock.Any()).Return(nil, nil)

	v, err := svc.Day(ctx, TeamDayRequest{Date: "2024-05-01", Refresh: true})
	require.NoError(t, err)
	assert.False(t, v.Stale)
	assert.Equal(t, int64(3600), v.Payload.Members[0].TotalSeconds)
	assert.Zero(t, v.Payload.Members[1].TotalSeconds)
	assert.Equal(t, []string{"Ana", "Bruno"}, svc.Members())
}
