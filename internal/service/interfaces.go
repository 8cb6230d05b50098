package service

import (
	"context"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/fetch"
)

// EntriesService serves one member's daily entries.
type EntriesService interface {
	Daily(ctx context.Context, req EntriesRequest) (*fetch.View[DailyEntries], error)
}

// TeamService serves team rollups.
type TeamService interface {
	Day(ctx context.Context, req TeamDayRequest) (*fetch.View[TeamDay], error)
	Week(ctx context.Context, req TeamWeekRequest) (*fetch.View[TeamWeek], error)
	Members() []string
}

// TimerService manages locally tracked running timers and stored entries.
type TimerService interface {
	Current(ctx context.Context, member string, tzOffsetMinutes int) (*CurrentTimer, error)
	Start(ctx context.Context, in StartInput) (*TimerResult, error)
	Stop(ctx context.Context, member string, tzOffsetMinutes int) (*TimerResult, error)
	UpdateCurrent(ctx context.Context, in UpdateCurrentInput) (*TimerResult, error)
	UpdateEntry(ctx context.Context, in UpdateEntryInput) (*domain.TimeEntry, error)
	DeleteEntry(ctx context.Context, member, entryID string) error
	DailyRanking(ctx context.Context, date string) (*Ranking, error)
	AutoStopAll(ctx context.Context, tzOffsetMinutes int) (int, error)
	// ResolveMember returns the canonical configured name for member.
	ResolveMember(member string) (string, error)
}
