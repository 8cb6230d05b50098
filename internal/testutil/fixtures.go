package testutil

import (
	"time"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/google/uuid"
)

// Epoch is the fixed "now" most tests set their mock clock to.
var Epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Time entry options
type EntryOption func(*domain.TimeEntry)

func WithDescription(d string) EntryOption {
	return func(e *domain.TimeEntry) {
		e.Description = d
	}
}

func WithProject(p string) EntryOption {
	return func(e *domain.TimeEntry) {
		e.Project = p
	}
}

// WithStoppedAfter closes the entry d after its start, booked in UTC.
func WithStoppedAfter(d time.Duration) EntryOption {
	return func(e *domain.TimeEntry) {
		stop := e.StartAt.Add(d)
		e.StopAt = &stop
		e.DurationSec = int64(d / time.Second)
		e.StatDate = domain.LocalDate(e.StartAt, 0)
	}
}

// NewTestEntry builds a running entry for member started at start.
func NewTestEntry(member string, start time.Time, opts ...EntryOption) *domain.TimeEntry {
	e := &domain.TimeEntry{
		ID:        uuid.New().String(),
		Member:    member,
		StartAt:   start.UTC(),
		CreatedAt: start.UTC(),
		UpdatedAt: start.UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TestTeam returns a two-member team.
func TestTeam() *domain.Team {
	return domain.NewTeam([]domain.Member{
		{Name: "Ana", Token: "token-ana"},
		{Name: "Bruno", Token: "token-bruno"},
	})
}
