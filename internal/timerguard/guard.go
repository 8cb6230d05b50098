// Package timerguard closes running time entries that were left open past
// the two hour ceiling.
package timerguard

import (
	"context"
	"fmt"

	"cdr.dev/slog"
	"github.com/coder/quartz"

	"github.com/alexanderramin/togglguard/internal/db"
	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/repository"
)

// Guard auto-stops long-running timers. Callers run it before any read or
// mutation of a member's running timer.
type Guard struct {
	uow   db.UnitOfWork
	clock quartz.Clock
	log   slog.Logger
}

func New(uow db.UnitOfWork, clock quartz.Clock, log slog.Logger) *Guard {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Guard{uow: uow, clock: clock, log: log.Named("timerguard")}
}

// AutoStop stops every running entry of members that started more than
// domain.MaxEntryDuration ago. Each entry is stopped at start + 2h and booked
// on the local date given by tzOffsetMinutes. It returns how many entries
// were stopped.
func (g *Guard) AutoStop(ctx context.Context, members []string, tzOffsetMinutes int) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}
	tz := domain.ClampTZOffset(tzOffsetMinutes)
	now := g.clock.Now().UTC()

	var stopped int
	err := g.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		stopped = 0
		entries := repository.NewSQLiteTimeEntryRepo(tx)
		running, err := entries.ListRunning(ctx, members)
		if err != nil {
			return err
		}
		for _, e := range running {
			if !e.ExceedsMax(now) {
				continue
			}
			if err := e.Stop(e.StartAt.Add(domain.MaxEntryDuration), tz, now); err != nil {
				return fmt.Errorf("stopping entry %s: %w", e.ID, err)
			}
			if err := entries.Update(ctx, e); err != nil {
				return err
			}
			g.log.Info(ctx, "auto-stopped running entry",
				slog.F("member", e.Member), slog.F("entry_id", e.ID), slog.F("stat_date", e.StatDate))
			stopped++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("auto-stopping timers: %w", err)
	}
	return stopped, nil
}

// AutoStopWarning renders the notice for n auto-stopped entries, or "" when
// none were stopped.
func AutoStopWarning(n int) string {
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return "1 running time entry was auto-stopped at 2 hours."
	default:
		return fmt.Sprintf("%d running time entries were auto-stopped at 2 hours.", n)
	}
}
