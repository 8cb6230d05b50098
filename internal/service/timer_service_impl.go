package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/alexanderramin/togglguard/internal/db"
	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/repository"
	"github.com/alexanderramin/togglguard/internal/timerguard"
)

// CurrentTimer is a member's running entry after the auto-stop guard ran.
type CurrentTimer struct {
	Member      string
	Current     *domain.TimeEntry
	AutoStopped int
}

// TimerResult is the outcome of a timer mutation.
type TimerResult struct {
	Member      string
	Entry       *domain.TimeEntry
	AutoStopped int
}

// StartInput starts a new timer for Member.
type StartInput struct {
	Member          string
	Description     string
	Project         string
	TZOffsetMinutes int
}

// UpdateCurrentInput edits the running timer. Nil fields are left as they
// are. A non-nil ElapsedSeconds >= 0 backdates the start.
type UpdateCurrentInput struct {
	Member          string
	Description     *string
	Project         *string
	ElapsedSeconds  *int64
	TZOffsetMinutes int
}

// UpdateEntryInput rewrites a stored entry.
type UpdateEntryInput struct {
	Member          string
	EntryID         string
	Description     *string
	Project         *string
	StartAt         time.Time
	StopAt          time.Time
	TZOffsetMinutes int
}

// RankingRow is one member's booked time for a day.
type RankingRow struct {
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
}

// Ranking lists every configured member for a date.
type Ranking struct {
	Date    string       `json:"date"`
	Members []RankingRow `json:"members"`
}

type timerService struct {
	team     *domain.Team
	entries  repository.TimeEntryRepo
	uow      db.UnitOfWork
	guard    *timerguard.Guard
	clock    quartz.Clock
	observer UseCaseObserver
}

func NewTimerService(team *domain.Team, entries repository.TimeEntryRepo, uow db.UnitOfWork, guard *timerguard.Guard, clock quartz.Clock, observers ...UseCaseObserver) TimerService {
	return &timerService{
		team:     team,
		entries:  entries,
		uow:      uow,
		guard:    guard,
		clock:    clock,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *timerService) ResolveMember(member string) (string, error) {
	m, err := resolveMember(s.team, member)
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

func (s *timerService) Current(ctx context.Context, member string, tzOffsetMinutes int) (*CurrentTimer, error) {
	name, err := s.ResolveMember(member)
	if err != nil {
		return nil, err
	}
	stopped, err := s.guard.AutoStop(ctx, []string{name}, tzOffsetMinutes)
	if err != nil {
		return nil, err
	}
	running, err := s.entries.GetRunning(ctx, name)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return &CurrentTimer{Member: name, Current: running, AutoStopped: stopped}, nil
}

func (s *timerService) Start(ctx context.Context, in StartInput) (*TimerResult, error) {
	started := s.clock.Now()
	name, err := s.ResolveMember(in.Member)
	if err != nil {
		return nil, err
	}
	stopped, err := s.guard.AutoStop(ctx, []string{name}, in.TZOffsetMinutes)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	entry := &domain.TimeEntry{
		ID:          uuid.New().String(),
		Member:      name,
		Description: strings.TrimSpace(in.Description),
		Project:     strings.TrimSpace(in.Project),
		StartAt:     now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txEntries := repository.NewSQLiteTimeEntryRepo(tx)

		// Starting a timer implicitly stops the previous one.
		prev, err := txEntries.GetRunning(ctx, name)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if prev != nil {
			stopAt := now
			if !stopAt.After(prev.StartAt) {
				stopAt = prev.StartAt.Add(time.Second)
			}
			if err := prev.Stop(stopAt, in.TZOffsetMinutes, now); err != nil {
				return fmt.Errorf("stopping previous entry: %w", err)
			}
			if err := txEntries.Update(ctx, prev); err != nil {
				return err
			}
		}
		return txEntries.Create(ctx, entry)
	})
	s.observe(ctx, "timer.start", started, err, name)
	if err != nil {
		return nil, err
	}
	return &TimerResult{Member: name, Entry: entry, AutoStopped: stopped}, nil
}

func (s *timerService) Stop(ctx context.Context, member string, tzOffsetMinutes int) (*TimerResult, error) {
	started := s.clock.Now()
	name, err := s.ResolveMember(member)
	if err != nil {
		return nil, err
	}
	stopped, err := s.guard.AutoStop(ctx, []string{name}, tzOffsetMinutes)
	if err != nil {
		return nil, err
	}

	var entry *domain.TimeEntry
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txEntries := repository.NewSQLiteTimeEntryRepo(tx)
		running, err := txEntries.GetRunning(ctx, name)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNoRunningEntry
		}
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		if err := running.Stop(now, tzOffsetMinutes, now); err != nil {
			return err
		}
		entry = running
		return txEntries.Update(ctx, running)
	})
	s.observe(ctx, "timer.stop", started, err, name)
	if err != nil {
		return nil, err
	}
	return &TimerResult{Member: name, Entry: entry, AutoStopped: stopped}, nil
}

func (s *timerService) UpdateCurrent(ctx context.Context, in UpdateCurrentInput) (*TimerResult, error) {
	started := s.clock.Now()
	name, err := s.ResolveMember(in.Member)
	if err != nil {
		return nil, err
	}
	stopped, err := s.guard.AutoStop(ctx, []string{name}, in.TZOffsetMinutes)
	if err != nil {
		return nil, err
	}

	var entry *domain.TimeEntry
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txEntries := repository.NewSQLiteTimeEntryRepo(tx)
		running, err := txEntries.GetRunning(ctx, name)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNoRunningEntry
		}
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		if in.Description != nil {
			running.Description = strings.TrimSpace(*in.Description)
		}
		if in.Project != nil {
			running.Project = strings.TrimSpace(*in.Project)
		}
		if in.ElapsedSeconds != nil && *in.ElapsedSeconds >= 0 {
			if err := running.Backdate(time.Duration(*in.ElapsedSeconds)*time.Second, now); err != nil {
				return err
			}
		}
		running.UpdatedAt = now
		entry = running
		return txEntries.Update(ctx, running)
	})
	s.observe(ctx, "timer.update_current", started, err, name)
	if err != nil {
		return nil, err
	}
	return &TimerResult{Member: name, Entry: entry, AutoStopped: stopped}, nil
}

func (s *timerService) UpdateEntry(ctx context.Context, in UpdateEntryInput) (*domain.TimeEntry, error) {
	started := s.clock.Now()
	name, err := s.ResolveMember(in.Member)
	if err != nil {
		return nil, err
	}

	var entry *domain.TimeEntry
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txEntries := repository.NewSQLiteTimeEntryRepo(tx)
		e, err := txEntries.GetByID(ctx, name, in.EntryID)
		if err != nil {
			return err
		}
		if in.Description != nil {
			e.Description = strings.TrimSpace(*in.Description)
		}
		if in.Project != nil {
			e.Project = strings.TrimSpace(*in.Project)
		}
		if err := e.Reschedule(in.StartAt, in.StopAt, in.TZOffsetMinutes, s.clock.Now().UTC()); err != nil {
			return err
		}
		entry = e
		return txEntries.Update(ctx, e)
	})
	s.observe(ctx, "timer.update_entry", started, err, name)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *timerService) DeleteEntry(ctx context.Context, member, entryID string) error {
	started := s.clock.Now()
	name, err := s.ResolveMember(member)
	if err != nil {
		return err
	}
	err = s.entries.Delete(ctx, name, entryID)
	s.observe(ctx, "timer.delete_entry", started, err, name)
	return err
}

func (s *timerService) DailyRanking(ctx context.Context, date string) (*Ranking, error) {
	d, err := resolveDate(date, s.clock.Now())
	if err != nil {
		return nil, err
	}
	totals, err := s.entries.SumByStatDate(ctx, d)
	if err != nil {
		return nil, err
	}
	out := &Ranking{Date: d, Members: make([]RankingRow, 0, s.team.Len())}
	for _, m := range s.team.Members() {
		secs := totals[m.Name]
		if secs < 0 {
			secs = 0
		}
		out.Members = append(out.Members, RankingRow{Name: m.Name, Seconds: secs})
	}
	return out, nil
}

func (s *timerService) AutoStopAll(ctx context.Context, tzOffsetMinutes int) (int, error) {
	return s.guard.AutoStop(ctx, s.team.Names(), tzOffsetMinutes)
}

func (s *timerService) observe(ctx context.Context, name string, started time.Time, err error, member string) {
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:     name,
		Duration: s.clock.Since(started),
		Success:  err == nil,
		Err:      err,
		Fields:   map[string]any{"member": member},
	})
}
