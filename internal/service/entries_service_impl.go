package service

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/fetch"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

// DefaultEntriesTTL is how long a daily entries snapshot stays fresh.
const DefaultEntriesTTL = 10 * time.Minute

// EntriesRequest selects one member's day.
type EntriesRequest struct {
	Member          string
	Date            string
	TZOffsetMinutes int
	Refresh         bool
}

// EntryView is a Toggl entry enriched with its project name.
type EntryView struct {
	toggl.TimeEntry
	ProjectName string `json:"project_name,omitempty"`
}

// DailyEntries is the cached payload of the daily entries view.
type DailyEntries struct {
	Member       string      `json:"member"`
	Date         string      `json:"date"`
	Entries      []EntryView `json:"entries"`
	Current      *EntryView  `json:"current"`
	TotalSeconds int64       `json:"totalSeconds"`
}

type entriesService struct {
	team     *domain.Team
	upstream toggl.Client
	orch     *fetch.Orchestrator
	clock    quartz.Clock
	ttl      time.Duration
	observer UseCaseObserver
}

func NewEntriesService(team *domain.Team, upstream toggl.Client, orch *fetch.Orchestrator, clock quartz.Clock, ttl time.Duration, observers ...UseCaseObserver) EntriesService {
	if ttl <= 0 {
		ttl = DefaultEntriesTTL
	}
	return &entriesService{
		team:     team,
		upstream: upstream,
		orch:     orch,
		clock:    clock,
		ttl:      ttl,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *entriesService) Daily(ctx context.Context, req EntriesRequest) (*fetch.View[DailyEntries], error) {
	started := s.clock.Now()
	member, err := resolveMember(s.team, req.Member)
	if err != nil {
		return nil, err
	}
	date, err := resolveDate(req.Date, started)
	if err != nil {
		return nil, err
	}
	tz := domain.ClampTZOffset(req.TZOffsetMinutes)
	startAt, endAt, err := domain.DayWindow(date, tz)
	if err != nil {
		return nil, ErrInvalidDate
	}

	view, err := fetch.Load(ctx, s.orch, fetch.Request[DailyEntries]{
		Key:     domain.EntriesKey(member.Name, date),
		Refresh: req.Refresh,
		TTL:     s.ttl,
		Fetch: func(ctx context.Context) (DailyEntries, error) {
			return s.load(ctx, member, date, startAt, endAt)
		},
		Empty: func() DailyEntries {
			return DailyEntries{Member: member.Name, Date: date, Entries: []EntryView{}}
		},
	})
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:     "entries.daily",
		Duration: s.clock.Since(started),
		Success:  err == nil,
		Err:      err,
		Fields:   map[string]any{"member": member.Name, "date": date, "refresh": req.Refresh},
	})
	return view, err
}

func (s *entriesService) load(ctx context.Context, member domain.Member, date string, startAt, endAt time.Time) (DailyEntries, error) {
	now := s.clock.Now()
	inWindow := !now.Before(startAt) && !now.After(endAt)

	var (
		entries []toggl.TimeEntry
		current *toggl.TimeEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.upstream.ListEntries(gctx, member.Token, startAt, endAt)
		return err
	})
	if inWindow {
		g.Go(func() error {
			var err error
			current, err = s.upstream.CurrentEntry(gctx, member.Token)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return DailyEntries{}, err
	}

	names, err := s.projectNames(ctx, member.Token, entries, current)
	if err != nil {
		return DailyEntries{}, err
	}

	toggl.SortByStart(entries)
	out := DailyEntries{
		Member:  member.Name,
		Date:    date,
		Entries: make([]EntryView, 0, len(entries)),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, EntryView{TimeEntry: e, ProjectName: toggl.ProjectName(e, names)})
		out.TotalSeconds += toggl.EntrySeconds(e, now)
	}
	if current != nil {
		out.Current = &EntryView{TimeEntry: *current, ProjectName: toggl.ProjectName(*current, names)}
	}
	return out, nil
}

// projectNames fetches projects only when some entry references one.
func (s *entriesService) projectNames(ctx context.Context, token string, entries []toggl.TimeEntry, current *toggl.TimeEntry) (map[int64]string, error) {
	needed := current != nil && current.ProjectID != nil
	for _, e := range entries {
		if e.ProjectID != nil {
			needed = true
			break
		}
	}
	if !needed {
		return nil, nil
	}
	projects, err := s.upstream.ListProjects(ctx, token)
	if err != nil {
		return nil, err
	}
	return toggl.ProjectNames(projects), nil
}
