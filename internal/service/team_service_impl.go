package service

import (
	"context"
	"sort"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/fetch"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

const (
	// DefaultTeamDayTTL is how long a team daily snapshot stays fresh.
	DefaultTeamDayTTL = 10 * time.Minute
	// DefaultTeamWeekTTL is how long a team week snapshot stays fresh.
	DefaultTeamWeekTTL = 30 * time.Minute

	teamWeekSubject = "7-day snapshot"
	// upstreamFanOut bounds concurrent per-member upstream calls.
	upstreamFanOut = 4
)

// TeamDayRequest selects one calendar day for every member.
type TeamDayRequest struct {
	Date            string
	TZOffsetMinutes int
	Refresh         bool
}

// MemberDay is one member's entries for a day.
type MemberDay struct {
	Name         string      `json:"name"`
	Entries      []EntryView `json:"entries"`
	TotalSeconds int64       `json:"totalSeconds"`
}

// TeamDay is the cached payload of the team daily view.
type TeamDay struct {
	Date    string      `json:"date"`
	Members []MemberDay `json:"members"`
}

// TeamWeekRequest selects the seven days ending at Date.
type TeamWeekRequest struct {
	Date    string
	Refresh bool
}

// DaySummary aggregates one member's entries for a date.
type DaySummary struct {
	Date       string `json:"date"`
	Seconds    int64  `json:"seconds"`
	EntryCount int    `json:"entryCount"`
}

// MemberWeek is one member's seven-day rollup.
type MemberWeek struct {
	Name         string       `json:"name"`
	TotalSeconds int64        `json:"totalSeconds"`
	EntryCount   int          `json:"entryCount"`
	Days         []DaySummary `json:"days"`
}

// TeamWeek is the cached payload of the team week view.
type TeamWeek struct {
	StartDate string       `json:"startDate"`
	EndDate   string       `json:"endDate"`
	WeekDates []string     `json:"weekDates"`
	Members   []MemberWeek `json:"members"`
}

// TeamTTLs sets the freshness of the team views.
type TeamTTLs struct {
	Day  time.Duration
	Week time.Duration
}

type teamService struct {
	team     *domain.Team
	upstream toggl.Client
	orch     *fetch.Orchestrator
	clock    quartz.Clock
	ttls     TeamTTLs
	observer UseCaseObserver
}

func NewTeamService(team *domain.Team, upstream toggl.Client, orch *fetch.Orchestrator, clock quartz.Clock, ttls TeamTTLs, observers ...UseCaseObserver) TeamService {
	if ttls.Day <= 0 {
		ttls.Day = DefaultTeamDayTTL
	}
	if ttls.Week <= 0 {
		ttls.Week = DefaultTeamWeekTTL
	}
	return &teamService{
		team:     team,
		upstream: upstream,
		orch:     orch,
		clock:    clock,
		ttls:     ttls,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *teamService) Members() []string {
	return s.team.Names()
}

func (s *teamService) Day(ctx context.Context, req TeamDayRequest) (*fetch.View[TeamDay], error) {
	started := s.clock.Now()
	date, err := resolveDate(req.Date, started)
	if err != nil {
		return nil, err
	}
	if s.team.Len() == 0 {
		return nil, ErrNoMembers
	}
	startAt, endAt, err := domain.DayWindow(date, req.TZOffsetMinutes)
	if err != nil {
		return nil, ErrInvalidDate
	}
	members := s.team.Members()

	view, err := fetch.Load(ctx, s.orch, fetch.Request[TeamDay]{
		Key:     domain.TeamDayKey(date),
		Refresh: req.Refresh,
		TTL:     s.ttls.Day,
		Fetch: func(ctx context.Context) (TeamDay, error) {
			out := TeamDay{Date: date, Members: make([]MemberDay, len(members))}
			now := s.clock.Now()
			err := fanOut(ctx, members, func(ctx context.Context, i int, m domain.Member) error {
				entries, err := s.upstream.ListEntries(ctx, m.Token, startAt, endAt)
				if err != nil {
					return err
				}
				var names map[int64]string
				if anyProject(entries) {
					projects, err := s.upstream.ListProjects(ctx, m.Token)
					if err != nil {
						return err
					}
					names = toggl.ProjectNames(projects)
				}
				toggl.SortByStart(entries)
				day := MemberDay{Name: m.Name, Entries: make([]EntryView, 0, len(entries))}
				for _, e := range entries {
					day.Entries = append(day.Entries, EntryView{TimeEntry: e, ProjectName: toggl.ProjectName(e, names)})
					day.TotalSeconds += toggl.EntrySeconds(e, now)
				}
				out.Members[i] = day
				return nil
			})
			return out, err
		},
		Empty: func() TeamDay {
			out := TeamDay{Date: date, Members: make([]MemberDay, 0, len(members))}
			for _, m := range members {
				out.Members = append(out.Members, MemberDay{Name: m.Name, Entries: []EntryView{}})
			}
			return out
		},
	})
	s.observe(ctx, "team.day", started, err, map[string]any{"date": date, "refresh": req.Refresh})
	return view, err
}

func (s *teamService) Week(ctx context.Context, req TeamWeekRequest) (*fetch.View[TeamWeek], error) {
	started := s.clock.Now()
	endDate, err := resolveDate(req.Date, started)
	if err != nil {
		return nil, err
	}
	if s.team.Len() == 0 {
		return nil, ErrNoMembers
	}
	weekDates, err := domain.LastSevenDates(endDate)
	if err != nil {
		return nil, ErrInvalidDate
	}
	startDate := weekDates[0]
	members := s.team.Members()

	view, err := fetch.Load(ctx, s.orch, fetch.Request[TeamWeek]{
		Key:     domain.TeamWeekKey(startDate, endDate),
		Refresh: req.Refresh,
		TTL:     s.ttls.Week,
		Subject: teamWeekSubject,
		Fetch: func(ctx context.Context) (TeamWeek, error) {
			return s.loadWeek(ctx, members, weekDates)
		},
		Empty: func() TeamWeek {
			out := TeamWeek{StartDate: startDate, EndDate: endDate, WeekDates: weekDates}
			for _, m := range members {
				out.Members = append(out.Members, MemberWeek{Name: m.Name, Days: emptyDays(weekDates)})
			}
			return out
		},
	})
	s.observe(ctx, "team.week", started, err, map[string]any{"end_date": endDate, "refresh": req.Refresh})
	return view, err
}

func (s *teamService) loadWeek(ctx context.Context, members []domain.Member, weekDates []string) (TeamWeek, error) {
	startDate, endDate := weekDates[0], weekDates[len(weekDates)-1]
	// The week is bucketed by UTC start date.
	startAt, err := time.Parse(domain.DateLayout, startDate)
	if err != nil {
		return TeamWeek{}, ErrInvalidDate
	}
	endDay, err := time.Parse(domain.DateLayout, endDate)
	if err != nil {
		return TeamWeek{}, ErrInvalidDate
	}
	endAt := endDay.Add(24*time.Hour - time.Second)
	now := s.clock.Now()

	rows := make([]MemberWeek, len(members))
	err = fanOut(ctx, members, func(ctx context.Context, i int, m domain.Member) error {
		entries, err := s.upstream.ListEntries(ctx, m.Token, startAt, endAt)
		if err != nil {
			return err
		}
		days := emptyDays(weekDates)
		index := make(map[string]int, len(days))
		for j, d := range days {
			index[d.Date] = j
		}
		row := MemberWeek{Name: m.Name}
		for _, e := range entries {
			j, ok := index[e.Start.UTC().Format(domain.DateLayout)]
			if !ok {
				continue
			}
			secs := toggl.EntrySeconds(e, now)
			days[j].Seconds += secs
			days[j].EntryCount++
			row.TotalSeconds += secs
			row.EntryCount++
		}
		row.Days = days
		rows[i] = row
		return nil
	})
	if err != nil {
		return TeamWeek{}, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalSeconds != rows[j].TotalSeconds {
			return rows[i].TotalSeconds > rows[j].TotalSeconds
		}
		if rows[i].EntryCount != rows[j].EntryCount {
			return rows[i].EntryCount > rows[j].EntryCount
		}
		return rows[i].Name < rows[j].Name
	})
	return TeamWeek{StartDate: startDate, EndDate: endDate, WeekDates: weekDates, Members: rows}, nil
}

func (s *teamService) observe(ctx context.Context, name string, started time.Time, err error, fields map[string]any) {
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:     name,
		Duration: s.clock.Since(started),
		Success:  err == nil,
		Err:      err,
		Fields:   fields,
	})
}

// fanOut runs fn for every member with bounded concurrency. The first error
// cancels the remaining calls.
func fanOut(ctx context.Context, members []domain.Member, fn func(ctx context.Context, i int, m domain.Member) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upstreamFanOut)
	for i, m := range members {
		g.Go(func() error {
			return fn(gctx, i, m)
		})
	}
	return g.Wait()
}

func emptyDays(dates []string) []DaySummary {
	days := make([]DaySummary, len(dates))
	for i, d := range dates {
		days[i] = DaySummary{Date: d}
	}
	return days
}

func anyProject(entries []toggl.TimeEntry) bool {
	for _, e := range entries {
		if e.ProjectID != nil {
			return true
		}
	}
	return false
}
