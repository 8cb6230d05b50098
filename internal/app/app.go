// Package app wires the stores, cache, upstream client and services of a
// togglguard process from its configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"cdr.dev/slog/sloggers/slogjson"
	"github.com/coder/quartz"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexanderramin/togglguard/internal/cache"
	"github.com/alexanderramin/togglguard/internal/config"
	"github.com/alexanderramin/togglguard/internal/db"
	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/fetch"
	"github.com/alexanderramin/togglguard/internal/httpapi"
	"github.com/alexanderramin/togglguard/internal/idempotency"
	"github.com/alexanderramin/togglguard/internal/repository"
	"github.com/alexanderramin/togglguard/internal/service"
	"github.com/alexanderramin/togglguard/internal/timerguard"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

// App is a fully wired togglguard process.
type App struct {
	Config      config.Config
	Log         slog.Logger
	Registry    *prometheus.Registry
	Team        *domain.Team
	Cache       *cache.Cache
	Entries     service.EntriesService
	TeamViews   service.TeamService
	Timers      service.TimerService
	Idempotency *idempotency.Guard
	Server      *httpapi.Server

	clock    quartz.Clock
	database *sql.DB
	pool     *pgxpool.Pool
}

// Options overrides process dependencies, mostly for tests.
type Options struct {
	Clock    quartz.Clock
	Upstream toggl.Client
}

// New opens the stores named by cfg and wires every component. Snapshots and
// idempotency records go to Postgres when cfg.PostgresURL is set and to the
// local SQLite database otherwise; running timers always live in SQLite.
func New(ctx context.Context, cfg config.Config, log slog.Logger, opts Options) (*App, error) {
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a := &App{Config: cfg, Log: log, clock: clock, database: database}

	var (
		snapshots repository.SnapshotRepo    = repository.NewSQLiteSnapshotRepo(database)
		records   repository.IdempotencyRepo = repository.NewSQLiteIdempotencyRepo(database)
	)
	entries := repository.NewSQLiteTimeEntryRepo(database)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.pool = pool
		if err := repository.MigratePG(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
		snapshots = repository.NewPGSnapshotRepo(pool)
		records = repository.NewPGIdempotencyRepo(pool)
		log.Info(ctx, "using postgres for snapshots and idempotency records")
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cacheMetrics, err := cache.NewMetrics(a.Registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	upstream := opts.Upstream
	if upstream == nil {
		callMetrics, err := toggl.NewMetricsObserver(a.Registry)
		if err != nil {
			a.Close()
			return nil, err
		}
		upstream = toggl.NewClient(cfg.TogglConfig(), clock, toggl.Observers{
			toggl.NewLogObserver(log),
			callMetrics,
		})
	}

	a.Cache = cache.New(cache.Options{
		Durable: snapshots,
		Clock:   clock,
		Logger:  log,
		Metrics: cacheMetrics,
	})
	orch, err := fetch.New(fetch.Options{
		Cache:        a.Cache,
		Clock:        clock,
		Logger:       log,
		Registerer:   a.Registry,
		FetchTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Team = domain.NewTeam(cfg.Team)
	observer := service.NewLogUseCaseObserver(log)
	uow := db.NewSQLiteUnitOfWork(database)
	a.Entries = service.NewEntriesService(a.Team, upstream, orch, clock, cfg.EntriesTTL, observer)
	a.TeamViews = service.NewTeamService(a.Team, upstream, orch, clock,
		service.TeamTTLs{Day: cfg.TeamDayTTL, Week: cfg.TeamWeekTTL}, observer)
	a.Timers = service.NewTimerService(a.Team, entries, uow, timerguard.New(uow, clock, log), clock, observer)
	a.Idempotency = idempotency.NewGuard(records, clock, log)

	a.Server = httpapi.New(httpapi.Options{
		Entries:        a.Entries,
		Team:           a.TeamViews,
		Timers:         a.Timers,
		Idempotency:    a.Idempotency,
		Clock:          clock,
		Logger:         log,
		Registerer:     a.Registry,
		Metrics:        promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		RequestTimeout: cfg.RequestTimeout,
	})
	return a, nil
}

// Clock returns the clock every component was wired with.
func (a *App) Clock() quartz.Clock {
	return a.clock
}

// Close releases the stores.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.database != nil {
		_ = a.database.Close()
	}
}

// NewLogger returns a human-readable logger when w is a terminal and a JSON
// logger otherwise.
func NewLogger(w io.Writer, level string) slog.Logger {
	var sink slog.Sink
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		sink = sloghuman.Sink(w)
	} else {
		sink = slogjson.Sink(w)
	}
	log := slog.Make(sink)
	switch strings.ToLower(level) {
	case "debug":
		return log.Leveled(slog.LevelDebug)
	case "warn":
		return log.Leveled(slog.LevelWarn)
	case "error":
		return log.Leveled(slog.LevelError)
	default:
		return log.Leveled(slog.LevelInfo)
	}
}
