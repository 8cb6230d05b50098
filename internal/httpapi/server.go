package httpapi

import (
	"net/http"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexanderramin/togglguard/internal/idempotency"
	"github.com/alexanderramin/togglguard/internal/service"
)

// DefaultRequestTimeout bounds every request, including upstream calls.
const DefaultRequestTimeout = 15 * time.Second

// Options configures a Server. Metrics may be nil to leave /metrics
// unmounted; Registerer may be nil to skip request metrics registration.
type Options struct {
	Entries        service.EntriesService
	Team           service.TeamService
	Timers         service.TimerService
	Idempotency    *idempotency.Guard
	Clock          quartz.Clock
	Logger         slog.Logger
	Registerer     prometheus.Registerer
	Metrics        http.Handler
	RequestTimeout time.Duration
}

// Server holds the request handlers.
type Server struct {
	entries        service.EntriesService
	team           service.TeamService
	timers         service.TimerService
	idem           *idempotency.Guard
	clock          quartz.Clock
	log            slog.Logger
	metrics        http.Handler
	requests       *requestMetrics
	requestTimeout time.Duration
}

func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Server{
		entries:        opts.Entries,
		team:           opts.Team,
		timers:         opts.Timers,
		idem:           opts.Idempotency,
		clock:          opts.Clock,
		log:            opts.Logger.Named("httpapi"),
		metrics:        opts.Metrics,
		requests:       newRequestMetrics(opts.Registerer),
		requestTimeout: opts.RequestTimeout,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		instrument(s.log, s.clock, s.requests),
		recoverer(s.log),
	)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		Write(rw, http.StatusOK, map[string]bool{"ok": true})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))
		r.NotFound(func(rw http.ResponseWriter, _ *http.Request) {
			Write(rw, http.StatusNotFound, Response{Error: "Route not found."})
		})
		r.MethodNotAllowed(func(rw http.ResponseWriter, _ *http.Request) {
			Write(rw, http.StatusMethodNotAllowed, Response{Error: "Method not allowed."})
		})

		r.Get("/members", s.members)
		r.Get("/entries", s.dailyEntries)
		r.Get("/team", s.teamDay)
		r.Get("/team-week", s.teamWeek)
		r.Get("/ranking/daily", s.dailyRanking)

		r.Route("/time-entries", func(r chi.Router) {
			r.Get("/current", s.currentTimer)
			r.Patch("/current", s.patchCurrentTimer)
			r.Post("/start", s.startTimer)
			r.Post("/stop", s.stopTimer)
			r.Post("/update", s.updateEntry)
			r.Post("/delete", s.deleteEntry)
		})
	})
	return r
}
