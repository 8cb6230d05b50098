// Package fetch wraps upstream reads in the cache-first degradation policy:
// without an explicit refresh the upstream is never contacted, and once any
// snapshot exists an upstream failure falls back to it.
package fetch

import (
	"context"
	"encoding/json"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/alexanderramin/togglguard/internal/cache"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

// Outcome label values.
const (
	OutcomeFresh      = "fresh"
	OutcomeStale      = "stale"
	OutcomeEmpty      = "empty"
	OutcomeRefreshed  = "refreshed"
	OutcomeFallback   = "fallback"
	OutcomePropagated = "propagated"
)

const (
	// DefaultFetchTimeout bounds a shared refresh once it is detached from
	// the callers waiting on it.
	DefaultFetchTimeout = 15 * time.Second
	// storeTimeout bounds cache reads and writes made after the caller's
	// context may already be done.
	storeTimeout = 2 * time.Second
)

// Orchestrator serves cached views and coordinates refreshes.
type Orchestrator struct {
	cache        *cache.Cache
	clock        quartz.Clock
	log          slog.Logger
	fetchTimeout time.Duration
	group        singleflight.Group
	outcomes     *prometheus.CounterVec
}

// Options configures an Orchestrator.
type Options struct {
	Cache        *cache.Cache
	Clock        quartz.Clock
	Logger       slog.Logger
	Registerer   prometheus.Registerer
	FetchTimeout time.Duration
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	o := &Orchestrator{
		cache:        opts.Cache,
		clock:        opts.Clock,
		log:          opts.Logger.Named("fetch"),
		fetchTimeout: opts.FetchTimeout,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "togglguard",
			Subsystem: "fetch",
			Name:      "outcomes_total",
			Help:      "Views served by outcome.",
		}, []string{"outcome"}),
	}
	if opts.Registerer != nil {
		if err := opts.Registerer.Register(o.outcomes); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Request describes one cached view.
type Request[T any] struct {
	Key     string
	Refresh bool
	TTL     time.Duration
	// Subject names the data in warnings, e.g. "7-day snapshot".
	Subject string
	// Fetch computes a new payload from the upstream.
	Fetch func(ctx context.Context) (T, error)
	// Empty builds the zeroed payload served when nothing is cached.
	Empty func() T
}

// View is a payload plus the freshness metadata shown to the caller.
type View[T any] struct {
	Payload        T
	Stale          bool
	Warning        string
	QuotaRemaining string
	QuotaResetsIn  string
	RetryAfter     string
	CachedAt       time.Time
}

type refreshed struct {
	payload  any
	cachedAt time.Time
}

// Load serves req. Without Refresh it answers from the cache alone. With
// Refresh it calls Fetch, coalescing concurrent refreshes of the same key,
// and falls back to any cached snapshot on failure. When no snapshot exists
// the *toggl.UpstreamError is returned.
func Load[T any](ctx context.Context, o *Orchestrator, req Request[T]) (*View[T], error) {
	subject := req.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	if !req.Refresh {
		if v, ok := cached[T](ctx, o, req.Key, true); ok {
			o.outcomes.WithLabelValues(OutcomeFresh).Inc()
			return v, nil
		}
		if v, ok := cached[T](ctx, o, req.Key, false); ok {
			v.Stale = true
			v.Warning = staleWarning(subject)
			o.outcomes.WithLabelValues(OutcomeStale).Inc()
			return v, nil
		}
		o.outcomes.WithLabelValues(OutcomeEmpty).Inc()
		return &View[T]{
			Payload:  req.Empty(),
			Stale:    true,
			Warning:  emptyWarning(subject),
			CachedAt: o.clock.Now().UTC(),
		}, nil
	}

	// The flight outlives any single caller: one client going away must not
	// fail the others waiting on the same key.
	ch := o.group.DoChan(req.Key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.fetchTimeout)
		defer cancel()
		payload, err := req.Fetch(fctx)
		if err != nil {
			return nil, err
		}
		cachedAt := o.clock.Now().UTC()
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer scancel()
		snap, err := o.cache.Set(sctx, req.Key, payload, req.TTL)
		if err != nil {
			o.log.Error(ctx, "snapshot not cached", slog.F("key", req.Key), slog.Error(err))
		} else {
			cachedAt = snap.CreatedAt
		}
		return refreshed{payload: payload, cachedAt: cachedAt}, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			r := res.Val.(refreshed)
			o.outcomes.WithLabelValues(OutcomeRefreshed).Inc()
			if res.Shared {
				o.log.Debug(ctx, "refresh coalesced", slog.F("key", req.Key))
			}
			return &View[T]{Payload: r.payload.(T), CachedAt: r.cachedAt}, nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	// The fallback read runs even when ctx is done, so a durable-only
	// snapshot is still served after a timeout.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	ue := toggl.AsUpstreamError(err)
	v, ok := cached[T](fctx, o, req.Key, false)
	if !ok {
		o.outcomes.WithLabelValues(OutcomePropagated).Inc()
		o.log.Warn(ctx, "refresh failed without fallback",
			slog.F("key", req.Key), slog.F("kind", ue.Kind.String()), slog.Error(err))
		return nil, ue
	}

	o.outcomes.WithLabelValues(OutcomeFallback).Inc()
	o.log.Info(ctx, "refresh failed, serving cached snapshot",
		slog.F("key", req.Key), slog.F("kind", ue.Kind.String()))
	v.Stale = true
	switch ue.Kind {
	case toggl.RateLimited:
		v.Warning = rateLimitedWarning(subject)
		v.RetryAfter = ue.RetryAfter
		v.QuotaRemaining = ue.QuotaRemaining
		v.QuotaResetsIn = ue.QuotaResetsIn
	case toggl.QuotaExhausted:
		v.Warning = quotaWarning(subject)
		v.QuotaRemaining = ue.QuotaRemaining
		v.QuotaResetsIn = ue.QuotaResetsIn
	default:
		v.Warning = unavailableWarning(subject)
	}
	return v, nil
}

// cached decodes the snapshot under key. Undecodable payloads are a miss.
func cached[T any](ctx context.Context, o *Orchestrator, key string, freshOnly bool) (*View[T], bool) {
	snap, ok := o.cache.Get(ctx, key, freshOnly)
	if !ok {
		return nil, false
	}
	var payload T
	if err := json.Unmarshal(snap.Payload, &payload); err != nil {
		o.log.Warn(ctx, "discarding undecodable snapshot", slog.F("key", key), slog.Error(err))
		return nil, false
	}
	return &View[T]{Payload: payload, CachedAt: snap.CreatedAt}, true
}
