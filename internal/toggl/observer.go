package toggl

import (
	"context"

	"cdr.dev/slog"
	"github.com/prometheus/client_golang/prometheus"
)

// CallEvent records metadata about a single Toggl request.
type CallEvent struct {
	Endpoint   string
	StatusCode int
	LatencyMs  int64
	Success    bool
	ErrorKind  string
}

// Observer receives events about Toggl calls for logging and metrics.
type Observer interface {
	OnCallComplete(ctx context.Context, event CallEvent)
}

// LogObserver writes call events to a structured logger.
type LogObserver struct {
	log slog.Logger
}

// NewLogObserver creates an Observer that logs events to log.
func NewLogObserver(log slog.Logger) *LogObserver {
	return &LogObserver{log: log.Named("toggl")}
}

func (o *LogObserver) OnCallComplete(ctx context.Context, event CallEvent) {
	fields := []any{
		slog.F("endpoint", event.Endpoint),
		slog.F("status", event.StatusCode),
		slog.F("latency_ms", event.LatencyMs),
	}
	if event.Success {
		o.log.Debug(ctx, "toggl call", fields...)
		return
	}
	o.log.Warn(ctx, "toggl call failed", append(fields, slog.F("kind", event.ErrorKind))...)
}

// MetricsObserver exports call counts and latencies to prometheus.
type MetricsObserver struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "togglguard",
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Toggl API calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "togglguard",
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Latency of Toggl API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{o.calls, o.latency} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

func (o *MetricsObserver) OnCallComplete(_ context.Context, event CallEvent) {
	outcome := "ok"
	if !event.Success {
		outcome = event.ErrorKind
	}
	o.calls.WithLabelValues(event.Endpoint, outcome).Inc()
	o.latency.WithLabelValues(event.Endpoint).Observe(float64(event.LatencyMs) / 1000)
}

// Observers fans an event out to several observers.
type Observers []Observer

func (obs Observers) OnCallComplete(ctx context.Context, event CallEvent) {
	for _, o := range obs {
		o.OnCallComplete(ctx, event)
	}
}

// NoopObserver discards all events. Useful for tests.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(context.Context, CallEvent) {}
