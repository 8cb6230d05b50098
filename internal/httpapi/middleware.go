package httpapi

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// requestMetrics counts served requests by route pattern.
type requestMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newRequestMetrics(reg prometheus.Registerer) *requestMetrics {
	m := &requestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "togglguard",
			Subsystem: "api",
			Name:      "requests_processed_total",
			Help:      "The total number of processed API requests.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "togglguard",
			Subsystem: "api",
			Name:      "request_latencies_seconds",
			Help:      "Latency distribution of requests in seconds.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15},
		}, []string{"method", "route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency)
	}
	return m
}

// instrument logs and measures every request. It must wrap the router so the
// matched route pattern is known once the handler returns.
func instrument(log slog.Logger, clock quartz.Clock, metrics *requestMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := clock.Now()
			ww := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			took := clock.Since(start)
			metrics.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.latency.WithLabelValues(r.Method, route).Observe(took.Seconds())

			if route == "/healthz" && status == http.StatusOK {
				return
			}
			fields := []any{
				slog.F("method", r.Method),
				slog.F("path", r.URL.Path),
				slog.F("status_code", status),
				slog.F("took", took.Round(time.Microsecond)),
				slog.F("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				log.Warn(r.Context(), "http request", fields...)
				return
			}
			log.Debug(r.Context(), "http request", fields...)
		})
	}
}

func recoverer(log slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					log.Warn(r.Context(), "panic serving http request (recovered)",
						slog.F("panic", p),
						slog.F("stack", string(debug.Stack())),
					)
					Write(rw, http.StatusInternalServerError, Response{Error: "Internal error."})
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

func errField(r *http.Request, err error) []any {
	return []any{
		slog.F("method", r.Method),
		slog.F("path", r.URL.Path),
		slog.F("request_id", middleware.GetReqID(r.Context())),
		slog.Error(err),
	}
}
