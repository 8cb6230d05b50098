package cache

import "github.com/prometheus/client_golang/prometheus"

// Metric label values.
const (
	TierMemory  = "memory"
	TierDurable = "durable"

	ResultHit   = "hit"
	ResultStale = "stale"
	ResultMiss  = "miss"
	ResultError = "error"

	OpRead  = "read"
	OpWrite = "write"
)

// Metrics counts snapshot lookups per tier and durable store failures.
type Metrics struct {
	lookups     *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "togglguard",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Snapshot lookups by tier and result.",
		}, []string{"tier", "result"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "togglguard",
			Subsystem: "cache",
			Name:      "durable_errors_total",
			Help:      "Durable snapshot store failures that were absorbed by the cache.",
		}, []string{"op"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.lookups, m.storeErrors} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) recordLookup(tier, result string) {
	m.lookups.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) recordStoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}
