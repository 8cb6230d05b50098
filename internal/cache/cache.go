// Package cache implements the two-tier snapshot cache: an in-process map in
// front of a durable snapshot store shared by every instance.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/repository"
)

// Options configures a Cache. Durable may be nil, in which case the cache is
// memory-only.
type Options struct {
	Durable repository.SnapshotRepo
	Clock   quartz.Clock
	Logger  slog.Logger
	Metrics *Metrics
}

// Cache is safe for concurrent use. Writes to the same key are
// last-write-wins.
type Cache struct {
	durable repository.SnapshotRepo
	clock   quartz.Clock
	log     slog.Logger
	metrics *Metrics

	mu  sync.Mutex
	mem map[string]domain.Snapshot
}

// New creates a Cache. A nil Clock uses the real clock and nil Metrics are
// created unregistered.
func New(opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Metrics == nil {
		opts.Metrics, _ = NewMetrics(nil)
	}
	return &Cache{
		durable: opts.Durable,
		clock:   opts.Clock,
		log:     opts.Logger.Named("cache"),
		metrics: opts.Metrics,
		mem:     make(map[string]domain.Snapshot),
	}
}

// Get returns the snapshot stored under key. With freshOnly set, a snapshot
// past its expiry is reported as absent. The in-process tier is consulted
// first; a durable hit repopulates it. Durable failures count as a miss.
func (c *Cache) Get(ctx context.Context, key string, freshOnly bool) (*domain.Snapshot, bool) {
	now := c.clock.Now()

	c.mu.Lock()
	s, ok := c.mem[key]
	c.mu.Unlock()
	if ok && (!freshOnly || s.Fresh(now)) {
		c.metrics.recordLookup(TierMemory, lookupResult(&s, now))
		return &s, true
	}
	c.metrics.recordLookup(TierMemory, ResultMiss)

	if c.durable == nil {
		return nil, false
	}

	stored, err := c.durable.GetLatest(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.metrics.recordLookup(TierDurable, ResultMiss)
		} else {
			c.metrics.recordLookup(TierDurable, ResultError)
			c.metrics.recordStoreError(OpRead)
			c.log.Warn(ctx, "durable snapshot read failed", slog.F("key", key), slog.Error(err))
		}
		return nil, false
	}

	c.remember(*stored)
	if freshOnly && !stored.Fresh(now) {
		c.metrics.recordLookup(TierDurable, ResultStale)
		return nil, false
	}
	c.metrics.recordLookup(TierDurable, lookupResult(stored, now))
	return stored, true
}

// Set stores payload under key for ttl. The in-process write always
// succeeds; a durable write failure is logged and swallowed. The returned
// snapshot carries the encoded payload and timestamps.
func (c *Cache) Set(ctx context.Context, key string, payload any, ttl time.Duration) (*domain.Snapshot, error) {
	raw, err := encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot %q: %w", key, err)
	}
	now := c.clock.Now().UTC()
	s := domain.Snapshot{
		Key:       key,
		Payload:   raw,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	c.mem[key] = s
	c.mu.Unlock()

	if c.durable != nil {
		if err := c.durable.Upsert(ctx, &s); err != nil {
			c.metrics.recordStoreError(OpWrite)
			c.log.Warn(ctx, "durable snapshot write failed", slog.F("key", key), slog.Error(err))
		}
	}
	return &s, nil
}

// remember keeps the newer of the in-memory and the given snapshot.
func (c *Cache) remember(s domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.mem[s.Key]; ok && cur.CreatedAt.After(s.CreatedAt) {
		return
	}
	c.mem[s.Key] = s
}

func lookupResult(s *domain.Snapshot, now time.Time) string {
	if s.Fresh(now) {
		return ResultHit
	}
	return ResultStale
}

func encode(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return append(json.RawMessage(nil), p...), nil
	default:
		return json.Marshal(payload)
	}
}
