package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/togglguard/internal/cache"
	"github.com/alexanderramin/togglguard/internal/repository"
	"github.com/alexanderramin/togglguard/internal/testutil"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

type dayView struct {
	Date         string   `json:"date"`
	Entries      []string `json:"entries"`
	TotalSeconds int64    `json:"totalSeconds"`
}

type harness struct {
	orch  *Orchestrator
	clock *quartz.Mock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(testutil.Epoch)
	log := testutil.Logger(t)
	c := cache.New(cache.Options{Clock: clock, Logger: log})
	orch, err := New(Options{Cache: c, Clock: clock, Logger: log})
	require.NoError(t, err)
	return &harness{orch: orch, clock: clock}
}

func request(refresh bool, fetch func(context.Context) (dayView, error)) Request[dayView] {
	return Request[dayView]{
		Key:     "entries::ana::2024-05-01",
		Refresh: refresh,
		TTL:     10 * time.Minute,
		Fetch:   fetch,
		Empty: func() dayView {
			return dayView{Date: "2024-05-01", Entries: []string{}}
		},
	}
}

func succeed(v dayView) func(context.Context) (dayView, error) {
	return func(context.Context) (dayView, error) { return v, nil }
}

func fail(err error) func(context.Context) (dayView, error) {
	return func(context.Context) (dayView, error) { return dayView{}, err }
}

func mustNotFetch(t *testing.T) func(context.Context) (dayView, error) {
	return func(context.Context) (dayView, error) {
		t.Fatal("upstream must not be contacted without refresh")
		return dayView{}, nil
	}
}

var loaded = dayView{Date: "2024-05-01", Entries: []string{"a", "b"}, TotalSeconds: 3600}

func TestLoad_EmptyWithoutRefresh(t *testing.T) {
	h := newHarness(t)

	v, err := Load(context.Background(), h.orch, request(false, mustNotFetch(t)))
	require.NoError(t, err)
	assert.True(t, v.Stale)
	assert.Equal(t, "No cached snapshot yet. Click Refresh view to load data.", v.Warning)
	assert.Empty(t, v.Payload.Entries)
	assert.NotNil(t, v.Payload.Entries)
}

func TestLoad_RefreshThenFresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := Load(ctx, h.orch, request(true, succeed(loaded)))
	require.NoError(t, err)
	assert.False(t, v.Stale)
	assert.Empty(t, v.Warning)
	assert.Equal(t, loaded, v.Payload)
	assert.True(t, v.CachedAt.Equal(testutil.Epoch))

	h.clock.Advance(5 * time.Minute)
	again, err := Load(ctx, h.orch, request(false, mustNotFetch(t)))
	require.NoError(t, err)
	assert.False(t, again.Stale)
	assert.Empty(t, again.Warning)
	assert.Equal(t, loaded, again.Payload)
	assert.True(t, again.CachedAt.Equal(testutil.Epoch))
}

func TestLoad_StaleWithoutRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := Load(ctx, h.orch, request(true, succeed(loaded)))
	require.NoError(t, err)
	h.clock.Advance(11 * time.Minute)

	v, err := Load(ctx, h.orch, request(false, mustNotFetch(t)))
	require.NoError(t, err)
	assert.True(t, v.Stale)
	assert.Equal(t, "Showing last cached snapshot. Click Refresh view to fetch newer data.", v.Warning)
	assert.Equal(t, loaded, v.Payload)
}

func TestLoad_FallbackOnUpstreamFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     *toggl.UpstreamError
		warning string
		check   func(t *testing.T, v *View[dayView])
	}{
		{
			name:    "rate limited",
			err:     &toggl.UpstreamError{Kind: toggl.RateLimited, StatusCode: 429, RetryAfter: "30"},
			warning: "Rate limited. Showing last cached snapshot.",
			check: func(t *testing.T, v *View[dayView]) {
				assert.Equal(t, "30", v.RetryAfter)
			},
		},
		{
			name:    "quota exhausted",
			err:     &toggl.UpstreamError{Kind: toggl.QuotaExhausted, StatusCode: 402, QuotaRemaining: "0", QuotaResetsIn: "1200"},
			warning: "Quota reached. Showing last cached snapshot. Try Refresh view after reset.",
			check: func(t *testing.T, v *View[dayView]) {
				assert.Equal(t, "0", v.QuotaRemaining)
				assert.Equal(t, "1200", v.QuotaResetsIn)
				assert.Empty(t, v.RetryAfter)
			},
		},
		{
			name:    "hard failure",
			err:     &toggl.UpstreamError{Kind: toggl.HardFailure, StatusCode: 503},
			warning: "Toggl is unavailable. Showing last cached snapshot.",
			check:   func(t *testing.T, v *View[dayView]) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			_, err := Load(ctx, h.orch, request(true, succeed(loaded)))
			require.NoError(t, err)
			h.clock.Advance(time.Hour)

			v, err := Load(ctx, h.orch, request(true, fail(tt.err)))
			require.NoError(t, err)
			assert.True(t, v.Stale)
			assert.Equal(t, tt.warning, v.Warning)
			assert.Equal(t, loaded, v.Payload)
			assert.True(t, v.CachedAt.Equal(testutil.Epoch))
			tt.check(t, v)
		})
	}
}

func TestLoad_PropagatesWithoutSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"hard failure with status", &toggl.UpstreamError{Kind: toggl.HardFailure, StatusCode: 503}, http.StatusServiceUnavailable},
		{"hard failure without status", &toggl.UpstreamError{Kind: toggl.HardFailure}, http.StatusBadGateway},
		{"rate limited", &toggl.UpstreamError{Kind: toggl.RateLimited, StatusCode: 429, RetryAfter: "5"}, http.StatusTooManyRequests},
		{"quota", &toggl.UpstreamError{Kind: toggl.QuotaExhausted, StatusCode: 402}, http.StatusPaymentRequired},
		{"plain error", errors.New("dial tcp: refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			v, err := Load(context.Background(), h.orch, request(true, fail(tt.err)))
			assert.Nil(t, v)
			var ue *toggl.UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tt.status, ue.HTTPStatus())
		})
	}
}

func TestLoad_PropagatedRateLimitCarriesRetryAfter(t *testing.T) {
	h := newHarness(t)

	_, err := Load(context.Background(), h.orch,
		request(true, fail(&toggl.UpstreamError{Kind: toggl.RateLimited, StatusCode: 429, RetryAfter: "12"})))
	var ue *toggl.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "12", ue.RetryAfter)
}

func TestLoad_CustomSubject(t *testing.T) {
	h := newHarness(t)
	req := request(false, mustNotFetch(t))
	req.Subject = "7-day snapshot"

	v, err := Load(context.Background(), h.orch, req)
	require.NoError(t, err)
	assert.Equal(t, "No cached 7-day snapshot yet. Click Refresh view to load data.", v.Warning)
}

func TestLoad_ConcurrentRefreshesCoalesce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (dayView, error) {
		calls.Add(1)
		<-release
		return loaded, nil
	}

	const n = 5
	var wg sync.WaitGroup
	views := make([]*View[dayView], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Load(ctx, h.orch, request(true, fetch))
			assert.NoError(t, err)
			views[i] = v
		}(i)
	}
	// Let the goroutines reach the flight before releasing it.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range views {
		require.NotNil(t, v)
		assert.Equal(t, loaded, v.Payload)
	}
}

func TestLoad_DeadlineFallsBackToDurableSnapshot(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(testutil.Epoch)
	log := testutil.Logger(t)
	durable := repository.NewSQLiteSnapshotRepo(testutil.NewTestDB(t))

	// Another instance wrote the snapshot; this one starts with empty memory.
	writer := cache.New(cache.Options{Durable: durable, Clock: clock, Logger: log})
	_, err := writer.Set(context.Background(), "entries::ana::2024-05-01", loaded, time.Minute)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	orch, err := New(Options{
		Cache:        cache.New(cache.Options{Durable: durable, Clock: clock, Logger: log}),
		Clock:        clock,
		Logger:       log,
		FetchTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	var finished atomic.Bool
	hang := func(ctx context.Context) (dayView, error) {
		defer finished.Store(true)
		<-ctx.Done()
		return dayView{}, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	v, err := Load(ctx, orch, request(true, hang))
	require.NoError(t, err)
	assert.True(t, v.Stale)
	assert.Equal(t, "Toggl is unavailable. Showing last cached snapshot.", v.Warning)
	assert.Equal(t, loaded, v.Payload)
	assert.True(t, v.CachedAt.Equal(testutil.Epoch))

	require.Eventually(t, finished.Load, time.Second, 5*time.Millisecond)
}

func TestLoad_CancelledCallerDoesNotFailOthers(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (dayView, error) {
		calls.Add(1)
		select {
		case <-release:
			return loaded, nil
		case <-ctx.Done():
			return dayView{}, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := Load(firstCtx, h.orch, request(true, fetch))
		first <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		view *View[dayView]
		err  error
	}
	second := make(chan result, 1)
	go func() {
		v, err := Load(context.Background(), h.orch, request(true, fetch))
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	var ue *toggl.UpstreamError
	require.ErrorAs(t, <-first, &ue)
	assert.Equal(t, toggl.HardFailure, ue.Kind)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.False(t, res.view.Stale)
	assert.Equal(t, loaded, res.view.Payload)
	assert.Equal(t, int32(1), calls.Load())
}
