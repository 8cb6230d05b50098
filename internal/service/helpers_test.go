package service

import (
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alexanderramin/togglguard/internal/cache"
	"github.com/alexanderramin/togglguard/internal/fetch"
	"github.com/alexanderramin/togglguard/internal/testutil"
	"github.com/alexanderramin/togglguard/internal/toggl/togglmock"
)

type upstreamFixture struct {
	upstream *togglmock.MockClient
	orch     *fetch.Orchestrator
	clock    *quartz.Mock
}

func newUpstreamFixture(t *testing.T) *upstreamFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := quartz.NewMock(t)
	clock.Set(testutil.Epoch)
	log := testutil.Logger(t)
	orch, err := fetch.New(fetch.Options{
		Cache:  cache.New(cache.Options{Clock: clock, Logger: log}),
		Clock:  clock,
		Logger: log,
	})
	require.NoError(t, err)
	return &upstreamFixture{upstream: togglmock.NewMockClient(ctrl), orch: orch, clock: clock}
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }
