package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/redactor/internal/config"
	"github.com/raaihank/redactor/internal/workspace"
)

func TestRateLimiterPerClient(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 60, Burst: 2})
	clock := time.Now()
	limiter.now = func() time.Time { return clock }

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"), "buckets are per client")

	clock = clock.Add(time.Second)
	assert.True(t, limiter.Allow("a"), "one token per second refills")
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: false, RequestsPerMin: 1, Burst: 1})
	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Allow("a"))
	}
	assert.Zero(t, limiter.Clients())
}

func TestCleanupOldBuckets(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 60, Burst: 1})
	clock := time.Now()
	limiter.now = func() time.Time { return clock }

	limiter.Allow("old")
	clock = clock.Add(2 * time.Hour)
	limiter.Allow("new")

	limiter.CleanupOldBuckets(time.Hour)
	assert.Equal(t, 1, limiter.Clients())
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.3")
	assert.Equal(t, "203.0.113.7", getClientIP(r))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(2, func() *workspace.Workspace {
		return workspace.New(&gatedAnonymizer{})
	})

	a, err := reg.Create()
	assert.NoError(t, err)
	_, err = reg.Create()
	assert.NoError(t, err)
	_, err = reg.Create()
	assert.ErrorIs(t, err, ErrTooManyWorkspaces)

	state, ok := reg.Snapshot(a.ID())
	assert.True(t, ok)
	assert.Equal(t, a.ID(), state.ID)

	assert.True(t, reg.Remove(a.ID()))
	assert.False(t, reg.Remove(a.ID()))
	_, ok = reg.Snapshot(a.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())

	reg.CloseAll()
	assert.Zero(t, reg.Len())
}

func TestRegistryExpireIdle(t *testing.T) {
	anon := &gatedAnonymizer{gate: make(chan struct{})}
	reg := NewRegistry(0, func() *workspace.Workspace { return workspace.New(anon) })
	clock := time.Now()
	reg.now = func() time.Time { return clock }

	idle, _ := reg.Create()
	busy, _ := reg.Create()
	watched, _ := reg.Create()
	recent, _ := reg.Create()

	busy.SetText("John Smith")
	submitted := make(chan workspace.State)
	go func() {
		state, _ := busy.Submit(context.Background())
		submitted <- state
	}()
	require.Eventually(t, func() bool {
		return busy.State().Status == workspace.StatusInFlight
	}, 2*time.Second, 5*time.Millisecond)

	clock = clock.Add(time.Hour)
	_, ok := reg.Get(recent.ID())
	require.True(t, ok)

	expired := reg.ExpireIdle(time.Minute, func(id string) bool { return id == watched.ID() })
	assert.Equal(t, []string{idle.ID()}, expired)
	assert.Equal(t, 3, reg.Len())

	_, err := idle.Submit(context.Background())
	assert.ErrorIs(t, err, workspace.ErrClosed, "expired workspaces are torn down")

	close(anon.gate)
	assert.Equal(t, workspace.StatusSucceeded, (<-submitted).Status)
}
