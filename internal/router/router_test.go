package router

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/tier"
)

// fakeTier is a scriptable generation backend.
type fakeTier struct {
	name      string
	answer    string
	healthErr error
	genErr    error
	delay     time.Duration
	calls     atomic.Int32
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) Healthy(ctx context.Context) error { return f.healthErr }

func (f *fakeTier) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.answer, nil
}

func newRouter(t *testing.T, cfg Config, tiers ...tier.Generator) *Router {
	t.Helper()
	r, err := New(tiers, cfg)
	require.NoError(t, err)
	return r
}

func TestRouterExecute(t *testing.T) {
	qc := domain.QueryContext{RawQuery: "tension pneumothorax management"}
	req := domain.GenerationRequest{Prompt: "p", MaxTokens: 150, Temperature: 0.3}

	t.Run("first healthy tier wins and later tiers are not attempted", func(t *testing.T) {
		first := &fakeTier{name: "remote", answer: "needle decompression"}
		second := &fakeTier{name: "cloud", answer: "unused"}
		r := newRouter(t, Config{}, first, second)

		res, err := r.Execute(context.Background(), qc, req)
		require.NoError(t, err)
		assert.Equal(t, "needle decompression", res.Answer)
		assert.Equal(t, "remote", res.Tier)
		assert.False(t, res.Cached)
		assert.Equal(t, int32(0), second.calls.Load())
	})

	t.Run("failed tier falls back to the next", func(t *testing.T) {
		first := &fakeTier{name: "remote", genErr: errors.New("connection refused")}
		second := &fakeTier{name: "cloud", answer: "from cloud"}
		third := &fakeTier{name: "local", answer: "unused"}
		r := newRouter(t, Config{}, first, second, third)

		res, err := r.Execute(context.Background(), qc, req)
		require.NoError(t, err)
		assert.Equal(t, "from cloud", res.Answer)
		assert.Equal(t, "cloud", res.Tier)
		assert.Equal(t, int32(0), third.calls.Load())
	})

	t.Run("timed-out tier falls back to the next", func(t *testing.T) {
		slow := &fakeTier{name: "remote", answer: "too late", delay: time.Second}
		fast := &fakeTier{name: "cloud", answer: "in time"}
		r := newRouter(t, Config{AttemptTimeout: 50 * time.Millisecond}, slow, fast)

		res, err := r.Execute(context.Background(), qc, req)
		require.NoError(t, err)
		assert.Equal(t, "in time", res.Answer)
		assert.Equal(t, "cloud", res.Tier)
	})

	t.Run("unhealthy tier is skipped without generating", func(t *testing.T) {
		sick := &fakeTier{name: "remote", healthErr: errors.New("service down")}
		ok := &fakeTier{name: "local", answer: "local answer"}
		r := newRouter(t, Config{}, sick, ok)

		res, err := r.Execute(context.Background(), qc, req)
		require.NoError(t, err)
		assert.Equal(t, "local", res.Tier)
		assert.Equal(t, int32(0), sick.calls.Load())
	})

	t.Run("all tiers failing is exhaustion and nothing is cached", func(t *testing.T) {
		first := &fakeTier{name: "remote", genErr: errors.New("down")}
		second := &fakeTier{name: "local", genErr: errors.New("also down")}
		r := newRouter(t, Config{}, first, second)

		_, err := r.Execute(context.Background(), qc, req)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrExhausted)
		assert.Equal(t, 0, r.cache.Len())

		// A retry attempts the tiers again rather than serving a failure.
		_, err = r.Execute(context.Background(), qc, req)
		require.Error(t, err)
		assert.Equal(t, int32(2), first.calls.Load())
	})

	t.Run("timeout on a sole tier surfaces in the exhaustion cause", func(t *testing.T) {
		slow := &fakeTier{name: "remote", answer: "x", delay: time.Second}
		r := newRouter(t, Config{AttemptTimeout: 50 * time.Millisecond}, slow)

		_, err := r.Execute(context.Background(), qc, req)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrExhausted)
		assert.ErrorIs(t, err, domain.ErrTierTimeout)
	})

	t.Run("repeat query is served from cache", func(t *testing.T) {
		backend := &fakeTier{name: "remote", answer: "cached answer"}
		r := newRouter(t, Config{}, backend)

		first, err := r.Execute(context.Background(), qc, req)
		require.NoError(t, err)
		assert.False(t, first.Cached)

		second, err := r.Execute(context.Background(), qc, req)
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, "cache", second.Tier)
		assert.Equal(t, first.Answer, second.Answer)
		assert.Equal(t, int32(1), backend.calls.Load())
	})

	t.Run("reworded whitespace and casing still hit the cache", func(t *testing.T) {
		backend := &fakeTier{name: "remote", answer: "a"}
		r := newRouter(t, Config{}, backend)

		_, err := r.Execute(context.Background(), domain.QueryContext{RawQuery: "Needle  Decompression"}, req)
		require.NoError(t, err)
		res, err := r.Execute(context.Background(), domain.QueryContext{RawQuery: "needle decompression"}, req)
		require.NoError(t, err)
		assert.True(t, res.Cached)
	})

	t.Run("tier hint moves the named tier to the front", func(t *testing.T) {
		first := &fakeTier{name: "remote", answer: "remote answer"}
		preferred := &fakeTier{name: "local", answer: "local answer"}
		r := newRouter(t, Config{}, first, preferred)

		hinted := req
		hinted.TierHint = "local"
		res, err := r.Execute(context.Background(), qc, hinted)
		require.NoError(t, err)
		assert.Equal(t, "local", res.Tier)
		assert.Equal(t, int32(0), first.calls.Load())
	})

	t.Run("cancelled context aborts between attempts", func(t *testing.T) {
		backend := &fakeTier{name: "remote", answer: "x"}
		r := newRouter(t, Config{}, backend)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.Execute(ctx, qc, req)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(0), backend.calls.Load())
	})

	t.Run("breaker opens after consecutive failures", func(t *testing.T) {
		failing := &fakeTier{name: "remote", genErr: errors.New("down")}
		r := newRouter(t, Config{}, failing)

		for i := 0; i < 5; i++ {
			_, err := r.Execute(context.Background(), qc, req)
			require.Error(t, err)
		}
		// The breaker tripped after three consecutive failures, so later
		// attempts were rejected without touching the tier.
		assert.Equal(t, int32(3), failing.calls.Load())
	})

	t.Run("requires at least one tier", func(t *testing.T) {
		_, err := New(nil, Config{})
		assert.Error(t, err)
	})
}
