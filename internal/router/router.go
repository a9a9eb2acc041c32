// Package router executes generation requests against an ordered chain of
// tiers with per-attempt timeouts, circuit breaking, and response caching.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/telemetry"
	"github.com/akaclinicalco/jtskb/internal/tier"
)

// Result is the outcome of a routed query.
type Result struct {
	Answer string
	Tier   string
	Cached bool
}

// Config tunes the router.
type Config struct {
	// AttemptTimeout bounds each individual tier attempt.
	AttemptTimeout time.Duration

	// Concurrency caps in-flight generations across all callers. Zero
	// means no cap.
	Concurrency int

	CacheCapacity int
	CacheTTL      time.Duration
}

// Router tries tiers strictly in priority order. A tier whose breaker is
// open is skipped without an attempt; the first success wins and later
// tiers are never touched.
type Router struct {
	tiers    []tier.Generator
	order    []string
	breakers map[string]*gobreaker.CircuitBreaker
	cache    *Cache
	timeout  time.Duration
	sem      chan struct{}
}

// New creates a router over the given tiers, which must already be in
// priority order.
func New(tiers []tier.Generator, cfg Config) (*Router, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("router: at least one tier is required")
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	r := &Router{
		tiers:    tiers,
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(tiers)),
		cache:    NewCache(cfg.CacheCapacity, cfg.CacheTTL),
		timeout:  cfg.AttemptTimeout,
	}
	if cfg.Concurrency > 0 {
		r.sem = make(chan struct{}, cfg.Concurrency)
	}
	for _, t := range tiers {
		r.order = append(r.order, t.Name())
		r.breakers[t.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    t.Name(),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("tier %s breaker %s -> %s", name, from, to)
			},
		})
	}
	return r, nil
}

// Execute answers the query context through the tier chain. On a cache hit
// no tier is attempted. On total failure the error wraps ErrExhausted and
// nothing is cached.
func (r *Router) Execute(ctx context.Context, qc domain.QueryContext, req domain.GenerationRequest) (Result, error) {
	key := Key(qc, r.order)
	ctx, span := telemetry.StartSpan(ctx, "Router.Execute", telemetry.SpanAttributes{
		QueryHash: key[:12],
		Operation: "execute",
	})
	defer span.End()

	if answer, ok := r.cache.Get(key); ok {
		log.Printf("query %.12s: cache hit", key)
		return Result{Answer: answer, Tier: "cache", Cached: true}, nil
	}

	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	var lastErr error
	for _, t := range r.orderedTiers(req.TierHint) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		answer, err := r.attempt(ctx, t, req)
		if err != nil {
			lastErr = err
			log.Printf("query %.12s: tier %s failed: %v", key, t.Name(), err)
			continue
		}

		r.cache.Set(key, answer)
		log.Printf("query %.12s: answered by tier %s", key, t.Name())
		return Result{Answer: answer, Tier: t.Name()}, nil
	}

	err := domain.NewDomainErrorWithCause(domain.ErrCodeExhausted, "all generation tiers failed", lastErr)
	span.SetError(err)
	return Result{}, err
}

// Cached probes the cache without attempting any tier. Used when the
// pipeline upstream of generation failed but a previous answer to the same
// question may still be servable.
func (r *Router) Cached(qc domain.QueryContext) (Result, bool) {
	if answer, ok := r.cache.Get(Key(qc, r.order)); ok {
		return Result{Answer: answer, Tier: "cache", Cached: true}, true
	}
	return Result{}, false
}

// orderedTiers returns the attempt order, honoring a tier hint by moving
// the named tier to the front. An unknown hint is ignored.
func (r *Router) orderedTiers(hint string) []tier.Generator {
	if hint == "" {
		return r.tiers
	}
	ordered := make([]tier.Generator, 0, len(r.tiers))
	for _, t := range r.tiers {
		if t.Name() == hint {
			ordered = append([]tier.Generator{t}, ordered...)
			continue
		}
		ordered = append(ordered, t)
	}
	return ordered
}

// attempt runs one tier under the attempt timeout and its breaker, mapping
// failures into the tier error taxonomy.
func (r *Router) attempt(ctx context.Context, t tier.Generator, req domain.GenerationRequest) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Router.Attempt", telemetry.SpanAttributes{
		Tier:      t.Name(),
		Operation: "generate",
	})
	defer span.End()

	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out, err := r.breakers[t.Name()].Execute(func() (interface{}, error) {
		if err := t.Healthy(attemptCtx); err != nil {
			return nil, fmt.Errorf("unhealthy: %w", err)
		}
		return t.Generate(attemptCtx, req)
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeTierTimeout,
				fmt.Sprintf("tier %s timed out after %s", t.Name(), elapsed.Round(time.Millisecond)), err)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeTierUnavailable,
				fmt.Sprintf("tier %s circuit open", t.Name()), err)
		}
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeTierUnavailable,
			fmt.Sprintf("tier %s failed", t.Name()), err)
	}
	return out.(string), nil
}
