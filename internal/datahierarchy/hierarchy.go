// Package datahierarchy implements the hybrid data-access layer (C2): an
// ordered multi-tier get/put with per-tier circuit breakers, a bounded
// connection-pool gate, and deterministic (non-probabilistic) tier
// selection.
package datahierarchy

import (
	"context"
	"sync"
	"time"

	"github.com/edgearb/edge/internal/apperr"
	"github.com/edgearb/edge/internal/chaos"
	"github.com/rs/zerolog"
)

// Hierarchy fans a get/put over tiers in priority order, stopping reads at
// the first populated hit and best-effort writing to every writable tier.
type Hierarchy struct {
	mu    sync.RWMutex
	tiers []Tier

	breakers map[string]*CircuitBreaker
	metrics  map[string]*TierMetrics
	gate     *Gate

	fallbackEnabled bool
	callTimeout     time.Duration
	gateTimeout     time.Duration

	chaosHarness *chaos.Harness
	logger       zerolog.Logger
}

// Option configures a Hierarchy at construction time.
type Option func(*Hierarchy)

// WithChaos attaches a fault-injection harness consulted before every call.
func WithChaos(h *chaos.Harness) Option {
	return func(hi *Hierarchy) { hi.chaosHarness = h }
}

// WithFallbackDisabled makes a tier failure propagate immediately instead
// of falling through to the next tier.
func WithFallbackDisabled() Option {
	return func(hi *Hierarchy) { hi.fallbackEnabled = false }
}

// New builds a Hierarchy over the given tiers, highest priority first.
func New(tiers []Tier, failureThreshold int, openDuration time.Duration, maxProbes, gateLimit int, logger zerolog.Logger, opts ...Option) *Hierarchy {
	h := &Hierarchy{
		tiers:           tiers,
		breakers:        make(map[string]*CircuitBreaker),
		metrics:         make(map[string]*TierMetrics),
		gate:            NewGate(gateLimit),
		fallbackEnabled: true,
		callTimeout:     30 * time.Second,
		gateTimeout:     1 * time.Second,
		logger:          logger.With().Str("component", "data-hierarchy").Logger(),
	}
	for _, t := range tiers {
		h.breakers[t.Name()] = NewCircuitBreaker(failureThreshold, openDuration, maxProbes)
		h.metrics[t.Name()] = &TierMetrics{}
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Get reads key through the tier chain, stopping at the first hit and
// back-filling higher-priority writable tiers on the way out.
func (h *Hierarchy) Get(ctx context.Context, key string) ([]byte, bool, error) {
	h.mu.RLock()
	tiers := h.tiers
	h.mu.RUnlock()

	var lastErr error
	for i, tier := range tiers {
		name := tier.Name()
		breaker := h.breakers[name]

		if h.chaosHarness != nil {
			if inj := h.chaosHarness.Before(name, "get", key); inj != nil {
				h.metrics[name].recordFailure()
				lastErr = inj
				if !h.fallbackEnabled {
					return nil, false, inj
				}
				continue
			}
		}

		if !breaker.Allow() {
			continue // bypassed — tier.attempts unchanged (S3)
		}

		if !h.gate.Acquire(name, h.gateTimeout) {
			breaker.RecordFailure("gate timeout")
			h.metrics[name].recordFailure()
			lastErr = apperr.New(apperr.KindStorage, "connection pool exhausted for tier "+name)
			continue
		}

		start := time.Now()
		tctx, cancel := context.WithTimeout(ctx, h.callTimeout)
		val, found, err := tier.Get(tctx, key)
		cancel()
		latency := time.Since(start)
		h.gate.Release(name)

		if err != nil {
			breaker.RecordFailure(err.Error())
			h.metrics[name].recordFailure()
			lastErr = apperr.Wrap(apperr.KindStorage, "tier "+name+" get failed", err)
			if !h.fallbackEnabled {
				return nil, false, lastErr
			}
			continue
		}

		breaker.RecordSuccess()
		h.metrics[name].recordSuccess(latency)

		if !found {
			continue
		}

		h.backfill(ctx, tiers[:i], key, val)
		return val, true, nil
	}

	if lastErr != nil && !h.fallbackEnabled {
		return nil, false, lastErr
	}
	return nil, false, nil
}

// backfill writes a found value to every writable, higher-priority tier
// (best-effort; failures are not fatal).
func (h *Hierarchy) backfill(ctx context.Context, higher []Tier, key string, val []byte) {
	for _, t := range higher {
		if !t.Writable() {
			continue
		}
		_ = t.Put(ctx, key, val, 0)
	}
}

// Put best-effort writes every writable tier whose breaker admits the call
// and whose gate slot is acquired; read-only tiers such as the upstream API
// are skipped. A tier with an open breaker or an exhausted gate, the cache
// tier included, is skipped without a write attempt. Put returns an error
// only when no tier was written and at least one write failed.
func (h *Hierarchy) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	h.mu.RLock()
	tiers := h.tiers
	h.mu.RUnlock()

	var firstErr error
	wrote := false
	for _, tier := range tiers {
		if !tier.Writable() {
			continue
		}
		name := tier.Name()
		breaker := h.breakers[name]
		if !breaker.Allow() {
			continue
		}
		if !h.gate.Acquire(name, h.gateTimeout) {
			continue
		}
		start := time.Now()
		err := tier.Put(ctx, key, value, ttl)
		latency := time.Since(start)
		h.gate.Release(name)

		if err != nil {
			breaker.RecordFailure(err.Error())
			h.metrics[name].recordFailure()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		breaker.RecordSuccess()
		h.metrics[name].recordSuccess(latency)
		wrote = true
	}
	if !wrote && firstErr != nil {
		return apperr.Wrap(apperr.KindStorage, "all writable tiers failed", firstErr)
	}
	return nil
}

// TierState reports the breaker state and metrics of a tier, for dashboards
// and tests (S3).
func (h *Hierarchy) TierState(name string) (BreakerState, *TierMetrics, bool) {
	b, ok := h.breakers[name]
	if !ok {
		return "", nil, false
	}
	return b.State(), h.metrics[name], true
}
