package datahierarchy

import (
	"context"
	"time"
)

// Tier is one fallback level of the hierarchy: stream (hot), cache (KV),
// relational (D1) or upstream API. Tiers are stateless from the
// hierarchy's perspective; any connection pooling lives inside the
// implementation.
type Tier interface {
	Name() string
	Writable() bool
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// FuncTier adapts plain functions into a Tier, used to wire C3/C7's stream
// and upstream-adapter calls without a dedicated type per caller.
type FuncTier struct {
	TierName   string
	CanWrite   bool
	GetFunc    func(ctx context.Context, key string) ([]byte, bool, error)
	PutFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (f *FuncTier) Name() string     { return f.TierName }
func (f *FuncTier) Writable() bool   { return f.CanWrite }

func (f *FuncTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.GetFunc == nil {
		return nil, false, nil
	}
	return f.GetFunc(ctx, key)
}

func (f *FuncTier) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.PutFunc == nil || !f.CanWrite {
		return nil
	}
	return f.PutFunc(ctx, key, value, ttl)
}

// TierMetrics is the per-tier record of §4.2: success/failure counts, last
// and rolling-average latency. Breaker state and last error are kept by the
// tier's CircuitBreaker and reported alongside these by Hierarchy.TierState.
type TierMetrics struct {
	SuccessCount  int64
	FailureCount  int64
	LastLatency   time.Duration
	avgLatencyMs  float64
	ewmaAlpha     float64
}

// SuccessRate returns (total-failed)/total, zero when there have been no calls.
func (m *TierMetrics) SuccessRate() float64 {
	total := m.SuccessCount + m.FailureCount
	if total == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(total)
}

// AverageLatencyMs returns the EWMA-smoothed average latency in milliseconds,
// the same smoothing the SLA balancer applies to provider latency.
func (m *TierMetrics) AverageLatencyMs() float64 { return m.avgLatencyMs }

func (m *TierMetrics) recordSuccess(latency time.Duration) {
	m.SuccessCount++
	m.LastLatency = latency
	ms := float64(latency.Microseconds()) / 1000.0
	if m.ewmaAlpha == 0 {
		m.ewmaAlpha = 0.3
	}
	if m.avgLatencyMs == 0 {
		m.avgLatencyMs = ms
	} else {
		m.avgLatencyMs = m.ewmaAlpha*ms + (1-m.ewmaAlpha)*m.avgLatencyMs
	}
}

func (m *TierMetrics) recordFailure() {
	m.FailureCount++
}
