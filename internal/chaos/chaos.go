// Package chaos implements the fault-injection harness (C13): pattern
// matched, time-bounded faults consulted before every guarded call into
// storage (C2) or a channel adapter (C10). Off by default; the pattern
// matching is grounded on the teacher's CIDR/region filter in its
// geo-aware router, generalized here from IP ranges to glob-style tier
// and key patterns, and the per-fault concurrency cap reuses the teacher's
// bounded semaphore.
package chaos

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgearb/edge/internal/apperr"
)

// InjectionType is the kind of fault a matching rule injects.
type InjectionType string

const (
	InjectTimeout            InjectionType = "timeout"
	InjectLatency            InjectionType = "latency"
	InjectFailure            InjectionType = "failure"
	InjectAccessDenied       InjectionType = "access-denied"
	InjectCapacityExhausted  InjectionType = "capacity-exhausted"
	InjectCorruption         InjectionType = "corruption"
)

// Fault describes one active fault rule.
type Fault struct {
	ID                 string
	TargetFilter       string // tier name or bucket/key glob pattern
	Operations         map[string]bool
	ErrorRate          float64 // [0,1)
	Latency            time.Duration
	HTTPStatuses       []int
	ErrorTypes         []InjectionType
	ConcurrentLimit    int
	Intensity          float64
	ExpiresAt          time.Time

	mu              sync.Mutex
	activeInvocations int
	matchCount        int64
	injectedCount     int64
}

// matches reports whether this fault applies to the given target/operation.
func (f *Fault) matches(target, operation string) bool {
	if f.Operations != nil && len(f.Operations) > 0 && !f.Operations[operation] {
		return false
	}
	ok, err := filepath.Match(f.TargetFilter, target)
	if err != nil {
		return f.TargetFilter == target
	}
	return ok || f.TargetFilter == "*" || f.TargetFilter == target
}

// Harness tracks active faults and decides injection per guarded call.
type Harness struct {
	mu      sync.RWMutex
	faults  map[string]*Fault
	enabled bool

	globalMatches   int64
	globalInjected  int64
}

// NewHarness creates a harness. Chaos is off by default — see §4.13.
func NewHarness(enabled bool) *Harness {
	return &Harness{faults: make(map[string]*Fault), enabled: enabled}
}

// SetEnabled toggles the feature flag at runtime.
func (h *Harness) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
}

// Enabled reports the feature flag.
func (h *Harness) Enabled() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.enabled
}

// AddFault registers or replaces an active fault.
func (h *Harness) AddFault(f *Fault) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f.Intensity == 0 {
		f.Intensity = 1.0
	}
	h.faults[f.ID] = f
}

// RemoveFault deactivates a fault by id.
func (h *Harness) RemoveFault(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.faults, id)
}

// Before is the guarded-call entry point (§4.13 steps 1-4). target is a
// tier name or a bucket/key; operation is e.g. "get", "put", "send".
// Returns a non-nil error when an error is injected; a latency injection
// sleeps for the fault's Latency and returns nil.
func (h *Harness) Before(target, operation, key string) error {
	if !h.Enabled() {
		return nil
	}

	h.mu.Lock()
	// 1. drop expired faults
	now := time.Now()
	for id, f := range h.faults {
		if !f.ExpiresAt.IsZero() && now.After(f.ExpiresAt) {
			delete(h.faults, id)
		}
	}
	// 2. find first match
	var matched *Fault
	for _, f := range h.faults {
		candidate := target
		if key != "" {
			candidate = key
		}
		if f.matches(candidate, operation) || f.matches(target, operation) {
			matched = f
			break
		}
	}
	h.mu.Unlock()

	if matched == nil {
		return nil
	}

	atomic.AddInt64(&matched.matchCount, 1)
	atomic.AddInt64(&h.globalMatches, 1)

	if matched.ConcurrentLimit > 0 {
		matched.mu.Lock()
		if matched.activeInvocations >= matched.ConcurrentLimit {
			matched.mu.Unlock()
			atomic.AddInt64(&matched.injectedCount, 1)
			atomic.AddInt64(&h.globalInjected, 1)
			return apperr.New(apperr.KindChaos, string(InjectCapacityExhausted))
		}
		matched.activeInvocations++
		matched.mu.Unlock()
	}

	// 3. deterministic pseudo-random draw from clock x intensity mod 1
	draw := pseudoRandom(now, matched.Intensity)
	if draw >= matched.ErrorRate {
		return nil // no injection
	}

	atomic.AddInt64(&matched.injectedCount, 1)
	atomic.AddInt64(&h.globalInjected, 1)

	kind := InjectFailure
	if len(matched.ErrorTypes) > 0 {
		idx := int(now.UnixNano()) % len(matched.ErrorTypes)
		if idx < 0 {
			idx = -idx
		}
		kind = matched.ErrorTypes[idx]
	}

	switch kind {
	case InjectLatency:
		if matched.Latency > 0 {
			time.Sleep(matched.Latency)
		}
		return nil
	case InjectTimeout:
		return apperr.New(apperr.KindNetwork, "chaos: simulated timeout")
	case InjectAccessDenied:
		return apperr.New(apperr.KindAuth, "chaos: simulated access denied")
	case InjectCapacityExhausted:
		return apperr.New(apperr.KindRateLimited, "chaos: simulated capacity exhausted")
	case InjectCorruption:
		return apperr.New(apperr.KindSerialization, "chaos: simulated corruption")
	default:
		return apperr.New(apperr.KindChaos, fmt.Sprintf("chaos: simulated %s", kind))
	}
}

// After releases a concurrency slot acquired in Before for faults with a
// ConcurrentLimit. Callers that invoke Before should defer After with the
// same target/operation/key.
func (h *Harness) After(target, operation, key string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, f := range h.faults {
		candidate := target
		if key != "" {
			candidate = key
		}
		if f.ConcurrentLimit > 0 && (f.matches(candidate, operation) || f.matches(target, operation)) {
			f.mu.Lock()
			if f.activeInvocations > 0 {
				f.activeInvocations--
			}
			f.mu.Unlock()
		}
	}
}

// Counters returns global match/injection counts for dashboards.
func (h *Harness) Counters() (matches, injected int64) {
	return atomic.LoadInt64(&h.globalMatches), atomic.LoadInt64(&h.globalInjected)
}

// pseudoRandom reproduces the deterministic draw described in §4.13 step 3:
// clock x intensity mod 1, using nanosecond clock resolution.
func pseudoRandom(clock time.Time, intensity float64) float64 {
	v := float64(clock.UnixNano()) * intensity
	frac := v - float64(int64(v))
	if frac < 0 {
		frac += 1
	}
	return frac
}
