package datahierarchy

import (
	"sync"
	"time"
)

// Gate caps concurrent calls per tier. It is the same bounded-channel
// design as the teacher's middleware.Semaphore, renamed and scoped to tier
// names instead of org/team keys.
type Gate struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	limit int
}

// NewGate creates a per-tier concurrency gate with the given limit.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = 50
	}
	return &Gate{slots: make(map[string]chan struct{}), limit: limit}
}

// Acquire attempts to reserve a slot for tier, waiting up to timeout.
func (g *Gate) Acquire(tier string, timeout time.Duration) bool {
	g.mu.Lock()
	ch, ok := g.slots[tier]
	if !ok {
		ch = make(chan struct{}, g.limit)
		g.slots[tier] = ch
	}
	g.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Release frees a slot for tier.
func (g *Gate) Release(tier string) {
	g.mu.Lock()
	ch, ok := g.slots[tier]
	g.mu.Unlock()
	if ok {
		select {
		case <-ch:
		default:
		}
	}
}

// ActiveCount returns the number of in-flight calls for a tier.
func (g *Gate) ActiveCount(tier string) int {
	g.mu.Lock()
	ch, ok := g.slots[tier]
	g.mu.Unlock()
	if !ok {
		return 0
	}
	return len(ch)
}
