// Package adapter implements the Exchange Adapter (C1): a uniform read
// interface per venue, normalizing venue-specific wire JSON into the
// canonical price/funding/volume blocks. Adapters are stateless; the
// registry shape is grounded on the teacher's provider.Registry.
package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgearb/edge/internal/types"
)

// ExchangeAdapter is the uniform read interface per venue (§4.1).
type ExchangeAdapter interface {
	Name() string
	FetchTicker(ctx context.Context, pair string, creds Credentials) (*types.PriceBlock, error)
	FetchFunding(ctx context.Context, pair string, creds Credentials) (*types.FundingBlock, error)
	FetchVolume(ctx context.Context, pair string, creds Credentials) (*types.VolumeBlock, error)
	HealthCheck(ctx context.Context) HealthStatus
}

// Credentials carries user-supplied authentication material, passed per
// call; adapters never hold long-lived auth state (§4.1).
type Credentials struct {
	APIKey    string
	APISecret string
	Bearer    string
}

// HealthStatus mirrors the teacher's provider.HealthStatus shape.
type HealthStatus struct {
	Healthy   bool
	Latency   time.Duration
	LastCheck time.Time
	Error     string
}

// Registry holds registered adapters by venue name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]ExchangeAdapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]ExchangeAdapter)}
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a ExchangeAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by venue name.
func (r *Registry) Get(name string) (ExchangeAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// List returns the registered venue names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// HealthCheckAll polls every registered adapter concurrently, the same
// fan-out/wait shape as the teacher's ModelSyncer.syncAll.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	r.mu.RLock()
	adapters := make(map[string]ExchangeAdapter, len(r.adapters))
	for k, v := range r.adapters {
		adapters[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]HealthStatus, len(adapters))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, a := range adapters {
		wg.Add(1)
		go func(name string, a ExchangeAdapter) {
			defer wg.Done()
			status := a.HealthCheck(ctx)
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, a)
	}
	wg.Wait()
	return results
}

// NormalizePair canonicalizes a venue-specific pair spelling into the
// canonical BASE-QUOTE string (e.g. BTCUSDT, BTC/USDT -> BTC-USDT).
func NormalizePair(venueSymbol string) string {
	cleaned := make([]rune, 0, len(venueSymbol))
	for _, r := range venueSymbol {
		switch r {
		case '/', '_', ':':
			cleaned = append(cleaned, '-')
		default:
			cleaned = append(cleaned, r)
		}
	}
	s := string(cleaned)
	for _, quote := range []string{"USDT", "USDC", "USD", "BUSD"} {
		if len(s) > len(quote) && s[len(s)-len(quote):] == quote && s[len(s)-len(quote)-1] != '-' {
			return fmt.Sprintf("%s-%s", s[:len(s)-len(quote)], quote)
		}
	}
	return s
}
