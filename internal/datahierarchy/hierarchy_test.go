package datahierarchy

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func memTier(name string, writable bool, store map[string][]byte) *FuncTier {
	return &FuncTier{
		TierName: name,
		CanWrite: writable,
		GetFunc: func(ctx context.Context, key string) ([]byte, bool, error) {
			v, ok := store[key]
			return v, ok, nil
		},
		PutFunc: func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
			store[key] = value
			return nil
		},
	}
}

// TestHierarchyCacheMissStreamHit mirrors scenario S2: cache misses, stream
// hits; the result is the stream's value and cache is populated on the way out.
func TestHierarchyCacheMissStreamHit(t *testing.T) {
	cache := map[string][]byte{}
	stream := map[string][]byte{"market_data:binance:BTC-USDT": []byte("snapshot")}

	h := New([]Tier{memTier("cache", true, cache), memTier("stream", true, stream)},
		5, 60*time.Second, 3, 10, zerolog.Nop())

	val, found, err := h.Get(context.Background(), "market_data:binance:BTC-USDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || string(val) != "snapshot" {
		t.Fatalf("expected stream snapshot, got %q found=%v", val, found)
	}
	if _, ok := cache["market_data:binance:BTC-USDT"]; !ok {
		t.Fatalf("expected cache to be backfilled on the way out")
	}

	_, m, _ := h.TierState("cache")
	if m.FailureCount != 0 {
		t.Fatalf("cache should only have been read, not failed")
	}
}

// TestHierarchyBypassesOpenBreaker mirrors scenario S3: once a tier's
// breaker opens, its attempts are not incremented on subsequent calls.
func TestHierarchyBypassesOpenBreaker(t *testing.T) {
	failing := &FuncTier{
		TierName: "stream",
		CanWrite: false,
		GetFunc: func(ctx context.Context, key string) ([]byte, bool, error) {
			return nil, false, errBoom
		},
	}
	fallback := map[string][]byte{"k": []byte("v")}

	h := New([]Tier{failing, memTier("cache", true, fallback)},
		5, time.Minute, 3, 10, zerolog.Nop())

	for i := 0; i < 5; i++ {
		h.Get(context.Background(), "k")
	}
	state, m, _ := h.TierState("stream")
	if state != StateOpen {
		t.Fatalf("expected stream breaker open after 5 failures, got %s", state)
	}
	attemptsAfterTrip := m.FailureCount

	val, found, err := h.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || string(val) != "v" {
		t.Fatalf("expected fallback tier result, got %q found=%v", val, found)
	}
	_, m2, _ := h.TierState("stream")
	if m2.FailureCount != attemptsAfterTrip {
		t.Fatalf("expected stream tier to be bypassed, attempts changed from %d to %d", attemptsAfterTrip, m2.FailureCount)
	}
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errBoom = sentinelErr("boom")
