package ingestion

import "testing"

func TestMonotonicDropsEarlierTimestamp(t *testing.T) {
	e := &Engine{lastTimestamp: make(map[string]int64)}
	pc := PairConfig{Venue: "binance", Pair: "BTC-USDT"}

	if !e.monotonic(pc, 100) {
		t.Fatalf("expected first timestamp to be accepted")
	}
	if !e.monotonic(pc, 150) {
		t.Fatalf("expected later timestamp to be accepted")
	}
	if e.monotonic(pc, 120) {
		t.Fatalf("expected earlier timestamp to be dropped")
	}
	if !e.monotonic(pc, 150) {
		t.Fatalf("expected equal (non-decreasing) timestamp to be accepted")
	}
}
