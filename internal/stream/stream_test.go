package stream

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/edgearb/edge/internal/types"
)

func TestLatestReturnsFalseBeforeAnyMessage(t *testing.T) {
	f := New(nil, zerolog.Nop())
	if _, ok := f.Latest("binance", "BTC-USDT"); ok {
		t.Fatal("expected no snapshot before any stream message is received")
	}
}

func TestLatestReturnsMostRecentlyWrittenSnapshot(t *testing.T) {
	f := New(nil, zerolog.Nop())
	f.mu.Lock()
	f.latest["binance:BTC-USDT"] = &types.MarketSnapshot{Venue: "binance", Pair: "BTC-USDT", TimestampMs: 42}
	f.mu.Unlock()

	snap, ok := f.Latest("binance", "BTC-USDT")
	if !ok {
		t.Fatal("expected a snapshot for a previously recorded venue/pair")
	}
	if snap.TimestampMs != 42 {
		t.Fatalf("TimestampMs = %d, want 42", snap.TimestampMs)
	}
}
