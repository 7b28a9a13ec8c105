package embedding

import (
	"math"
	"testing"
	"time"

	"github.com/edgearb/edge/internal/types"
)

func TestEmbedProducesConfiguredDimension(t *testing.T) {
	e := New(384, 0.7, nil, time.Hour, 500, nil)
	opp := &types.ArbitrageOpportunity{
		ID: "opp-1", Pair: "BTC-USDT", LongVenue: "bybit", ShortVenue: "binance",
		RateDifference: -0.0002, Confidence: 0.8, DetectedAt: time.Now(),
	}
	vec := e.Embed(opp)
	if len(vec) != 384 {
		t.Fatalf("expected 384-dim vector, got %d", len(vec))
	}

	var sumSq float64
	for _, x := range vec {
		sumSq += x * x
	}
	if math.Abs(math.Sqrt(sumSq)-1.0) > 1e-6 {
		t.Fatalf("expected L2-normalized vector (norm=1), got norm=%f", math.Sqrt(sumSq))
	}
}

func TestLocalSearchFallsBackWithoutRemoteStore(t *testing.T) {
	e := New(16, 0.5, nil, time.Hour, 10, nil)
	opp := &types.ArbitrageOpportunity{
		ID: "opp-1", Pair: "BTC-USDT", LongVenue: "bybit", ShortVenue: "binance",
		RateDifference: -0.0002, Confidence: 0.8, DetectedAt: time.Now(),
	}
	vec := e.EmbedAndStore(nil, opp)

	matches := e.Search(nil, vec, 5)
	if len(matches) != 1 || matches[0].ID != "opp-1" {
		t.Fatalf("expected the local ring buffer to return the just-stored embedding, got %+v", matches)
	}
	if matches[0].Similarity < 0.99 {
		t.Fatalf("expected near-identical similarity for the same vector, got %f", matches[0].Similarity)
	}

	snap := e.Metrics()
	if snap.FallbackHits != 1 {
		t.Fatalf("expected a fallback hit to be recorded, got %+v", snap)
	}
}
