package arbitrage

import (
	"testing"
	"time"

	"github.com/edgearb/edge/internal/types"
)

func TestDetectFundingRateScenarioS1(t *testing.T) {
	now := time.Now().UnixMilli()
	snapshots := []*types.MarketSnapshot{
		{
			Venue:       "binance",
			Pair:        "BTC-USDT",
			TimestampMs: now,
			Funding:     &types.FundingBlock{Rate: 0.0001},
		},
		{
			Venue:       "bybit",
			Pair:        "BTC-USDT",
			TimestampMs: now,
			Funding:     &types.FundingBlock{Rate: -0.0001},
		},
	}

	d := New(0.0001, nil, nil)
	opp := d.DetectFundingRate(snapshots)
	if opp == nil {
		t.Fatalf("expected an opportunity to be emitted")
	}
	if opp.LongVenue != "bybit" || opp.ShortVenue != "binance" {
		t.Fatalf("expected long=bybit short=binance, got long=%s short=%s", opp.LongVenue, opp.ShortVenue)
	}
	if opp.Confidence < 0.5 || opp.Confidence > 1.0 {
		t.Fatalf("expected confidence in [0.5,1.0], got %f", opp.Confidence)
	}
	if opp.Type != types.OpportunityFundingRate {
		t.Fatalf("expected funding-rate opportunity type, got %s", opp.Type)
	}
}

func TestDetectFundingRateBelowThresholdEmitsNothing(t *testing.T) {
	now := time.Now().UnixMilli()
	snapshots := []*types.MarketSnapshot{
		{Venue: "binance", Pair: "BTC-USDT", TimestampMs: now, Funding: &types.FundingBlock{Rate: 0.00002}},
		{Venue: "bybit", Pair: "BTC-USDT", TimestampMs: now, Funding: &types.FundingBlock{Rate: -0.00002}},
	}

	d := New(0.0001, nil, nil)
	if opp := d.DetectFundingRate(snapshots); opp != nil {
		t.Fatalf("expected no opportunity below threshold, got %+v", opp)
	}
}

func TestDetectFundingRateTieBreakPrefersYoungerSnapshots(t *testing.T) {
	older := time.Now().Add(-time.Hour).UnixMilli()
	newer := time.Now().UnixMilli()

	snapshots := []*types.MarketSnapshot{
		{Venue: "binance", Pair: "BTC-USDT", TimestampMs: older, Funding: &types.FundingBlock{Rate: 0.0005}},
		{Venue: "bybit", Pair: "BTC-USDT", TimestampMs: older, Funding: &types.FundingBlock{Rate: -0.0005}},
		{Venue: "okx", Pair: "BTC-USDT", TimestampMs: newer, Funding: &types.FundingBlock{Rate: 0.0005}},
		{Venue: "kraken", Pair: "BTC-USDT", TimestampMs: newer, Funding: &types.FundingBlock{Rate: -0.0005}},
	}

	d := New(0.0001, nil, nil)
	opp := d.DetectFundingRate(snapshots)
	if opp == nil {
		t.Fatalf("expected an opportunity")
	}
	if opp.LongVenue != "kraken" || opp.ShortVenue != "okx" {
		t.Fatalf("expected the younger pair (kraken/okx) to win the tie-break, got long=%s short=%s", opp.LongVenue, opp.ShortVenue)
	}
}
