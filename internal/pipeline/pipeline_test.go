package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgearb/edge/internal/arbitrage"
	"github.com/edgearb/edge/internal/technical"
	"github.com/edgearb/edge/internal/types"
)

type recordingSink struct {
	mu  sync.Mutex
	got []*types.ArbitrageOpportunity
}

func (s *recordingSink) Distribute(ctx context.Context, opp *types.ArbitrageOpportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, opp)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func snapshot(venue, pair string, rate, ts int64) *types.MarketSnapshot {
	return &types.MarketSnapshot{
		Venue:       venue,
		Pair:        pair,
		TimestampMs: ts,
		Funding:     &types.FundingBlock{Rate: float64(rate) / 10000},
	}
}

func TestPipelineDetectsFundingArbitrageAcrossTwoSnapshots(t *testing.T) {
	sink := &recordingSink{}
	arb := arbitrage.New(0.0001, nil, nil)
	p := New(zerolog.Nop(), arb, nil, nil, sink, Config{BufferSize: 10, Workers: 2})
	p.Start(context.Background())
	defer p.Stop()

	p.Submit(snapshot("binance", "BTC-USDT", 1, 1000))
	p.Submit(snapshot("bybit", "BTC-USDT", -1, 1000))

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected at least one opportunity to reach the sink")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipelineRunsTechnicalDetectionOverPriceHistory(t *testing.T) {
	sink := &recordingSink{}
	tech := technical.New(technical.DefaultConfig())
	p := New(zerolog.Nop(), nil, tech, nil, sink, Config{BufferSize: 100, Workers: 1})
	p.Start(context.Background())
	defer p.Stop()

	price := 100.0
	for i := 0; i < 30; i++ {
		price *= 0.97 // sustained decline to trip momentum/RSI oversold
		p.Submit(&types.MarketSnapshot{
			Venue: "binance", Pair: "BTC-USDT", TimestampMs: int64(i),
			Price: &types.PriceBlock{Last: price},
		})
	}

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a technical signal on a sustained price decline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
