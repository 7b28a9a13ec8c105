package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/edgearb/edge/internal/distribution"
	"github.com/edgearb/edge/internal/queue"
	"github.com/edgearb/edge/internal/types"
)

func TestDispatcherEnqueuesBroadcastMessageWithoutUserDirectory(t *testing.T) {
	qm := queue.New()
	selector := distribution.New(nil)
	d := NewDispatcher(zerolog.Nop(), selector, qm, nil, types.StrategyBroadcast)

	opp := &types.ArbitrageOpportunity{
		ID: "opp-1", Pair: "BTC-USDT", Confidence: 0.95,
		LongVenue: "bybit", ShortVenue: "binance",
	}
	d.Distribute(context.Background(), opp)

	if depth := qm.Depth(types.QueueHighPriority); depth != 1 {
		t.Fatalf("QueueHighPriority depth = %d, want 1 for a 0.95-confidence opportunity", depth)
	}
}

func TestDispatcherRoutesLowConfidenceToStandardQueue(t *testing.T) {
	qm := queue.New()
	selector := distribution.New(nil)
	d := NewDispatcher(zerolog.Nop(), selector, qm, nil, types.StrategyBroadcast)

	opp := &types.ArbitrageOpportunity{ID: "opp-2", Pair: "ETH-USDT", Confidence: 0.4}
	d.Distribute(context.Background(), opp)

	if depth := qm.Depth(types.QueueStandard); depth != 1 {
		t.Fatalf("QueueStandard depth = %d, want 1 for a 0.4-confidence opportunity", depth)
	}
}
