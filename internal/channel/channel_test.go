package channel

import (
	"context"
	"testing"

	"github.com/edgearb/edge/internal/apperr"
	"github.com/edgearb/edge/internal/types"
)

func TestRenderChatHeaderVariesByStrategy(t *testing.T) {
	opp := &types.ArbitrageOpportunity{
		Pair: "BTC-USDT", LongVenue: "bybit", ShortVenue: "binance",
		RateDifference: -0.0002, Confidence: 0.8,
	}

	if got, want := firstLine(RenderChat(opp, types.StrategyBroadcast)), "🚀 New Arbitrage Opportunity!"; got != want {
		t.Fatalf("broadcast header = %q, want %q", got, want)
	}
	if got, want := firstLine(RenderChat(opp, types.StrategyPriority)), "🚀 Priority Arbitrage Opportunity!"; got != want {
		t.Fatalf("priority header = %q, want %q", got, want)
	}
	if got, want := firstLine(RenderChat(opp, types.StrategyGeographic)), "🌍 Regional Arbitrage Opportunity!"; got != want {
		t.Fatalf("geographic header = %q, want %q", got, want)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

type flakySender struct {
	failures int
	calls    int
}

func (f *flakySender) Name() string { return "flaky" }
func (f *flakySender) Send(ctx context.Context, endpoint, payload string) error {
	f.calls++
	if f.calls <= f.failures {
		return apperr.New(apperr.KindNetwork, "timeout")
	}
	return nil
}

func TestSendWithRetryRetriesTransientFailures(t *testing.T) {
	s := &flakySender{failures: 2}
	if err := SendWithRetry(context.Background(), s, "endpoint", "payload"); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if s.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", s.calls)
	}
}

type authFailSender struct{ calls int }

func (f *authFailSender) Name() string { return "auth-fail" }
func (f *authFailSender) Send(ctx context.Context, endpoint, payload string) error {
	f.calls++
	return apperr.New(apperr.KindAuth, "invalid credentials")
}

func TestSendWithRetryDoesNotRetryNonTransientFailures(t *testing.T) {
	s := &authFailSender{}
	if err := SendWithRetry(context.Background(), s, "endpoint", "payload"); err == nil {
		t.Fatalf("expected an error")
	}
	if s.calls != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-transient failure, got %d", s.calls)
	}
}
