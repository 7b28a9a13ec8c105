package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/edgearb/edge/internal/types"
)

type failingStream struct{}

func (failingStream) Publish(ctx context.Context, snapshot *types.MarketSnapshot) error {
	return errors.New("stream unavailable")
}

type recordingQueue struct {
	calls int
}

func (q *recordingQueue) Enqueue(ctx context.Context, queueType types.QueueType, payload []byte, groupID, dedupID string) error {
	q.calls++
	return nil
}

func TestHandleFallsBackFromStreamToQueue(t *testing.T) {
	q := &recordingQueue{}
	c := New(nil, failingStream{}, q, nil, Config{})

	snap := &types.MarketSnapshot{Venue: "binance", Pair: "BTC-USDT", Price: &types.PriceBlock{Last: 100}}
	if err := c.Handle(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.calls != 1 {
		t.Fatalf("expected queue fallback to be used once, got %d calls", q.calls)
	}
}

func TestSafeEventIDHashesLongIDs(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	id := safeEventID(string(long))
	if len(id) != 64 {
		t.Fatalf("expected a 64-char hex sha256 digest for ids over 128 bytes, got length %d", len(id))
	}

	short := "short-id"
	if safeEventID(short) != short {
		t.Fatalf("expected short ids to pass through unchanged")
	}
}
