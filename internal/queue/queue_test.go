package queue

import (
	"testing"
	"time"

	"github.com/edgearb/edge/internal/types"
)

func TestEnqueueDeduplicatesByContentWithinWindow(t *testing.T) {
	m := New()
	payload := []byte(`{"pair":"BTC-USDT"}`)

	if _, err := m.Enqueue(types.QueueStandard, payload, types.PriorityNormal, "", ""); err != nil {
		t.Fatalf("unexpected error on first enqueue: %v", err)
	}
	if _, err := m.Enqueue(types.QueueStandard, payload, types.PriorityNormal, "", ""); err == nil {
		t.Fatalf("expected duplicate content to be rejected within the dedup window")
	}
}

func TestReceiveMovesToDeadLetterAfterMaxReceiveCount(t *testing.T) {
	m := New()
	msg, _ := m.Enqueue(types.QueueLowPriority, []byte("payload"), types.PriorityLow, "", "")
	msg.VisibilityTimeout = 0 // force immediate re-visibility between receives

	for i := 0; i < defaultPolicies[types.QueueLowPriority].maxReceiveCount; i++ {
		received := m.Receive(types.QueueLowPriority, 10)
		if len(received) != 1 {
			t.Fatalf("receive %d: expected 1 message, got %d", i, len(received))
		}
	}

	// One more receive pushes receive-count past the max and dead-letters it.
	m.Receive(types.QueueLowPriority, 10)

	if m.Depth(types.QueueLowPriority) != 0 {
		t.Fatalf("expected the message to leave the original queue")
	}
	if m.Depth(types.QueueDeadLetter) != 1 {
		t.Fatalf("expected the message to land in the dead-letter queue")
	}
}

func TestFIFOPerGroupIDBlocksConcurrentDelivery(t *testing.T) {
	m := New()
	m.Enqueue(types.QueueStandard, []byte("a"), types.PriorityNormal, "group-1", "id-a")
	m.Enqueue(types.QueueStandard, []byte("b"), types.PriorityNormal, "group-1", "id-b")

	first := m.Receive(types.QueueStandard, 10)
	if len(first) != 1 {
		t.Fatalf("expected only the first message in the group to be delivered, got %d", len(first))
	}

	second := m.Receive(types.QueueStandard, 10)
	if len(second) != 0 {
		t.Fatalf("expected the second group member to stay blocked while the first is in flight, got %d", len(second))
	}

	m.Ack(types.QueueStandard, first[0].ID)
	third := m.Receive(types.QueueStandard, 10)
	if len(third) != 1 {
		t.Fatalf("expected the second group member to become deliverable after ack, got %d", len(third))
	}
}

func TestRetryMakesMessageReDeliverableAfterDelay(t *testing.T) {
	m := New()
	m.Enqueue(types.QueueStandard, []byte("payload"), types.PriorityNormal, "", "")
	received := m.Receive(types.QueueStandard, 10)
	if len(received) != 1 {
		t.Fatalf("expected one message")
	}

	m.Retry(types.QueueStandard, received[0].ID, -1*time.Second)
	redelivered := m.Receive(types.QueueStandard, 10)
	if len(redelivered) != 1 {
		t.Fatalf("expected message to be re-deliverable immediately after a negative-delay retry")
	}
}
