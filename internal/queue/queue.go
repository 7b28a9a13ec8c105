// Package queue implements the Queue Manager (C8): seven typed queues with
// per-type retry/visibility defaults, optional FIFO-per-group-id ordering,
// content or explicit-id deduplication over a rolling window, and
// visibility-timeout-based redelivery. The in-process structure (mutex-
// guarded maps plus a dedup window) is grounded on the teacher's
// middleware.Deduplicator (in-flight fingerprint tracking) generalized from
// single-shot request dedup to a persistent rolling window.
package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgearb/edge/internal/apperr"
	"github.com/edgearb/edge/internal/types"
)

// typePolicy is the per-queue-type retry/visibility default.
type typePolicy struct {
	maxReceiveCount   int
	visibilityTimeout time.Duration
}

var defaultPolicies = map[types.QueueType]typePolicy{
	types.QueueHighPriority: {maxReceiveCount: 5, visibilityTimeout: 30 * time.Second},
	types.QueueStandard:     {maxReceiveCount: 3, visibilityTimeout: 60 * time.Second},
	types.QueueLowPriority:  {maxReceiveCount: 2, visibilityTimeout: 120 * time.Second},
	types.QueueRetry:        {maxReceiveCount: 5, visibilityTimeout: 30 * time.Second},
	types.QueueBatch:        {maxReceiveCount: 3, visibilityTimeout: 300 * time.Second},
	types.QueueStreaming:    {maxReceiveCount: 1, visibilityTimeout: 5 * time.Second},
	types.QueueDeadLetter:   {maxReceiveCount: 0, visibilityTimeout: 0},
}

const dedupWindow = 5 * time.Minute

// Manager is the in-process fallback queue broker; an external-broker
// adapter would satisfy the same method set and swap in transparently.
type Manager struct {
	mu     sync.Mutex
	queues map[types.QueueType][]*types.QueueMessage
	dedup  map[string]time.Time

	groupsInFlight map[string]bool
}

// New builds an empty Queue Manager.
func New() *Manager {
	m := &Manager{
		queues:         make(map[types.QueueType][]*types.QueueMessage),
		dedup:          make(map[string]time.Time),
		groupsInFlight: make(map[string]bool),
	}
	for qt := range defaultPolicies {
		m.queues[qt] = nil
	}
	return m
}

// Enqueue pushes a new message, applying dedup and FIFO-per-group-id.
func (m *Manager) Enqueue(queueType types.QueueType, payload []byte, priority types.Priority, groupID, dedupID string) (*types.QueueMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dedupKey(dedupID, payload)
	if m.isDuplicate(key) {
		return nil, apperr.New(apperr.KindValidation, "duplicate message within dedup window")
	}
	m.dedup[key] = time.Now()
	m.evictExpiredDedup()

	policy := defaultPolicies[queueType]
	msg := &types.QueueMessage{
		ID:                uuid.NewString(),
		QueueType:         queueType,
		Priority:          priority,
		Payload:           payload,
		MaxReceiveCount:   policy.maxReceiveCount,
		VisibilityTimeout: policy.visibilityTimeout,
		GroupID:           groupID,
		DedupID:           dedupID,
		EnqueuedAt:        time.Now(),
	}
	m.queues[queueType] = append(m.queues[queueType], msg)
	return msg, nil
}

func dedupKey(dedupID string, payload []byte) string {
	if dedupID != "" {
		return "id:" + dedupID
	}
	sum := sha256.Sum256(payload)
	return "content:" + hex.EncodeToString(sum[:])
}

func (m *Manager) isDuplicate(key string) bool {
	seenAt, ok := m.dedup[key]
	if !ok {
		return false
	}
	return time.Since(seenAt) < dedupWindow
}

func (m *Manager) evictExpiredDedup() {
	for k, t := range m.dedup {
		if time.Since(t) >= dedupWindow {
			delete(m.dedup, k)
		}
	}
}

// Receive pulls up to max ready messages from a queue: visible (never
// delivered, or a prior delivery's visibility window has expired), and
// respecting FIFO-per-group-id (at most one in-flight message per group).
func (m *Manager) Receive(queueType types.QueueType, max int) []*types.QueueMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var out []*types.QueueMessage
	for _, msg := range m.queues[queueType] {
		if len(out) >= max {
			break
		}
		if msg.VisibleAt.After(now) {
			continue
		}
		if msg.GroupID != "" && m.groupsInFlight[msg.GroupID] {
			continue
		}
		msg.ReceiveCount++
		if msg.ReceiveCount > msg.MaxReceiveCount && msg.MaxReceiveCount > 0 {
			m.moveToDeadLetter(msg, "max receive count exceeded")
			continue
		}
		msg.VisibleAt = now.Add(msg.VisibilityTimeout)
		if msg.GroupID != "" {
			m.groupsInFlight[msg.GroupID] = true
		}
		out = append(out, msg)
	}
	return out
}

// Ack removes a message permanently.
func (m *Manager) Ack(queueType types.QueueType, messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.queues[queueType]
	for i, msg := range msgs {
		if msg.ID == messageID {
			m.clearGroup(msg)
			m.queues[queueType] = append(msgs[:i], msgs[i+1:]...)
			return true
		}
	}
	return false
}

// Retry requeues a message, releasing it for delivery again after delay.
func (m *Manager) Retry(queueType types.QueueType, messageID string, delay time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.queues[queueType] {
		if msg.ID == messageID {
			msg.VisibleAt = time.Now().Add(delay)
			m.clearGroup(msg)
			return true
		}
	}
	return false
}

func (m *Manager) clearGroup(msg *types.QueueMessage) {
	if msg.GroupID != "" {
		delete(m.groupsInFlight, msg.GroupID)
	}
}

func (m *Manager) moveToDeadLetter(msg *types.QueueMessage, reason string) {
	m.clearGroup(msg)
	idx := -1
	queue := m.queues[msg.QueueType]
	for i, candidate := range queue {
		if candidate.ID == msg.ID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		m.queues[msg.QueueType] = append(queue[:idx], queue[idx+1:]...)
	}
	msg.QueueType = types.QueueDeadLetter
	msg.DeadLetterReason = reason
	m.queues[types.QueueDeadLetter] = append(m.queues[types.QueueDeadLetter], msg)
}

// Depth reports the current length of a queue, for observability.
func (m *Manager) Depth(queueType types.QueueType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[queueType])
}
