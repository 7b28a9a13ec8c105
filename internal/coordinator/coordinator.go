// Package coordinator implements the Ingestion Coordinator (C7): the
// transform -> stream -> queue -> cache fallback chain for every incoming
// market-data event, with a token-bucket rate limiter, per-downstream
// circuit breakers, and an active-request map for observability. The
// fallback chain and breaker reuse are grounded on the teacher's
// middleware.ConcurrencyGuard (active-request tracking) and the Semaphore
// shape used for bounded work; the breaker itself is the same machine as
// [[internal/datahierarchy]].
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/edgearb/edge/internal/apperr"
	"github.com/edgearb/edge/internal/cache"
	"github.com/edgearb/edge/internal/datahierarchy"
	"github.com/edgearb/edge/internal/types"
)

// Transformer optionally reshapes a snapshot before it is emitted downstream.
type Transformer func(ctx context.Context, snapshot *types.MarketSnapshot) (*types.MarketSnapshot, error)

// StreamSink is the hot-path downstream (C2's stream tier, or a direct
// publish to a message bus).
type StreamSink interface {
	Publish(ctx context.Context, snapshot *types.MarketSnapshot) error
}

// QueueSink is the Queue Manager (C8) entry point.
type QueueSink interface {
	Enqueue(ctx context.Context, queueType types.QueueType, payload []byte, groupID, dedupID string) error
}

// Config tunes the coordinator (grounded on config.Config's C7 block).
type Config struct {
	RateLimitPerSecond int
	FallbackCacheTTL   time.Duration
	BreakerThreshold   int
	BreakerOpenDur     time.Duration
	BreakerHalfProbes  int
}

// Coordinator implements ingestion.Coordinator.
type Coordinator struct {
	transform Transformer
	stream    StreamSink
	queue     QueueSink
	cache     *cache.Client

	limiter *rate.Limiter
	ttl     time.Duration

	streamBreaker *datahierarchy.CircuitBreaker
	queueBreaker  *datahierarchy.CircuitBreaker

	activeMu sync.Mutex
	active   map[string]time.Time
}

// New builds an Ingestion Coordinator.
func New(transform Transformer, stream StreamSink, queue QueueSink, cacheClient *cache.Client, cfg Config) *Coordinator {
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 1000
	}
	if cfg.FallbackCacheTTL <= 0 {
		cfg.FallbackCacheTTL = 300 * time.Second
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerOpenDur <= 0 {
		cfg.BreakerOpenDur = 60 * time.Second
	}
	if cfg.BreakerHalfProbes <= 0 {
		cfg.BreakerHalfProbes = 3
	}
	return &Coordinator{
		transform:     transform,
		stream:        stream,
		queue:         queue,
		cache:         cacheClient,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitPerSecond),
		ttl:           cfg.FallbackCacheTTL,
		streamBreaker: datahierarchy.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerOpenDur, cfg.BreakerHalfProbes),
		queueBreaker:  datahierarchy.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerOpenDur, cfg.BreakerHalfProbes),
		active:        make(map[string]time.Time),
	}
}

// Handle runs one event through transform -> stream -> queue -> cache.
func (c *Coordinator) Handle(ctx context.Context, snapshot *types.MarketSnapshot) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Wrap(apperr.KindRateLimited, "rate limiter wait", err)
	}

	eventID := snapshot.Venue + ":" + snapshot.Pair + ":" + time.Now().Format(time.RFC3339Nano)
	c.trackStart(eventID)
	defer c.trackEnd(eventID)

	out := snapshot
	if c.transform != nil {
		transformed, err := c.transform(ctx, snapshot)
		if err != nil {
			return apperr.Wrap(apperr.KindSerialization, "transform failed", err)
		}
		out = transformed
	}

	if c.stream != nil && c.streamBreaker.Allow() {
		if err := c.stream.Publish(ctx, out); err == nil {
			c.streamBreaker.RecordSuccess()
			return nil
		} else {
			c.streamBreaker.RecordFailure(err.Error())
		}
	}

	body, err := json.Marshal(out)
	if err != nil {
		return apperr.Wrap(apperr.KindSerialization, "marshal snapshot", err)
	}

	if c.queue != nil && c.queueBreaker.Allow() {
		queueType := priorityQueueFor(out)
		groupID := out.Venue + ":" + out.Pair
		if err := c.queue.Enqueue(ctx, queueType, body, groupID, ""); err == nil {
			c.queueBreaker.RecordSuccess()
			return nil
		} else {
			c.queueBreaker.RecordFailure(err.Error())
		}
	}

	return c.spillToCache(ctx, "market-snapshot", eventID, body)
}

// spillToCache is the last-resort fallback per §4.7, keyed
// `fallback:{event-type}:{safe-id}` with long ids hashed.
func (c *Coordinator) spillToCache(ctx context.Context, eventType, eventID string, body []byte) error {
	if c.cache == nil {
		return apperr.New(apperr.KindStorage, "no fallback cache configured")
	}
	safeID := safeEventID(eventID)
	key := cache.FallbackKey(eventType, safeID)
	if err := c.cache.Set(ctx, key, body, c.ttl); err != nil {
		return apperr.Wrap(apperr.KindStorage, "fallback cache spill failed", err)
	}
	return nil
}

func safeEventID(id string) string {
	if len(id) <= 128 {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// priorityQueueFor maps a snapshot to a queue bucket; funding-bearing
// snapshots are higher priority than plain price ticks.
func priorityQueueFor(s *types.MarketSnapshot) types.QueueType {
	if s.Funding != nil {
		return types.QueueHighPriority
	}
	return types.QueueStandard
}

func (c *Coordinator) trackStart(id string) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	c.active[id] = time.Now()
}

func (c *Coordinator) trackEnd(id string) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	delete(c.active, id)
}

// ActiveCount reports the number of in-flight events, for observability.
func (c *Coordinator) ActiveCount() int {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	return len(c.active)
}
