// Package cache wraps the Redis-compatible key/value tier used by the
// Data-Access Hierarchy (C2), the Ingestion Coordinator's fallback spill
// (C7), the Embedding Engine's per-opportunity store (C4) and the
// Distribution Engine's round-robin counter (C9).
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/edgearb/edge/internal/config"
	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper over go-redis exposing the operations the
// higher-level components need, keyed per the persisted-state layout (§6.3).
type Client struct {
	rdb *redis.Client
}

// New creates a cache client from the provided config. Returns an error if
// the KV URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.EdgeKVURL)
	if err != nil {
		return nil, fmt.Errorf("invalid EDGE_KV_URL: %w", err)
	}
	return &Client{rdb: redis.NewClient(opt)}, nil
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Get returns the raw value and whether it was present (not-found is not an
// error per §7).
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set writes a value with an optional TTL (zero means no expiry).
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Incr atomically increments a counter key and returns the new value. Used
// for best-effort counters (e.g. round-robin index) — the hierarchy's own
// read-modify-write cycles elsewhere still tolerate coalescing per §5.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// Del removes a key.
func (c *Client) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// SetNX sets a key only if absent.
func (c *Client) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Key builders matching the persisted namespace layout (§6.3).

func MarketDataKey(venue, pair string) string {
	return fmt.Sprintf("market_data:%s:%s", venue, pair)
}

func EmbeddingKey(opportunityID string) string {
	return fmt.Sprintf("embedding:%s", opportunityID)
}

func FallbackKey(eventType, safeEventID string) string {
	return fmt.Sprintf("fallback:%s:%s", eventType, safeEventID)
}

const RoundRobinIndexKey = "distribution:roundrobin:last_user_index"

func RuleKey(prefix, id string) string  { return fmt.Sprintf("%srule:%s", prefix, id) }
func SpanKey(prefix, id string) string  { return fmt.Sprintf("%sspan:%s", prefix, id) }
func TraceKey(prefix, id string) string { return fmt.Sprintf("%strace:%s", prefix, id) }
