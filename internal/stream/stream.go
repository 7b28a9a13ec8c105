// Package stream implements the optional hot-path StreamTier: a websocket
// feed per venue that keeps the latest snapshot for each (venue, pair) in
// memory, with automatic reconnect-with-backoff. Connection lifecycle and
// backoff are grounded on aristath-sentinel's tradernet.MarketStatusWebSocket
// (dial, read loop, reconnect with capped exponential backoff, thread-safe
// latest-value cache) — generalized from a single Tradernet feed to an
// arbitrary set of per-venue websocket endpoints.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/edgearb/edge/internal/types"
)

const (
	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 60 * time.Second
	dialTimeout        = 10 * time.Second
)

// Source describes one venue's websocket feed endpoint.
type Source struct {
	Venue string
	URL   string
}

// Feed maintains one reconnecting websocket connection per venue and the
// latest snapshot seen for each (venue, pair) it reports.
type Feed struct {
	logger  zerolog.Logger
	sources []Source

	mu     sync.RWMutex
	latest map[string]*types.MarketSnapshot // "venue:pair" -> snapshot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Feed over the given per-venue websocket sources.
func New(sources []Source, logger zerolog.Logger) *Feed {
	return &Feed{
		sources: sources,
		logger:  logger.With().Str("component", "stream-feed").Logger(),
		latest:  make(map[string]*types.MarketSnapshot),
	}
}

// Start dials every configured source and begins the read loops.
func (f *Feed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	for _, src := range f.sources {
		f.wg.Add(1)
		go f.run(ctx, src)
	}
}

// Stop halts every read loop.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

// Latest implements ingestion.StreamTier.
func (f *Feed) Latest(venue, pair string) (*types.MarketSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.latest[venue+":"+pair]
	return snap, ok
}

func (f *Feed) run(ctx context.Context, src Source) {
	defer f.wg.Done()
	delay := baseReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.connectAndRead(ctx, src); err != nil {
			f.logger.Warn().Str("venue", src.Venue).Err(err).Dur("retry_in", delay).Msg("stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context, src Source) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, src.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	f.logger.Info().Str("venue", src.Venue).Msg("stream connected")

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return err
		}

		var snap types.MarketSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			f.logger.Debug().Str("venue", src.Venue).Err(err).Msg("malformed stream message dropped")
			continue
		}
		if snap.Venue == "" {
			snap.Venue = src.Venue
		}

		f.mu.Lock()
		f.latest[snap.Venue+":"+snap.Pair] = &snap
		f.mu.Unlock()
	}
}
