// Package ingestion implements the Market-data Ingestion Engine (C3): a
// periodic driver that polls cache -> stream -> adapter for each
// configured (venue, pair), caches the first success, and hands the final
// snapshot to the Ingestion Coordinator. The ticker-driven, non-overlapping
// loop is grounded on the teacher's provider.ModelSyncer.
package ingestion

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgearb/edge/internal/adapter"
	"github.com/edgearb/edge/internal/cache"
	"github.com/edgearb/edge/internal/types"
	"github.com/rs/zerolog"
)

// PairConfig names one (venue, pair) the engine polls each cycle.
type PairConfig struct {
	Venue string
	Pair  string
}

// Coordinator is the downstream sink for finalized snapshots (C7).
type Coordinator interface {
	Handle(ctx context.Context, snapshot *types.MarketSnapshot) error
}

// Metrics is the per-cycle counter set required by §4.3.
type Metrics struct {
	Attempts            int64
	Successes           int64
	Failures            int64
	CacheHits           int64
	StreamHits          int64
	AdapterHits         int64
	BytesIn             int64
	CycleOverruns       int64
	NonMonotonicDropped int64
	avgLatencyMu        sync.Mutex
	avgLatencyMs        float64
}

func (m *Metrics) recordLatency(d time.Duration) {
	m.avgLatencyMu.Lock()
	defer m.avgLatencyMu.Unlock()
	ms := float64(d.Microseconds()) / 1000.0
	if m.avgLatencyMs == 0 {
		m.avgLatencyMs = ms
	} else {
		m.avgLatencyMs = 0.3*ms + 0.7*m.avgLatencyMs
	}
}

// AverageLatencyMs returns the EWMA-smoothed per-snapshot fetch latency.
func (m *Metrics) AverageLatencyMs() float64 {
	m.avgLatencyMu.Lock()
	defer m.avgLatencyMu.Unlock()
	return m.avgLatencyMs
}

// StreamTier is an optional hot-path source (a websocket-fed ring buffer,
// per SPEC_FULL.md's domain-stack notes); nil means "no stream configured".
type StreamTier interface {
	Latest(venue, pair string) (*types.MarketSnapshot, bool)
}

// OpportunitySubmitter receives every freshly resolved snapshot for
// downstream arbitrage/technical detection. Optional — nil means no
// detection pipeline is attached.
type OpportunitySubmitter interface {
	Submit(snapshot *types.MarketSnapshot)
}

// Engine is the periodic multi-venue poller.
type Engine struct {
	pairs       []PairConfig
	registry    *adapter.Registry
	cacheClient *cache.Client
	stream      StreamTier
	coordinator Coordinator
	interval    time.Duration
	snapshotTTL time.Duration
	logger      zerolog.Logger
	opportunity OpportunitySubmitter

	metrics Metrics

	mu            sync.Mutex
	lastTimestamp map[string]int64

	running int32
	stopCh  chan struct{}
}

// New builds an Ingestion Engine.
func New(pairs []PairConfig, registry *adapter.Registry, cacheClient *cache.Client, stream StreamTier, coordinator Coordinator, interval, snapshotTTL time.Duration, logger zerolog.Logger) *Engine {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if snapshotTTL <= 0 {
		snapshotTTL = 60 * time.Second
	}
	return &Engine{
		pairs:         pairs,
		registry:      registry,
		cacheClient:   cacheClient,
		stream:        stream,
		coordinator:   coordinator,
		interval:      interval,
		snapshotTTL:   snapshotTTL,
		logger:        logger.With().Str("component", "ingestion-engine").Logger(),
		lastTimestamp: make(map[string]int64),
		stopCh:        make(chan struct{}),
	}
}

// AttachOpportunityPipeline wires an OpportunitySubmitter that receives every
// resolved snapshot, e.g. the arbitrage/technical detection pipeline.
func (e *Engine) AttachOpportunityPipeline(sub OpportunitySubmitter) {
	e.opportunity = sub
}

// Start begins the background polling loop.
func (e *Engine) Start() {
	go e.loop()
	e.logger.Info().Dur("interval", e.interval).Int("pairs", len(e.pairs)).Msg("ingestion engine started")
}

// Stop halts the loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

func (e *Engine) loop() {
	e.runCycleNonOverlapping()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.runCycleNonOverlapping()
		}
	}
}

// runCycleNonOverlapping skips (and counts) a tick if the previous cycle is
// still in flight, implementing the implicit backpressure of §4.3.
func (e *Engine) runCycleNonOverlapping() {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		atomic.AddInt64(&e.metrics.CycleOverruns, 1)
		e.logger.Warn().Msg("ingestion cycle overrun — previous cycle still running")
		return
	}
	defer atomic.StoreInt32(&e.running, 0)

	ctx, cancel := context.WithTimeout(context.Background(), e.interval)
	defer cancel()
	e.runCycle(ctx)
}

func (e *Engine) runCycle(ctx context.Context) {
	var wg sync.WaitGroup
	for _, pc := range e.pairs {
		wg.Add(1)
		go func(pc PairConfig) {
			defer wg.Done()
			e.fetchOne(ctx, pc)
		}(pc)
	}
	wg.Wait()
}

func (e *Engine) fetchOne(ctx context.Context, pc PairConfig) {
	atomic.AddInt64(&e.metrics.Attempts, 1)
	start := time.Now()

	snap, source, err := e.resolve(ctx, pc)
	if err != nil {
		atomic.AddInt64(&e.metrics.Failures, 1)
		e.logger.Debug().Str("venue", pc.Venue).Str("pair", pc.Pair).Err(err).Msg("ingestion fetch failed")
		return
	}

	switch source {
	case "cache":
		atomic.AddInt64(&e.metrics.CacheHits, 1)
	case "stream":
		atomic.AddInt64(&e.metrics.StreamHits, 1)
	case "adapter":
		atomic.AddInt64(&e.metrics.AdapterHits, 1)
	}

	if !e.monotonic(pc, snap.TimestampMs) {
		atomic.AddInt64(&e.metrics.NonMonotonicDropped, 1)
		e.logger.Warn().Str("venue", pc.Venue).Str("pair", pc.Pair).Msg("non-monotonic snapshot dropped")
		return
	}

	e.metrics.recordLatency(time.Since(start))
	atomic.AddInt64(&e.metrics.Successes, 1)

	if source != "cache" {
		if body, err := json.Marshal(snap); err == nil {
			atomic.AddInt64(&e.metrics.BytesIn, int64(len(body)))
			_ = e.cacheClient.Set(ctx, cache.MarketDataKey(pc.Venue, pc.Pair), body, e.snapshotTTL)
		}
	}

	if e.coordinator != nil {
		_ = e.coordinator.Handle(ctx, snap)
	}
	if e.opportunity != nil {
		e.opportunity.Submit(snap)
	}
}

// resolve attempts cache -> stream -> adapter, in that order (§4.3).
func (e *Engine) resolve(ctx context.Context, pc PairConfig) (*types.MarketSnapshot, string, error) {
	if body, found, err := e.cacheClient.Get(ctx, cache.MarketDataKey(pc.Venue, pc.Pair)); err == nil && found {
		var snap types.MarketSnapshot
		if err := json.Unmarshal(body, &snap); err == nil {
			return &snap, "cache", nil
		}
	}

	if e.stream != nil {
		if snap, ok := e.stream.Latest(pc.Venue, pc.Pair); ok {
			return snap, "stream", nil
		}
	}

	a, ok := e.registry.Get(pc.Venue)
	if !ok {
		return nil, "", errUnknownVenue(pc.Venue)
	}

	snap := &types.MarketSnapshot{
		Venue:       pc.Venue,
		Pair:        pc.Pair,
		TimestampMs: time.Now().UnixMilli(),
		Provenance:  types.ProvenanceAPI,
	}
	if price, err := a.FetchTicker(ctx, pc.Pair, adapter.Credentials{}); err == nil {
		snap.Price = price
	}
	if funding, err := a.FetchFunding(ctx, pc.Pair, adapter.Credentials{}); err == nil {
		snap.Funding = funding
	}
	if volume, err := a.FetchVolume(ctx, pc.Pair, adapter.Credentials{}); err == nil {
		snap.Volume = volume
	}
	if !snap.HasData() {
		return nil, "", errNoData(pc.Venue, pc.Pair)
	}
	return snap, "adapter", nil
}

// monotonic enforces "timestamp monotonic non-decreasing per (venue, pair)"
// (§3 invariant 1 / §5 ordering guarantee); a clock-skewed earlier snapshot
// is dropped rather than overwriting the cached one.
func (e *Engine) monotonic(pc PairConfig, ts int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := pc.Venue + ":" + pc.Pair
	if prev, ok := e.lastTimestamp[key]; ok && ts < prev {
		return false
	}
	e.lastTimestamp[key] = ts
	return true
}

// Metrics returns a snapshot of the current counters.
func (e *Engine) Metrics() Metrics {
	return Metrics{
		Attempts:            atomic.LoadInt64(&e.metrics.Attempts),
		Successes:           atomic.LoadInt64(&e.metrics.Successes),
		Failures:            atomic.LoadInt64(&e.metrics.Failures),
		CacheHits:           atomic.LoadInt64(&e.metrics.CacheHits),
		StreamHits:          atomic.LoadInt64(&e.metrics.StreamHits),
		AdapterHits:         atomic.LoadInt64(&e.metrics.AdapterHits),
		BytesIn:             atomic.LoadInt64(&e.metrics.BytesIn),
		CycleOverruns:       atomic.LoadInt64(&e.metrics.CycleOverruns),
		NonMonotonicDropped: atomic.LoadInt64(&e.metrics.NonMonotonicDropped),
	}
}

type ingestionError string

func (e ingestionError) Error() string { return string(e) }

func errUnknownVenue(venue string) error { return ingestionError("no adapter registered for venue " + venue) }
func errNoData(venue, pair string) error {
	return ingestionError("no data available for " + venue + ":" + pair)
}
