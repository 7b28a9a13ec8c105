// Package pipeline wires the Ingestion Engine's snapshots into opportunity
// detection (C5/C6), embedding (C4), and distribution (C9) as a buffered
// async worker pool — the same bounded-channel + worker-goroutine shape
// as the teacher's analytics.Pipeline, generalized from write-behind
// analytics events to the opportunity-detection fan-out.
package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edgearb/edge/internal/arbitrage"
	"github.com/edgearb/edge/internal/embedding"
	"github.com/edgearb/edge/internal/technical"
	"github.com/edgearb/edge/internal/types"
)

// Config tunes the pipeline's worker pool and buffering.
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns sane pool defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 1000, Workers: 4}
}

// OpportunitySink receives a detected opportunity for downstream distribution.
type OpportunitySink interface {
	Distribute(ctx context.Context, opp *types.ArbitrageOpportunity)
}

// priceHistory is a small fixed-size rolling window of close prices per
// (venue, pair), feeding the Technical Signal Engine.
type priceHistory struct {
	mu      sync.Mutex
	history map[string][]float64
	window  int
}

func newPriceHistory(window int) *priceHistory {
	if window <= 0 {
		window = 60
	}
	return &priceHistory{history: make(map[string][]float64), window: window}
}

func (h *priceHistory) push(venue, pair string, price float64) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := venue + ":" + pair
	series := append(h.history[key], price)
	if len(series) > h.window {
		series = series[len(series)-h.window:]
	}
	h.history[key] = series
	out := make([]float64, len(series))
	copy(out, series)
	return out
}

// pairGroup buffers the latest snapshot per venue for a pair, letting the
// arbitrage detector see cross-venue state once at least two venues report.
type pairGroup struct {
	mu      sync.Mutex
	byVenue map[string]map[string]*types.MarketSnapshot // pair -> venue -> snapshot
}

func newPairGroup() *pairGroup {
	return &pairGroup{byVenue: make(map[string]map[string]*types.MarketSnapshot)}
}

func (g *pairGroup) record(snap *types.MarketSnapshot) []*types.MarketSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	venues, ok := g.byVenue[snap.Pair]
	if !ok {
		venues = make(map[string]*types.MarketSnapshot)
		g.byVenue[snap.Pair] = venues
	}
	venues[snap.Venue] = snap

	out := make([]*types.MarketSnapshot, 0, len(venues))
	for _, s := range venues {
		out = append(out, s)
	}
	return out
}

// Pipeline is the async opportunity-detection fan-out.
type Pipeline struct {
	logger zerolog.Logger
	config Config

	arb   *arbitrage.Detector
	tech  *technical.Engine
	embed *embedding.Engine
	sink  OpportunitySink

	prices *priceHistory
	pairs  *pairGroup

	snapshotCh chan *types.MarketSnapshot
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

// New builds an opportunity-detection pipeline.
func New(logger zerolog.Logger, arb *arbitrage.Detector, tech *technical.Engine, embed *embedding.Engine, sink OpportunitySink, cfg Config) *Pipeline {
	if cfg.BufferSize <= 0 || cfg.Workers <= 0 {
		cfg = DefaultConfig()
	}
	return &Pipeline{
		logger:     logger.With().Str("component", "opportunity-pipeline").Logger(),
		config:     cfg,
		arb:        arb,
		tech:       tech,
		embed:      embed,
		sink:       sink,
		prices:     newPriceHistory(60),
		pairs:      newPairGroup(),
		snapshotCh: make(chan *types.MarketSnapshot, cfg.BufferSize),
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info().Int("workers", p.config.Workers).Msg("opportunity pipeline started")
}

// Stop cancels the worker pool and waits for the workers to exit; snapshots
// still buffered in the submit channel are not processed.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Submit enqueues a snapshot for opportunity detection; non-blocking —
// drops and logs on a full buffer rather than applying backpressure to
// the ingestion engine.
func (p *Pipeline) Submit(snapshot *types.MarketSnapshot) {
	select {
	case p.snapshotCh <- snapshot:
	default:
		p.logger.Warn().Str("venue", snapshot.Venue).Str("pair", snapshot.Pair).Msg("opportunity pipeline buffer full, snapshot dropped")
	}
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-p.snapshotCh:
			if !ok {
				return
			}
			p.process(ctx, snap)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, snap *types.MarketSnapshot) {
	if p.arb != nil {
		group := p.pairs.record(snap)
		if len(group) >= 2 {
			if opp := p.arb.DetectFundingRate(group); opp != nil {
				p.emit(ctx, opp)
			}
			if opp := p.arb.DetectPrice(group); opp != nil {
				p.emit(ctx, opp)
			}
		}
	}

	if p.tech != nil && snap.Price != nil {
		series := p.prices.push(snap.Venue, snap.Pair, snap.Price.Last)
		for _, sig := range p.tech.Evaluate(snap.Venue, snap.Pair, series, nil) {
			p.emit(ctx, sig)
		}
	}
}

func (p *Pipeline) emit(ctx context.Context, opp *types.ArbitrageOpportunity) {
	if p.embed != nil {
		p.embed.EmbedAndStore(ctx, opp)
	}
	if p.sink != nil {
		p.sink.Distribute(ctx, opp)
	}
}
