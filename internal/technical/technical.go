// Package technical implements the Technical Signal Engine (C6): four
// indicator detectors (RSI, moving-average cross, Bollinger bands,
// momentum) over a per-pair rolling price window. RSI and moving averages
// are computed with go-talib, the same library the teacher's pack leans on
// for numeric series work; Bollinger and momentum follow the spec's exact
// boundary semantics closely enough that a hand-rolled pass is clearer than
// adapting a general-purpose indicator for them.
package technical

import (
	"math"
	"time"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/edgearb/edge/internal/types"
	"github.com/google/uuid"
)

// Config tunes the engine's thresholds (grounded on config.Config's C6 block).
type Config struct {
	RSIPeriod          int
	MAShortPeriod      int
	MALongPeriod       int
	BollingerPeriod    int
	BollingerStdDev    float64
	MomentumPeriod     int
	MinConfidence      float64
	DefaultStopLossPct float64
	RewardRiskRatio    float64
	SignalExpiry       time.Duration
}

// DefaultConfig returns the §4.6 defaults.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:          14,
		MAShortPeriod:      10,
		MALongPeriod:       20,
		BollingerPeriod:    20,
		BollingerStdDev:    2.0,
		MomentumPeriod:     5,
		MinConfidence:      0.6,
		DefaultStopLossPct: 0.02,
		RewardRiskRatio:    2.0,
		SignalExpiry:       60 * time.Minute,
	}
}

// RiskPreferences filters signals per §4.6's user-preference gate.
type RiskPreferences struct {
	RiskTolerance   string // "conservative" | "moderate" | "aggressive"
	ExperienceLevel string // "beginner" | "intermediate" | "expert"
}

// Engine evaluates the four detectors over a rolling close-price window.
type Engine struct {
	cfg Config
}

// New builds a Technical Signal Engine.
func New(cfg Config) *Engine {
	if cfg.RSIPeriod == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// Evaluate runs all four detectors against prices (oldest-first) for a
// (venue, pair) and returns every signal clearing the minimum-confidence
// bar, filtered by optional user risk preferences.
func (e *Engine) Evaluate(venue, pair string, prices []float64, prefs *RiskPreferences) []*types.ArbitrageOpportunity {
	var out []*types.ArbitrageOpportunity

	if s := e.rsiSignal(venue, pair, prices); s != nil {
		out = append(out, s)
	}
	if s := e.maCrossSignal(venue, pair, prices); s != nil {
		out = append(out, s)
	}
	if s := e.bollingerSignal(venue, pair, prices); s != nil {
		out = append(out, s)
	}
	if s := e.momentumSignal(venue, pair, prices); s != nil {
		out = append(out, s)
	}

	filtered := out[:0]
	for _, s := range out {
		if s.Confidence < e.cfg.MinConfidence {
			continue
		}
		if prefs != nil && !compatibleWithPreferences(s, *prefs) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

// compatibleWithPreferences drops signals below confidence 0.75 for
// conservative users, and technical signals below confidence 0.7 for
// beginner users; every other signal passes.
func compatibleWithPreferences(s *types.ArbitrageOpportunity, prefs RiskPreferences) bool {
	if prefs.RiskTolerance == "conservative" && s.Confidence < 0.75 {
		return false
	}
	if prefs.ExperienceLevel == "beginner" && s.Type == types.OpportunityTechnical && s.Confidence < 0.7 {
		return false
	}
	return true
}

func (e *Engine) rsiSignal(venue, pair string, prices []float64) *types.ArbitrageOpportunity {
	period := e.cfg.RSIPeriod
	if len(prices) < period+1 {
		return nil
	}
	rsiSeries := talib.Rsi(prices, period)
	rsi := rsiSeries[len(rsiSeries)-1]
	last := prices[len(prices)-1]

	var direction string
	var confidence float64
	switch {
	case rsi < 20:
		direction, confidence = "buy", 0.95
	case rsi < 25:
		direction, confidence = "buy", 0.8
	case rsi < 30:
		direction, confidence = "buy", 0.65
	case rsi > 80:
		direction, confidence = "sell", 0.95
	case rsi > 75:
		direction, confidence = "sell", 0.8
	case rsi > 70:
		direction, confidence = "sell", 0.65
	default:
		return nil
	}

	return e.build(venue, pair, direction, last, confidence, types.OpportunityTechnical)
}

func (e *Engine) maCrossSignal(venue, pair string, prices []float64) *types.ArbitrageOpportunity {
	short, long := e.cfg.MAShortPeriod, e.cfg.MALongPeriod
	if len(prices) < long+1 {
		return nil
	}
	shortMA := talib.Sma(prices, short)
	longMA := talib.Sma(prices, long)

	n := len(prices)
	prevShort, prevLong := shortMA[n-2], longMA[n-2]
	curShort, curLong := shortMA[n-1], longMA[n-1]
	last := prices[n-1]

	goldenCross := prevShort <= prevLong && curShort > curLong
	deathCross := prevShort >= prevLong && curShort < curLong
	if !goldenCross && !deathCross {
		return nil
	}

	spread := math.Abs(curShort-curLong) / curLong
	confidence := math.Min(1.0, 0.5+spread*10)

	direction := "sell"
	if goldenCross {
		direction = "buy"
	}
	return e.build(venue, pair, direction, last, confidence, types.OpportunityTechnical)
}

func (e *Engine) bollingerSignal(venue, pair string, prices []float64) *types.ArbitrageOpportunity {
	period := e.cfg.BollingerPeriod
	if len(prices) < 2 {
		return nil
	}
	window := prices
	if len(window) > period {
		window = window[len(window)-period:]
	}

	mean := stat.Mean(window, nil)
	var stddev float64
	fallback := false
	if len(window) >= period {
		stddev = stat.StdDev(window, nil)
	} else {
		stddev = mean * 0.02
		fallback = true
	}

	upper := mean + e.cfg.BollingerStdDev*stddev
	lower := mean - e.cfg.BollingerStdDev*stddev
	last := prices[len(prices)-1]

	var direction string
	switch {
	case last <= lower:
		direction = "buy"
	case last >= upper:
		direction = "sell"
	default:
		return nil
	}

	distance := math.Abs(last-mean) / math.Max(stddev, 1e-9)
	confidence := math.Min(1.0, 0.5+distance*0.1)

	opp := e.build(venue, pair, direction, last, confidence, types.OpportunityTechnical)
	if opp != nil {
		opp.FallbackStdDev = fallback
	}
	return opp
}

func (e *Engine) momentumSignal(venue, pair string, prices []float64) *types.ArbitrageOpportunity {
	period := e.cfg.MomentumPeriod
	if len(prices) < period+1 {
		return nil
	}
	n := len(prices)
	ret := (prices[n-1] - prices[n-1-period]) / prices[n-1-period]

	var direction string
	var confidence float64
	switch {
	case ret > 0.05:
		direction, confidence = "buy", 0.85
	case ret > 0.02:
		direction, confidence = "buy", 0.65
	case ret < -0.05:
		direction, confidence = "sell", 0.85
	case ret < -0.02:
		direction, confidence = "sell", 0.65
	default:
		return nil
	}

	return e.build(venue, pair, direction, prices[n-1], confidence, types.OpportunityTechnical)
}

func (e *Engine) build(venue, pair, direction string, entry, confidence float64, t types.OpportunityType) *types.ArbitrageOpportunity {
	stopPct := e.cfg.DefaultStopLossPct
	if stopPct <= 0 {
		stopPct = 0.02
	}
	reward := e.cfg.RewardRiskRatio
	if reward <= 0 {
		reward = 2.0
	}

	var stopLoss, takeProfit float64
	if direction == "buy" {
		stopLoss = entry * (1 - stopPct)
		takeProfit = entry + (entry-stopLoss)*reward
	} else {
		stopLoss = entry * (1 + stopPct)
		takeProfit = entry - (stopLoss-entry)*reward
	}

	expiry := time.Now().Add(e.cfg.SignalExpiry)
	now := time.Now()

	longVenue, shortVenue := venue, ""
	if direction == "sell" {
		longVenue, shortVenue = "", venue
	}

	return &types.ArbitrageOpportunity{
		ID:             uuid.NewString(),
		Pair:           pair,
		LongVenue:      longVenue,
		ShortVenue:     shortVenue,
		Confidence:     confidence,
		DetectedAt:     now,
		Expiry:         &expiry,
		Type:           t,
		EntryPrice:     entry,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
	}
}

