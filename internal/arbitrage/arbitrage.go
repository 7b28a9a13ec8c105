// Package arbitrage implements the Arbitrage Detector (C5): cross-venue
// funding-rate and price spread detection producing typed opportunities.
// The "compute cost for every candidate, sort by savings, filter by
// threshold" shape is grounded directly on the teacher's
// intelligence.ArbitrageEngine (cross-model cost arbitrage), re-targeted
// from LLM token cost to cross-venue funding/price differences.
package arbitrage

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edgearb/edge/internal/types"
	"github.com/google/uuid"
)

// ReliabilitySource exposes the historical per-venue success rate the
// Data-Access Hierarchy (C2) already tracks, used as one confidence input.
type ReliabilitySource interface {
	VenueSuccessRate(venue string) float64
}

// FeeTable supplies the estimated per-side taker fee for a venue, the same
// role the teacher's provider/pricing.go fee table plays for cost arbitrage.
type FeeTable interface {
	TakerFee(venue string) float64
}

// Detector finds funding-rate arbitrage across venues for a pair.
type Detector struct {
	threshold   float64
	reliability ReliabilitySource
	fees        FeeTable
}

// New creates a Detector with the configured minimum |rate-difference|.
func New(threshold float64, reliability ReliabilitySource, fees FeeTable) *Detector {
	if threshold <= 0 {
		threshold = 0.0001
	}
	return &Detector{threshold: threshold, reliability: reliability, fees: fees}
}

// DetectFundingRate evaluates all venue pairs for a single trading pair's
// snapshots and returns at most one opportunity (§4.5 tie-break rules pick
// the single best candidate, matching S1's "emitted exactly once").
func (d *Detector) DetectFundingRate(snapshots []*types.MarketSnapshot) *types.ArbitrageOpportunity {
	candidates := d.fundingCandidates(snapshots)
	if len(candidates) == 0 {
		return nil
	}
	best := d.pickBest(candidates)
	return best
}

type candidate struct {
	long, short *types.MarketSnapshot
	rateDiff    float64
	netDiff     float64
}

func (d *Detector) fundingCandidates(snapshots []*types.MarketSnapshot) []candidate {
	withFunding := make([]*types.MarketSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Funding != nil {
			withFunding = append(withFunding, s)
		}
	}
	if len(withFunding) < 2 {
		return nil
	}

	var out []candidate
	for i := 0; i < len(withFunding); i++ {
		for j := 0; j < len(withFunding); j++ {
			if i == j {
				continue
			}
			a, b := withFunding[i], withFunding[j]
			if a.Funding.Rate > b.Funding.Rate {
				continue // only consider a as long (lower funding) once per unordered pair
			}
			longFee := d.fee(a.Venue)
			shortFee := d.fee(b.Venue)
			rateDiff := a.Funding.Rate - b.Funding.Rate
			netDiff := netOfFees(rateDiff, longFee, shortFee)
			if math.Abs(netDiff) < d.threshold {
				continue
			}
			out = append(out, candidate{long: a, short: b, rateDiff: rateDiff, netDiff: netDiff})
		}
	}
	return out
}

// netOfFees subtracts both sides' taker fees from a raw rate/price spread
// using decimal arithmetic, avoiding the float epsilon drift that a long
// chain of basis-point subtractions accumulates against the detector's
// threshold comparison.
func netOfFees(spread, longFee, shortFee float64) float64 {
	net := decimal.NewFromFloat(spread).
		Sub(decimal.NewFromFloat(longFee)).
		Sub(decimal.NewFromFloat(shortFee))
	result, _ := net.Float64()
	return result
}

func (d *Detector) fee(venue string) float64 {
	if d.fees == nil {
		return 0
	}
	return d.fees.TakerFee(venue)
}

// pickBest applies §4.5's tie-break rules: maximum net rate-difference
// magnitude; then younger snapshots (the pair whose older snapshot has the
// more recent timestamp); then lexicographic on venue ids.
func (d *Detector) pickBest(candidates []candidate) *types.ArbitrageOpportunity {
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		absI, absJ := math.Abs(ci.netDiff), math.Abs(cj.netDiff)
		if absI != absJ {
			return absI > absJ
		}
		ageI := minTimestamp(ci.long, ci.short)
		ageJ := minTimestamp(cj.long, cj.short)
		if ageI != ageJ {
			return ageI > ageJ // younger (larger timestamp) first
		}
		if ci.long.Venue != cj.long.Venue {
			return ci.long.Venue < cj.long.Venue
		}
		return ci.short.Venue < cj.short.Venue
	})

	best := candidates[0]
	confidence := d.confidence(best)

	return &types.ArbitrageOpportunity{
		ID:             uuid.NewString(),
		Pair:           best.long.Pair,
		LongVenue:      best.long.Venue,
		ShortVenue:     best.short.Venue,
		RateDifference: best.rateDiff,
		NetRateDiff:    best.netDiff,
		Confidence:     confidence,
		DetectedAt:     time.Now(),
		Type:           types.OpportunityFundingRate,
	}
}

// confidence combines spread magnitude, venue reliability and snapshot
// staleness into a [0,1] score, the same weighted-composite shape the
// teacher's SLA balancer uses for provider scoring.
func (d *Detector) confidence(c candidate) float64 {
	magnitudeScore := math.Min(1.0, math.Abs(c.netDiff)/(d.threshold*5))

	reliabilityScore := 0.7
	if d.reliability != nil {
		longRel := d.reliability.VenueSuccessRate(c.long.Venue)
		shortRel := d.reliability.VenueSuccessRate(c.short.Venue)
		if longRel > 0 || shortRel > 0 {
			reliabilityScore = (longRel + shortRel) / 2
		}
	}

	staleMs := time.Since(time.UnixMilli(minTimestamp(c.long, c.short))).Milliseconds()
	recencyScore := math.Max(0, 1.0-float64(staleMs)/float64((60*time.Second).Milliseconds()))

	composite := 0.4*magnitudeScore + 0.4*reliabilityScore + 0.2*recencyScore
	return math.Min(1.0, math.Max(0.0, composite))
}

func maxTimestamp(a, b *types.MarketSnapshot) int64 {
	if a.TimestampMs > b.TimestampMs {
		return a.TimestampMs
	}
	return b.TimestampMs
}

func minTimestamp(a, b *types.MarketSnapshot) int64 {
	if a.TimestampMs < b.TimestampMs {
		return a.TimestampMs
	}
	return b.TimestampMs
}

// DetectPrice evaluates a simple price-spread arbitrage across venues for a
// pair, the same shape as DetectFundingRate but keyed off last price.
func (d *Detector) DetectPrice(snapshots []*types.MarketSnapshot) *types.ArbitrageOpportunity {
	withPrice := make([]*types.MarketSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Price != nil && s.Price.Last > 0 {
			withPrice = append(withPrice, s)
		}
	}
	if len(withPrice) < 2 {
		return nil
	}

	var out []candidate
	for i := 0; i < len(withPrice); i++ {
		for j := 0; j < len(withPrice); j++ {
			if i == j {
				continue
			}
			a, b := withPrice[i], withPrice[j]
			if a.Price.Last > b.Price.Last {
				continue
			}
			spread := (b.Price.Last - a.Price.Last) / a.Price.Last
			netDiff := netOfFees(spread, d.fee(a.Venue), d.fee(b.Venue))
			if math.Abs(netDiff) < d.threshold {
				continue
			}
			out = append(out, candidate{long: a, short: b, rateDiff: spread, netDiff: netDiff})
		}
	}
	if len(out) == 0 {
		return nil
	}
	opp := d.pickBest(out)
	opp.Type = types.OpportunityPrice
	return opp
}
