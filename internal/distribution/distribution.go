// Package distribution implements the Distribution Engine (C9): four
// recipient-selection strategies over an opportunity, handing resulting
// messages to the Queue Manager (C8). Priority's score-and-sort shape is
// grounded on the teacher's routing.SLABalancer.SelectProvider; geographic
// filtering is grounded on routing.GeoRouter's timezone/business-hours
// matching.
package distribution

import (
	"context"
	"sort"

	"github.com/edgearb/edge/internal/cache"
	"github.com/edgearb/edge/internal/types"
)

// Recipient is the subset of a UserProfile the engine needs.
type Recipient struct {
	UserID           string
	Tier             types.UserTier
	ActivityScore    float64
	TimezoneOffset   int
	TradingHourStart int
	TradingHourEnd   int
}

var tierBaseScore = map[types.UserTier]float64{
	types.TierPremium: 100,
	types.TierPro:     50,
	types.TierBasic:   20,
	types.TierFree:    10,
}

// Engine selects recipients for an opportunity per a DistributionStrategy.
type Engine struct {
	cacheClient *cache.Client
}

// New builds a Distribution Engine.
func New(cacheClient *cache.Client) *Engine {
	return &Engine{cacheClient: cacheClient}
}

// Select returns the recipients chosen for a given strategy.
func (e *Engine) Select(ctx context.Context, strategy types.DistributionStrategy, candidates []Recipient, utcHour int) []Recipient {
	switch strategy {
	case types.StrategyBroadcast:
		return candidates
	case types.StrategyRoundRobin:
		return e.selectRoundRobin(ctx, candidates)
	case types.StrategyPriority:
		return selectPriority(candidates)
	case types.StrategyGeographic:
		return selectGeographic(candidates, utcHour)
	default:
		return nil
	}
}

// selectRoundRobin advances a cache-persisted index atomically and picks the
// single next candidate in rotation.
func (e *Engine) selectRoundRobin(ctx context.Context, candidates []Recipient) []Recipient {
	if len(candidates) == 0 {
		return nil
	}
	if e.cacheClient == nil {
		return candidates[:1]
	}
	idx, err := e.cacheClient.Incr(ctx, cache.RoundRobinIndexKey)
	if err != nil {
		return candidates[:1]
	}
	pos := int(idx) % len(candidates)
	if pos < 0 {
		pos += len(candidates)
	}
	return []Recipient{candidates[pos]}
}

// selectPriority scores each candidate (tier base + activity_score/10),
// sorts descending, and returns the top min(5, N), tie-broken
// lexicographically on user-id for determinism.
func selectPriority(candidates []Recipient) []Recipient {
	type scored struct {
		r     Recipient
		score float64
	}
	scoredList := make([]scored, len(candidates))
	for i, r := range candidates {
		scoredList[i] = scored{r: r, score: tierBaseScore[r.Tier] + r.ActivityScore/10}
	}
	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].score != scoredList[j].score {
			return scoredList[i].score > scoredList[j].score
		}
		return scoredList[i].r.UserID < scoredList[j].r.UserID
	})

	n := len(scoredList)
	if n > 5 {
		n = 5
	}
	out := make([]Recipient, n)
	for i := 0; i < n; i++ {
		out[i] = scoredList[i].r
	}
	return out
}

// selectGeographic includes users whose local trading hour falls within
// their configured window; an empty result is not an error.
func selectGeographic(candidates []Recipient, utcHour int) []Recipient {
	var out []Recipient
	for _, r := range candidates {
		localHour := ((utcHour+r.TimezoneOffset)%24 + 24) % 24
		if localHour >= r.TradingHourStart && localHour <= r.TradingHourEnd {
			out = append(out, r)
		}
	}
	return out
}

// BuildMessage wraps a selected set of recipients and an opportunity into
// the message C8 consumes, with priority matching the opportunity severity.
func BuildMessage(opp *types.ArbitrageOpportunity, recipients []Recipient, strategy types.DistributionStrategy) types.DistributionMessage {
	targets := make([]string, len(recipients))
	for i, r := range recipients {
		targets[i] = r.UserID
	}
	return types.DistributionMessage{
		MessageID:   opp.ID,
		Opportunity: opp,
		TargetUsers: targets,
		Strategy:    strategy,
		Priority:    priorityForConfidence(opp.Confidence),
	}
}

func priorityForConfidence(confidence float64) types.Priority {
	switch {
	case confidence >= 0.9:
		return types.PriorityCritical
	case confidence >= 0.75:
		return types.PriorityHigh
	case confidence >= 0.6:
		return types.PriorityNormal
	default:
		return types.PriorityLow
	}
}
