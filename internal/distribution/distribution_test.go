package distribution

import (
	"testing"

	"github.com/edgearb/edge/internal/types"
)

func TestSelectPriorityOrdersByTierAndActivity(t *testing.T) {
	candidates := []Recipient{
		{UserID: "zed", Tier: types.TierBasic, ActivityScore: 0},
		{UserID: "alice", Tier: types.TierPremium, ActivityScore: 100},
		{UserID: "bob", Tier: types.TierPro, ActivityScore: 0},
	}
	selected := selectPriority(candidates)
	if len(selected) != 3 {
		t.Fatalf("expected all 3 candidates, got %d", len(selected))
	}
	if selected[0].UserID != "alice" {
		t.Fatalf("expected premium tier + highest activity to rank first, got %s", selected[0].UserID)
	}
}

func TestSelectPriorityCapsAtFiveAndTieBreaksLexicographically(t *testing.T) {
	var candidates []Recipient
	for _, id := range []string{"f", "e", "d", "c", "b", "a"} {
		candidates = append(candidates, Recipient{UserID: id, Tier: types.TierBasic, ActivityScore: 0})
	}
	selected := selectPriority(candidates)
	if len(selected) != 5 {
		t.Fatalf("expected top 5 selected, got %d", len(selected))
	}
	if selected[0].UserID != "a" {
		t.Fatalf("expected lexicographic tie-break to put 'a' first, got %s", selected[0].UserID)
	}
}

func TestSelectGeographicIncludesOnlyUsersWithinTradingHours(t *testing.T) {
	candidates := []Recipient{
		{UserID: "tokyo", TimezoneOffset: 9, TradingHourStart: 8, TradingHourEnd: 20},
		{UserID: "ny", TimezoneOffset: -5, TradingHourStart: 8, TradingHourEnd: 20},
	}
	// utcHour=2 -> tokyo local=11 (in window), ny local=21 (out of window)
	selected := selectGeographic(candidates, 2)
	if len(selected) != 1 || selected[0].UserID != "tokyo" {
		t.Fatalf("expected only tokyo in-window, got %+v", selected)
	}
}

func TestSelectGeographicEmptyIsNotAnError(t *testing.T) {
	candidates := []Recipient{
		{UserID: "ny", TimezoneOffset: -5, TradingHourStart: 8, TradingHourEnd: 9},
	}
	selected := selectGeographic(candidates, 0)
	if selected != nil {
		t.Fatalf("expected nil (no error) when nobody is in-window, got %+v", selected)
	}
}
