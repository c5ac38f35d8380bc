// Package bot drives autonomous couriers: job selection, movement
// decisions, and the per-bot runner goroutine.
package bot

import (
	"fmt"

	"github.com/talgya/courier-city/internal/weather"
)

// Tier selects the decision strategy. The set is closed; difficulty
// differences beyond the strategy branch live in Params.
type Tier string

const (
	// TierRandom wanders toward its target with a random fallback.
	TierRandom Tier = "random"
	// TierGreedy scores jobs and runs a bounded lookahead over moves.
	TierGreedy Tier = "greedy"
)

// ParseTier validates a tier name from config.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierRandom, TierGreedy:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("unknown bot tier %q", s)
	}
}

// Params holds every per-tier tunable as data.
type Params struct {
	DecisionIntervalS float64 // pickup/deliver/target checks
	MovementIntervalS float64 // one movement step
	JobsIntervalS     float64 // job-selection pass

	ReleaseGraceS float64 // jobs ignored until this long after release

	TowardBias    float64 // random tier: probability of stepping toward target
	LookaheadProb float64 // greedy tier: probability of running the tree

	LookaheadDepth int
	DistanceWeight float64 // per-tile penalty in position scoring
	TerrainBonus   float64 // bonus for fast-surface tiles

	// Job scoring coefficients.
	Alpha         float64 // payout
	Beta          float64 // pickup + delivery distance
	Gamma         float64 // weather penalty
	PriorityBonus float64 // per priority level

	// Loop detection.
	HistorySize   int
	RecentWindow  int
	DistinctMax   int
	ForcedRandoms int
}

// DefaultParams returns the tuning for a tier.
func DefaultParams(tier Tier) Params {
	p := Params{
		DecisionIntervalS: 2.0,
		MovementIntervalS: 0.8,
		JobsIntervalS:     3.0,
		ReleaseGraceS:     3.0,
		TowardBias:        0.85,
		LookaheadProb:     0.9,
		LookaheadDepth:    2,
		DistanceWeight:    10.0,
		TerrainBonus:      3.0,
		Alpha:             1.0,
		Beta:              0.5,
		Gamma:             2.0,
		PriorityBonus:     5.0,
		HistorySize:       8,
		RecentWindow:      6,
		DistinctMax:       2,
		ForcedRandoms:     5,
	}
	if tier == TierRandom {
		p.LookaheadProb = 0
	}
	return p
}

// jobWeatherPenalty is the fixed step function the greedy scorer uses,
// ordered storm > rain > light conditions > clear.
func jobWeatherPenalty(c weather.Condition) float64 {
	switch c {
	case weather.Storm:
		return 3.0
	case weather.Rain:
		return 2.0
	case weather.RainLight, weather.Wind, weather.Heat, weather.Cold:
		return 1.5
	case weather.Clouds, weather.Fog:
		return 1.0
	default:
		return 0
	}
}
