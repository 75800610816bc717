package domain

import "math"

const (
	// acceleration stays subordinate to velocity.
	trendVelocityWeight     = 0.35
	trendAccelerationWeight = 0.15

	growingVelocity   = 0.2
	coolingVelocity   = -0.2
	volatileMagnitude = 0.3
)

// TrendAdjustedResult is the output of the trend adjuster.
type TrendAdjustedResult struct {
	// AdjustedScore is always within [0, 1000].
	AdjustedScore Score

	// Delta is AdjustedScore minus the base influence.
	Delta int

	State TrendState
}

// AdjustTrend combines base influence with momentum.
// this is a pure function with no side effects - all inputs are explicit.
//
// algorithm:
//  1. adjusted_raw = base * (1 + 0.35*velocity + 0.15*acceleration)
//  2. adjusted_score = round(clamp(adjusted_raw, 0, 1000))
//  3. delta = adjusted_score - base
//  4. state from DeriveTrendState
//
// example: base=500, velocity=0.5, acceleration=0.3
// adjusted_raw = 500 * 1.22 = 610, delta = 110, state = growing
func AdjustTrend(influenceBase float64, dynamics TrendDynamics) TrendAdjustedResult {
	multiplier := 1 + trendVelocityWeight*dynamics.VelocityNorm + trendAccelerationWeight*dynamics.AccelerationNorm
	adjusted := NewScore(influenceBase * multiplier)

	return TrendAdjustedResult{
		AdjustedScore: adjusted,
		Delta:         int(math.Round(float64(adjusted) - influenceBase)),
		State:         DeriveTrendState(dynamics.VelocityNorm, dynamics.AccelerationNorm),
	}
}

// DeriveTrendState labels momentum. order matters, first match wins:
// growing, then cooling, then volatile, otherwise stable.
func DeriveTrendState(velocity, acceleration float64) TrendState {
	switch {
	case velocity > growingVelocity:
		return TrendGrowing
	case velocity < coolingVelocity:
		return TrendCooling
	case math.Abs(acceleration) > volatileMagnitude:
		return TrendVolatile
	default:
		return TrendStable
	}
}
