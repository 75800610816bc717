package domain

import (
	"math"
	"sort"
	"time"
)

// DynamicsInput is the data needed to estimate momentum for one account.
// all data is provided upfront - no side effects or time acquisition inside.
type DynamicsInput struct {
	// Points are influence observations, in any order.
	Points []InfluencePoint

	// WindowStart is the beginning of the observation window.
	WindowStart time.Time

	// WindowEnd is the end of the observation window (typically "now").
	WindowEnd time.Time
}

// InfluencePoint is a minimal observation for the estimator.
// decoupled from InfluenceSnapshot to keep the algorithm pure.
type InfluencePoint struct {
	Influence  float64
	ObservedAt time.Time
}

// DynamicsResult contains the estimated momentum and how much data backed it.
type DynamicsResult struct {
	Dynamics TrendDynamics

	// SampleCount is the number of points inside the window.
	SampleCount int

	// Latest is the most recent point in the window, nil if none.
	Latest *InfluencePoint
}

// EstimateDynamics derives velocity_norm and acceleration_norm from observations.
// this is a pure function with no side effects - all inputs are explicit.
//
// algorithm:
//  1. keep points inside [WindowStart, WindowEnd], oldest first
//  2. velocity = (last - first) / max(first, 1)
//  3. split at the middle point m; acceleration = rel(m, last) - rel(first, m)
//
// fewer than 2 points give zero velocity, fewer than 3 give zero acceleration.
// the results are not clamped; the normalizer bounds them.
func EstimateDynamics(input DynamicsInput) DynamicsResult {
	if !input.WindowEnd.After(input.WindowStart) {
		// invalid window, nothing to estimate
		return DynamicsResult{Dynamics: TrendDynamics{State: TrendStable}}
	}

	points := make([]InfluencePoint, 0, len(input.Points))
	for _, p := range input.Points {
		if p.ObservedAt.Before(input.WindowStart) || p.ObservedAt.After(input.WindowEnd) {
			continue
		}
		if !isFinite(p.Influence) {
			continue
		}
		points = append(points, p)
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].ObservedAt.Before(points[j].ObservedAt)
	})

	result := DynamicsResult{SampleCount: len(points)}
	if len(points) > 0 {
		latest := points[len(points)-1]
		result.Latest = &latest
	}

	var velocity, acceleration float64
	if n := len(points); n >= 2 {
		first, last := points[0].Influence, points[n-1].Influence
		velocity = relativeChange(first, last)

		if n >= 3 {
			mid := points[n/2].Influence
			acceleration = relativeChange(mid, last) - relativeChange(first, mid)
		}
	}

	result.Dynamics = TrendDynamics{
		VelocityNorm:     velocity,
		AccelerationNorm: acceleration,
		State:            DeriveTrendState(velocity, acceleration),
	}
	return result
}

func relativeChange(from, to float64) float64 {
	return (to - from) / math.Max(from, 1)
}
