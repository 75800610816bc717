package domain

import (
	"fmt"
	"math"
)

const (
	// inflection matters more than steady growth here, unlike AdjustTrend.
	pressureAccelerationWeight = 0.6
	pressureVelocityWeight     = 0.4

	BreakoutThreshold    Score = 700
	RisingThreshold      Score = 450
	BreakoutAcceleration       = 0.4
)

// EarlySignalInput carries everything the classifier reads.
type EarlySignalInput struct {
	InfluenceBase float64
	AdjustedScore float64
	Trend         TrendDynamics
	SignalNoise   float64
	RiskLevel     RiskLevel
	Profile       Profile

	// Confidence is the caller's sample-adequacy value; nil means unavailable.
	Confidence *float64
}

// EarlySignalResult is the classification with its explanation.
type EarlySignalResult struct {
	EarlySignalScore Score
	Badge            Badge

	// Confidence is nil when the caller had no sample-adequacy data.
	Confidence            *float64
	ConfidenceUnavailable bool

	Reasons []string

	Components EarlySignalComponents
}

// EarlySignalComponents exposes the intermediates behind a score.
type EarlySignalComponents struct {
	GrowthPressure float64 `json:"growth_pressure"`
	RelativeGap    float64 `json:"relative_gap"`
	ProfileFactor  float64 `json:"profile_factor"`
	RiskPenalty    float64 `json:"risk_penalty"`
	Raw            float64 `json:"raw"`
}

// ClassifyEarlySignal scores how likely an account is to break out.
// this is a pure function with no side effects - all inputs are explicit.
//
// algorithm:
//  1. growth_pressure = 0.6*acceleration + 0.4*velocity
//  2. relative_gap = (adjusted - base) / max(base, 1)
//  3. early_raw = growth_pressure*profile_factor + relative_gap - risk_penalty
//  4. score = round(clamp(early_raw, 0, 1) * 1000)
//  5. badge via ClassifyBadge
func ClassifyEarlySignal(in EarlySignalInput) EarlySignalResult {
	c := EarlySignalComponents{
		GrowthPressure: pressureAccelerationWeight*in.Trend.AccelerationNorm + pressureVelocityWeight*in.Trend.VelocityNorm,
		RelativeGap:    (in.AdjustedScore - in.InfluenceBase) / math.Max(in.InfluenceBase, 1),
		ProfileFactor:  in.Profile.GrowthFactor(),
		RiskPenalty:    in.RiskLevel.Penalty(),
	}
	c.Raw = c.GrowthPressure*c.ProfileFactor + c.RelativeGap - c.RiskPenalty

	score := NewScore(clamp(c.Raw, 0, 1) * 1000)
	badge := ClassifyBadge(score, in.Trend.AccelerationNorm, in.RiskLevel)

	result := EarlySignalResult{
		EarlySignalScore: score,
		Badge:            badge,
		Components:       c,
	}

	if in.Confidence != nil && isFinite(*in.Confidence) {
		conf := clamp(*in.Confidence, 0, 1)
		result.Confidence = &conf
	} else {
		result.ConfidenceUnavailable = true
	}

	result.Reasons = explain(reasonFacts{
		input:      in,
		components: c,
		score:      score,
		badge:      badge,
		noConf:     result.ConfidenceUnavailable,
	})

	return result
}

// ClassifyBadge maps a score to a badge.
// breakout additionally needs acceleration >= 0.4 and non-high risk;
// a score >= 700 that fails that gate is still rising, never breakout.
func ClassifyBadge(score Score, acceleration float64, risk RiskLevel) Badge {
	switch {
	case score >= BreakoutThreshold && acceleration >= BreakoutAcceleration && risk != RiskHigh:
		return BadgeBreakout
	case score >= RisingThreshold:
		return BadgeRising
	default:
		return BadgeNone
	}
}

type reasonFacts struct {
	input      EarlySignalInput
	components EarlySignalComponents
	score      Score
	badge      Badge
	noConf     bool
}

type reasonRule struct {
	fires func(f reasonFacts) bool
	text  func(f reasonFacts) string
}

func fixed(s string) func(reasonFacts) string {
	return func(reasonFacts) string { return s }
}

// reasonChecklist is evaluated top to bottom; every rule that fires is kept, in order.
var reasonChecklist = []reasonRule{
	{
		fires: func(f reasonFacts) bool { return f.input.Trend.VelocityNorm > 0.3 },
		text:  fixed("positive growth dynamics"),
	},
	{
		fires: func(f reasonFacts) bool { return f.input.Trend.VelocityNorm < -0.2 },
		text:  fixed("negative growth dynamics"),
	},
	{
		fires: func(f reasonFacts) bool { return f.input.Trend.AccelerationNorm >= BreakoutAcceleration },
		text:  fixed("accelerating momentum"),
	},
	{
		fires: func(f reasonFacts) bool { return f.input.Trend.AccelerationNorm < -0.3 },
		text:  fixed("decelerating momentum"),
	},
	{
		fires: func(f reasonFacts) bool { return f.components.RelativeGap >= 0.15 },
		text:  fixed("trend-adjusted score well above base"),
	},
	{
		fires: func(f reasonFacts) bool { return f.input.Profile == ProfileWhale },
		text:  fixed("large-audience dampening applied"),
	},
	{
		fires: func(f reasonFacts) bool { return f.input.Profile == ProfileInfluencer },
		text:  fixed("mid-audience dampening applied"),
	},
	{
		fires: func(f reasonFacts) bool { return f.components.RiskPenalty > 0 },
		text: func(f reasonFacts) string {
			return fmt.Sprintf("%s risk penalty applied", f.input.RiskLevel)
		},
	},
	{
		fires: func(f reasonFacts) bool {
			return f.badge == BadgeRising && f.score >= BreakoutThreshold && f.input.Trend.AccelerationNorm < BreakoutAcceleration
		},
		text: fixed("breakout withheld: acceleration below threshold"),
	},
	{
		fires: func(f reasonFacts) bool {
			return f.badge == BadgeRising && f.score >= BreakoutThreshold && f.input.RiskLevel == RiskHigh
		},
		text: fixed("breakout withheld: high risk"),
	},
	{
		fires: func(f reasonFacts) bool { return f.noConf },
		text:  fixed("confidence unavailable: insufficient sample data"),
	},
}

func explain(f reasonFacts) []string {
	reasons := make([]string, 0, len(reasonChecklist))
	for _, rule := range reasonChecklist {
		if rule.fires(f) {
			reasons = append(reasons, rule.text(f))
		}
	}
	return reasons
}
