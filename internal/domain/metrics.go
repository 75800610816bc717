package domain

import "math"

// AccountMetrics is the fully populated metric set for one evaluation.
// produced by the MetricsNormalizer, never mutated afterwards.
type AccountMetrics struct {
	// InfluenceBase is the current influence score, domain [0, 1000].
	InfluenceBase float64

	// XScore is a secondary quality score, carried through but unused by the formulas.
	XScore float64

	// SignalNoise is the quality-vs-noise ratio, domain [0, 10].
	// the engine does not weight it; the sample-adequacy estimator does.
	SignalNoise float64

	RiskLevel RiskLevel
	Profile   Profile
}

// TrendDynamics holds the normalized momentum indicators.
type TrendDynamics struct {
	VelocityNorm     float64
	AccelerationNorm float64

	// State is informational on input; the engine always recomputes it.
	State TrendState
}

// RawAccountMetrics is the caller-facing shape where every field may be absent.
// nil pointers and empty strings mean "absent" and are defaulted.
type RawAccountMetrics struct {
	InfluenceBase *float64
	XScore        *float64
	SignalNoise   *float64
	RiskLevel     string
	Profile       string
}

// RawTrendDynamics is the caller-facing momentum shape.
type RawTrendDynamics struct {
	VelocityNorm     *float64
	AccelerationNorm *float64
	State            string
}

// MetricDefaults is the single table of values substituted for absent fields.
// changing a default is a one-line edit here or in the defaults file.
type MetricDefaults struct {
	InfluenceBase    float64
	XScore           float64
	SignalNoise      float64
	RiskLevel        RiskLevel
	Profile          Profile
	VelocityNorm     float64
	AccelerationNorm float64
}

// DefaultMetricDefaults returns the stock defaults table.
func DefaultMetricDefaults() MetricDefaults {
	return MetricDefaults{
		InfluenceBase:    0,
		XScore:           0,
		SignalNoise:      5,
		RiskLevel:        RiskLow,
		Profile:          ProfileRetail,
		VelocityNorm:     0,
		AccelerationNorm: 0,
	}
}

// Validate checks that the defaults table itself is usable.
func (d MetricDefaults) Validate() error {
	if !d.RiskLevel.IsValid() {
		return malformed("defaults.risk_level", "is not a known risk level")
	}
	if !d.Profile.IsValid() {
		return malformed("defaults.profile", "is not a known profile")
	}
	for field, v := range map[string]float64{
		"defaults.influence_base":    d.InfluenceBase,
		"defaults.x_score":           d.XScore,
		"defaults.signal_noise":      d.SignalNoise,
		"defaults.velocity_norm":     d.VelocityNorm,
		"defaults.acceleration_norm": d.AccelerationNorm,
	} {
		if !isFinite(v) {
			return malformed(field, "is not a finite number")
		}
	}
	return nil
}

// Float returns a pointer to v, handy when building raw inputs.
func Float(v float64) *float64 {
	return &v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
