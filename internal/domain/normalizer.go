package domain

// MomentumBound bounds velocity and acceleration before they reach the formulas.
const MomentumBound = 2.0

// NormalizationReport tells the caller what the normalizer did to the input.
// a clamped extreme account must be distinguishable from a genuine one.
type NormalizationReport struct {
	DefaultedFields []string `json:"defaulted_fields"`
	ClampedFields   []string `json:"clamped_fields"`
}

// Clamped returns true if any momentum input was clamped.
func (r NormalizationReport) Clamped() bool {
	return len(r.ClampedFields) > 0
}

// Defaulted returns true if any field was substituted from the defaults table.
func (r NormalizationReport) Defaulted() bool {
	return len(r.DefaultedFields) > 0
}

// NormalizedInput is the normalizer's output, ready for the trend adjuster.
type NormalizedInput struct {
	Metrics AccountMetrics
	Trend   TrendDynamics
	Report  NormalizationReport
}

// MetricsNormalizer fills absent fields from the defaults table and bounds momentum.
// it is a pure value; share one instance across goroutines freely.
type MetricsNormalizer struct {
	defaults MetricDefaults
}

// NewMetricsNormalizer creates a normalizer backed by the given defaults table.
func NewMetricsNormalizer(defaults MetricDefaults) MetricsNormalizer {
	return MetricsNormalizer{defaults: defaults}
}

// Defaults returns the defaults table in use.
func (n MetricsNormalizer) Defaults() MetricDefaults {
	return n.defaults
}

// Validate rejects present-but-unusable fields.
// absence is never an error here; only NaN, infinities and unknown enum values are.
func (n MetricsNormalizer) Validate(metrics RawAccountMetrics, trend RawTrendDynamics) error {
	numeric := []struct {
		name  string
		value *float64
	}{
		{"influence_base", metrics.InfluenceBase},
		{"x_score", metrics.XScore},
		{"signal_noise", metrics.SignalNoise},
		{"velocity_norm", trend.VelocityNorm},
		{"acceleration_norm", trend.AccelerationNorm},
	}
	for _, f := range numeric {
		if f.value != nil && !isFinite(*f.value) {
			return malformed(f.name, "is not a finite number")
		}
	}

	if metrics.RiskLevel != "" {
		if _, err := ParseRiskLevel(metrics.RiskLevel); err != nil {
			return malformed("risk_level", "must be one of low, medium, high")
		}
	}
	if metrics.Profile != "" {
		if _, err := ParseProfile(metrics.Profile); err != nil {
			return malformed("profile", "must be one of retail, influencer, whale")
		}
	}

	return nil
}

// Normalize produces a fully populated input.
// fallbackInfluence, when non-nil, replaces the table default for influence_base.
// callers must run Validate first; Normalize never fails.
func (n MetricsNormalizer) Normalize(metrics RawAccountMetrics, trend RawTrendDynamics, fallbackInfluence *float64) NormalizedInput {
	var report NormalizationReport
	d := n.defaults

	pick := func(name string, v *float64, def float64) float64 {
		if v == nil {
			report.DefaultedFields = append(report.DefaultedFields, name)
			return def
		}
		return *v
	}

	influenceDefault := d.InfluenceBase
	if fallbackInfluence != nil && isFinite(*fallbackInfluence) {
		influenceDefault = *fallbackInfluence
	}

	out := NormalizedInput{
		Metrics: AccountMetrics{
			InfluenceBase: pick("influence_base", metrics.InfluenceBase, influenceDefault),
			XScore:        pick("x_score", metrics.XScore, d.XScore),
			SignalNoise:   pick("signal_noise", metrics.SignalNoise, d.SignalNoise),
			RiskLevel:     d.RiskLevel,
			Profile:       d.Profile,
		},
	}

	if r, err := ParseRiskLevel(metrics.RiskLevel); err == nil {
		out.Metrics.RiskLevel = r
	} else {
		report.DefaultedFields = append(report.DefaultedFields, "risk_level")
	}
	if p, err := ParseProfile(metrics.Profile); err == nil {
		out.Metrics.Profile = p
	} else {
		report.DefaultedFields = append(report.DefaultedFields, "profile")
	}

	velocity := pick("velocity_norm", trend.VelocityNorm, d.VelocityNorm)
	acceleration := pick("acceleration_norm", trend.AccelerationNorm, d.AccelerationNorm)

	if bounded := clamp(velocity, -MomentumBound, MomentumBound); bounded != velocity {
		report.ClampedFields = append(report.ClampedFields, "velocity_norm")
		velocity = bounded
	}
	if bounded := clamp(acceleration, -MomentumBound, MomentumBound); bounded != acceleration {
		report.ClampedFields = append(report.ClampedFields, "acceleration_norm")
		acceleration = bounded
	}

	out.Trend = TrendDynamics{
		VelocityNorm:     velocity,
		AccelerationNorm: acceleration,
		State:            DeriveTrendState(velocity, acceleration),
	}
	out.Report = report

	return out
}
