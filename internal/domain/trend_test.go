package domain

import (
	"math"
	"testing"
)

func TestAdjustTrend_WorkedExample(t *testing.T) {
	result := AdjustTrend(500, TrendDynamics{VelocityNorm: 0.5, AccelerationNorm: 0.3})

	if result.AdjustedScore != 610 {
		t.Errorf("expected adjusted score 610, got %d", result.AdjustedScore)
	}
	if result.Delta != 110 {
		t.Errorf("expected delta 110, got %d", result.Delta)
	}
	if result.State != TrendGrowing {
		t.Errorf("expected state growing, got %s", result.State)
	}
}

func TestAdjustTrend_ClampsToScale(t *testing.T) {
	tests := []struct {
		name     string
		base     float64
		dynamics TrendDynamics
		expected Score
	}{
		{"upper bound", 900, TrendDynamics{VelocityNorm: 2, AccelerationNorm: 2}, 1000},
		{"lower bound", 900, TrendDynamics{VelocityNorm: -2, AccelerationNorm: -2}, 0},
		{"zero base", 0, TrendDynamics{VelocityNorm: 2, AccelerationNorm: 2}, 0},
		{"no momentum", 437, TrendDynamics{}, 437},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AdjustTrend(tt.base, tt.dynamics)
			if result.AdjustedScore != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result.AdjustedScore)
			}
		})
	}
}

func TestAdjustTrend_ClampInvariant(t *testing.T) {
	for base := 0.0; base <= 1000; base += 50 {
		for v := -2.0; v <= 2.0; v += 0.25 {
			for a := -2.0; a <= 2.0; a += 0.5 {
				result := AdjustTrend(base, TrendDynamics{VelocityNorm: v, AccelerationNorm: a})
				if result.AdjustedScore < MinScore || result.AdjustedScore > MaxScore {
					t.Fatalf("adjusted score %d out of range for base=%f v=%f a=%f", result.AdjustedScore, base, v, a)
				}
			}
		}
	}
}

func TestAdjustTrend_MonotonicInVelocity(t *testing.T) {
	for _, base := range []float64{0, 1, 120, 500, 999, 1000} {
		for _, a := range []float64{-2, -0.3, 0, 0.4, 2} {
			prev := AdjustTrend(base, TrendDynamics{VelocityNorm: -2, AccelerationNorm: a}).AdjustedScore
			for v := -1.9; v <= 2.0; v += 0.1 {
				next := AdjustTrend(base, TrendDynamics{VelocityNorm: v, AccelerationNorm: a}).AdjustedScore
				if next < prev {
					t.Fatalf("score decreased from %d to %d at base=%f v=%f a=%f", prev, next, base, v, a)
				}
				prev = next
			}
		}
	}
}

func TestAdjustTrend_DeltaMatchesScore(t *testing.T) {
	result := AdjustTrend(250, TrendDynamics{VelocityNorm: -0.4, AccelerationNorm: 0.1})

	expected := int(math.Round(float64(result.AdjustedScore) - 250))
	if result.Delta != expected {
		t.Errorf("expected delta %d, got %d", expected, result.Delta)
	}
	if result.Delta >= 0 {
		t.Errorf("expected negative delta for cooling account, got %d", result.Delta)
	}
}

func TestDeriveTrendState(t *testing.T) {
	tests := []struct {
		name         string
		velocity     float64
		acceleration float64
		expected     TrendState
	}{
		{"growing", 0.5, 0, TrendGrowing},
		{"growing wins over volatile", 0.21, 0.9, TrendGrowing},
		{"cooling", -0.5, 0, TrendCooling},
		{"cooling wins over volatile", -0.21, -0.9, TrendCooling},
		{"volatile positive", 0.1, 0.31, TrendVolatile},
		{"volatile negative", 0, -0.31, TrendVolatile},
		{"velocity boundary is stable", 0.2, 0, TrendStable},
		{"negative velocity boundary is stable", -0.2, 0, TrendStable},
		{"acceleration boundary is stable", 0, 0.3, TrendStable},
		{"flat", 0, 0, TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveTrendState(tt.velocity, tt.acceleration)
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
