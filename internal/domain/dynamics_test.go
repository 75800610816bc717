package domain

import (
	"math"
	"testing"
	"time"
)

func TestEstimateDynamics_Empty(t *testing.T) {
	now := time.Now()
	result := EstimateDynamics(DynamicsInput{
		WindowStart: now.Add(-24 * time.Hour),
		WindowEnd:   now,
	})

	if result.SampleCount != 0 {
		t.Errorf("expected 0 samples, got %d", result.SampleCount)
	}
	if result.Latest != nil {
		t.Error("expected no latest point")
	}
	if result.Dynamics.VelocityNorm != 0 || result.Dynamics.AccelerationNorm != 0 {
		t.Errorf("expected zero dynamics, got %+v", result.Dynamics)
	}
	if result.Dynamics.State != TrendStable {
		t.Errorf("expected stable, got %s", result.Dynamics.State)
	}
}

func TestEstimateDynamics_InvalidWindow(t *testing.T) {
	now := time.Now()
	result := EstimateDynamics(DynamicsInput{
		Points:      []InfluencePoint{{Influence: 100, ObservedAt: now}},
		WindowStart: now,
		WindowEnd:   now.Add(-time.Hour),
	})

	if result.SampleCount != 0 {
		t.Errorf("expected 0 samples for invalid window, got %d", result.SampleCount)
	}
}

func TestEstimateDynamics_SinglePoint(t *testing.T) {
	now := time.Now()
	result := EstimateDynamics(DynamicsInput{
		Points:      []InfluencePoint{{Influence: 400, ObservedAt: now.Add(-time.Hour)}},
		WindowStart: now.Add(-24 * time.Hour),
		WindowEnd:   now,
	})

	if result.SampleCount != 1 {
		t.Errorf("expected 1 sample, got %d", result.SampleCount)
	}
	if result.Latest == nil || result.Latest.Influence != 400 {
		t.Errorf("expected latest 400, got %+v", result.Latest)
	}
	if result.Dynamics.VelocityNorm != 0 {
		t.Errorf("expected zero velocity, got %f", result.Dynamics.VelocityNorm)
	}
}

func TestEstimateDynamics_VelocityAndAcceleration(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	input := DynamicsInput{
		// deliberately out of order
		Points: []InfluencePoint{
			{Influence: 300, ObservedAt: start.Add(9 * time.Hour)},
			{Influence: 100, ObservedAt: start.Add(1 * time.Hour)},
			{Influence: 150, ObservedAt: start.Add(5 * time.Hour)},
		},
		WindowStart: start,
		WindowEnd:   start.Add(10 * time.Hour),
	}

	result := EstimateDynamics(input)

	if result.SampleCount != 3 {
		t.Errorf("expected 3 samples, got %d", result.SampleCount)
	}
	if math.Abs(result.Dynamics.VelocityNorm-2.0) > 1e-9 {
		t.Errorf("expected velocity 2.0, got %f", result.Dynamics.VelocityNorm)
	}
	// (300-150)/150 - (150-100)/100 = 1.0 - 0.5
	if math.Abs(result.Dynamics.AccelerationNorm-0.5) > 1e-9 {
		t.Errorf("expected acceleration 0.5, got %f", result.Dynamics.AccelerationNorm)
	}
	if result.Dynamics.State != TrendGrowing {
		t.Errorf("expected growing, got %s", result.Dynamics.State)
	}
	if result.Latest == nil || result.Latest.Influence != 300 {
		t.Errorf("expected latest 300, got %+v", result.Latest)
	}
}

func TestEstimateDynamics_ExcludesPointsOutsideWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)

	result := EstimateDynamics(DynamicsInput{
		Points: []InfluencePoint{
			{Influence: 900, ObservedAt: start.Add(-time.Hour)},
			{Influence: 200, ObservedAt: start},
			{Influence: 100, ObservedAt: end},
			{Influence: 5, ObservedAt: end.Add(time.Minute)},
			{Influence: math.NaN(), ObservedAt: start.Add(time.Hour)},
		},
		WindowStart: start,
		WindowEnd:   end,
	})

	if result.SampleCount != 2 {
		t.Fatalf("expected 2 samples, got %d", result.SampleCount)
	}
	if math.Abs(result.Dynamics.VelocityNorm-(-0.5)) > 1e-9 {
		t.Errorf("expected velocity -0.5, got %f", result.Dynamics.VelocityNorm)
	}
	if result.Dynamics.State != TrendCooling {
		t.Errorf("expected cooling, got %s", result.Dynamics.State)
	}
}

func TestEstimateDynamics_ZeroStartDoesNotDivideByZero(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	result := EstimateDynamics(DynamicsInput{
		Points: []InfluencePoint{
			{Influence: 0, ObservedAt: start.Add(time.Hour)},
			{Influence: 5, ObservedAt: start.Add(2 * time.Hour)},
		},
		WindowStart: start,
		WindowEnd:   start.Add(3 * time.Hour),
	})

	if math.IsInf(result.Dynamics.VelocityNorm, 0) || math.IsNaN(result.Dynamics.VelocityNorm) {
		t.Fatalf("velocity not finite: %f", result.Dynamics.VelocityNorm)
	}
	if result.Dynamics.VelocityNorm != 5 {
		t.Errorf("expected velocity 5, got %f", result.Dynamics.VelocityNorm)
	}
}
