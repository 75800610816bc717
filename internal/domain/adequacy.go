package domain

import "math"

const (
	// MinAdequateSamples is the fewest observations that yield a confidence.
	MinAdequateSamples = 3

	// TargetSamples is the history length at which coverage saturates.
	TargetSamples = 14

	maxSignalNoise = 10.0
)

// SampleConfidence estimates how far an evaluation can be trusted.
// it lives with the data layer, not the engine: the engine only passes it through.
//
// formula: coverage * (0.5 + 0.5 * quality), rounded to 2 decimals
// where coverage = min(1, samples / 14) and quality = signal_noise / 10.
// returns nil below MinAdequateSamples rather than guessing.
func SampleConfidence(sampleCount int, signalNoise float64) *float64 {
	if sampleCount < MinAdequateSamples {
		return nil
	}
	if !isFinite(signalNoise) {
		signalNoise = 0
	}

	coverage := math.Min(1, float64(sampleCount)/TargetSamples)
	quality := clamp(signalNoise, 0, maxSignalNoise) / maxSignalNoise

	conf := math.Round(coverage*(0.5+0.5*quality)*100) / 100
	return &conf
}
