package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joacominatel/connections/internal/domain"
)

// defaultsFile mirrors domain.MetricDefaults; absent keys keep the stock value.
type defaultsFile struct {
	InfluenceBase    *float64 `yaml:"influence_base"`
	XScore           *float64 `yaml:"x_score"`
	SignalNoise      *float64 `yaml:"signal_noise"`
	RiskLevel        string   `yaml:"risk_level"`
	Profile          string   `yaml:"profile"`
	VelocityNorm     *float64 `yaml:"velocity_norm"`
	AccelerationNorm *float64 `yaml:"acceleration_norm"`
}

// LoadScoringDefaults builds the engine's defaults table.
// an empty path returns domain.DefaultMetricDefaults unchanged.
func LoadScoringDefaults(path string) (domain.MetricDefaults, error) {
	defaults := domain.DefaultMetricDefaults()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("read scoring defaults: %w", err)
	}
	return ParseScoringDefaults(data)
}

// ParseScoringDefaults applies a YAML document over the stock defaults.
func ParseScoringDefaults(data []byte) (domain.MetricDefaults, error) {
	defaults := domain.DefaultMetricDefaults()

	var file defaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return defaults, fmt.Errorf("parse scoring defaults: %w", err)
	}

	override := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	override(&defaults.InfluenceBase, file.InfluenceBase)
	override(&defaults.XScore, file.XScore)
	override(&defaults.SignalNoise, file.SignalNoise)
	override(&defaults.VelocityNorm, file.VelocityNorm)
	override(&defaults.AccelerationNorm, file.AccelerationNorm)

	if file.RiskLevel != "" {
		defaults.RiskLevel = domain.RiskLevel(file.RiskLevel)
	}
	if file.Profile != "" {
		defaults.Profile = domain.Profile(file.Profile)
	}

	if err := defaults.Validate(); err != nil {
		return domain.DefaultMetricDefaults(), fmt.Errorf("scoring defaults: %w", err)
	}
	return defaults, nil
}
