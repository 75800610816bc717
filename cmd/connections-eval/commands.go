package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/domain"
)

type trendOutput struct {
	AdjustedScore int                        `json:"adjusted_score"`
	Delta         int                        `json:"delta"`
	State         string                     `json:"state"`
	Normalization domain.NormalizationReport `json:"normalization"`
}

type earlySignalOutput struct {
	EarlySignalScore      int                          `json:"early_signal_score"`
	Badge                 string                       `json:"badge"`
	Confidence            *float64                     `json:"confidence"`
	ConfidenceUnavailable bool                         `json:"confidence_unavailable"`
	Reasons               []string                     `json:"reasons"`
	AdjustedScore         int                          `json:"adjusted_score"`
	State                 string                       `json:"state"`
	Components            domain.EarlySignalComponents `json:"components"`
	Normalization         domain.NormalizationReport   `json:"normalization"`
}

// momentumUsage describes the accepted momentum range for a flag.
func momentumUsage(name string) string {
	return fmt.Sprintf("normalized %s, typically -1.5..1.5; clamped to -%g..%g", name, domain.MomentumBound, domain.MomentumBound)
}

func trendCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Compute the trend-adjusted influence score",
		Example: `  connections-eval trend --influence 500 --velocity 0.5 --acceleration 0.3
  connections-eval trend --influence 820 --x-score 700`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrend(cmd, opts)
		},
	}

	cmd.Flags().Float64("influence", 0, "influence score (0..1000)")
	cmd.Flags().Float64("x-score", 0, "x score (0..1000), carried through unchanged")
	cmd.Flags().Float64("velocity", 0, momentumUsage("velocity"))
	cmd.Flags().Float64("acceleration", 0, momentumUsage("acceleration"))

	return cmd
}

func runTrend(cmd *cobra.Command, opts *rootOptions) error {
	uc, err := opts.newUseCase(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var input application.TrendInput
	if input.InfluenceScore, err = floatFlag(cmd, "influence"); err != nil {
		return err
	}
	if input.XScore, err = floatFlag(cmd, "x-score"); err != nil {
		return err
	}
	if input.VelocityNorm, err = floatFlag(cmd, "velocity"); err != nil {
		return err
	}
	if input.AccelerationNorm, err = floatFlag(cmd, "acceleration"); err != nil {
		return err
	}

	out, err := uc.Trend(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("trend evaluation failed: %w", err)
	}

	return opts.print(cmd.OutOrStdout(), trendOutput{
		AdjustedScore: out.AdjustedScore,
		Delta:         out.Delta,
		State:         out.State,
		Normalization: out.Report,
	})
}

func earlySignalCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "early-signal",
		Short: "Classify an account's breakout potential",
		Example: `  connections-eval early-signal --base 500 --velocity 0.9 --acceleration 0.8 --risk low
  connections-eval early-signal --base 500 --adjusted 640 --profile whale --confidence 0.4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEarlySignal(cmd, opts)
		},
	}

	cmd.Flags().Float64("base", 0, "influence score before trend adjustment")
	cmd.Flags().Float64("adjusted", 0, "trend-adjusted influence; computed when absent")
	cmd.Flags().Float64("velocity", 0, momentumUsage("velocity"))
	cmd.Flags().Float64("acceleration", 0, momentumUsage("acceleration"))
	cmd.Flags().Float64("signal-noise", 0, "signal-to-noise ratio (0..10)")
	cmd.Flags().String("risk", "", "risk level (low, medium, high)")
	cmd.Flags().String("profile", "", "profile (retail, influencer, whale)")
	cmd.Flags().Float64("confidence", 0, "confidence (0..1); omit for unavailable")

	return cmd
}

func runEarlySignal(cmd *cobra.Command, opts *rootOptions) error {
	uc, err := opts.newUseCase(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var input application.EarlySignalInput
	floats := []struct {
		name string
		dst  **float64
	}{
		{"base", &input.InfluenceBase},
		{"adjusted", &input.InfluenceAdjusted},
		{"velocity", &input.VelocityNorm},
		{"acceleration", &input.AccelerationNorm},
		{"signal-noise", &input.SignalNoise},
		{"confidence", &input.Confidence},
	}
	for _, f := range floats {
		if *f.dst, err = floatFlag(cmd, f.name); err != nil {
			return err
		}
	}
	input.RiskLevel, _ = cmd.Flags().GetString("risk")
	input.Profile, _ = cmd.Flags().GetString("profile")

	out, err := uc.EarlySignal(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("early-signal evaluation failed: %w", err)
	}

	reasons := out.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	return opts.print(cmd.OutOrStdout(), earlySignalOutput{
		EarlySignalScore:      out.EarlySignalScore,
		Badge:                 out.Badge,
		Confidence:            out.Confidence,
		ConfidenceUnavailable: out.ConfidenceUnavailable,
		Reasons:               reasons,
		AdjustedScore:         out.AdjustedScore,
		State:                 out.State,
		Components:            out.Components,
		Normalization:         out.Report,
	})
}
