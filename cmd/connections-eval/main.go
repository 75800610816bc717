package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/config"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	defaultsFile string
	logLevel     string
	pretty       bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "connections-eval",
		Short: "Evaluate trend and early-signal scores offline",
		Long: `connections-eval runs the scoring engine against values given as flags
and prints the result as JSON. Omitted flags fall back to the defaults table,
exactly like the HTTP endpoints.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.defaultsFile, "defaults", os.Getenv("SCORING_DEFAULTS_FILE"), "YAML file overriding the scoring defaults")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "indent JSON output")

	cmd.AddCommand(trendCmd(opts))
	cmd.AddCommand(earlySignalCmd(opts))

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newUseCase builds the engine from the defaults file and wraps it for evaluation.
func (o *rootOptions) newUseCase(stderr io.Writer) (*application.EvaluateUseCase, error) {
	logger := logging.NewWithWriter(stderr, logging.ParseLevel(o.logLevel))

	defaults, err := config.LoadScoringDefaults(o.defaultsFile)
	if err != nil {
		return nil, err
	}
	engine, err := domain.NewEngine(defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	logger.Debug("engine ready", "defaults_file", o.defaultsFile, slog.Any("defaults", defaults))
	return application.NewEvaluateUseCase(engine, logger), nil
}

func (o *rootOptions) print(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// floatFlag returns a pointer to the flag value only when the user set it.
func floatFlag(cmd *cobra.Command, name string) (*float64, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	v, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
