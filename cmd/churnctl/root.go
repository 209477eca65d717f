package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/churn-triage/internal/classifier"
	"github.com/miradorstack/churn-triage/internal/config"
	"github.com/miradorstack/churn-triage/internal/utils"
)

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "churnctl",
		Short:         "Offline tooling for the churn triage service",
		Long:          "churnctl scores customer CSV files against the configured model artifacts, inspects risk thresholds and manages the run store schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newScoreCmd(flags),
		newThresholdsCmd(flags),
		newMigrateCmd(flags),
	)
	return cmd
}

func (f *rootFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := "warn"
	if f.verbose {
		level = "debug"
	}
	return cfg, utils.NewLogger(level, false), nil
}

func newLoader(cfg *config.Config, logger *slog.Logger) *classifier.Loader {
	return classifier.NewFileLoader(logger, cfg.Artifacts.ModelPath, cfg.Artifacts.ThresholdsPath)
}
