package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miradorstack/churn-triage/internal/risk"
)

func newThresholdsCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Load the model artifacts and print the normalized tier thresholds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			artifacts, err := newLoader(cfg, logger).Load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			t := artifacts.Thresholds
			fmt.Fprintf(w, "strategy: %s\n", artifacts.ThresholdStrategy)
			fmt.Fprintf(w, "features: %d\n", len(artifacts.FeatureSchema))
			fmt.Fprintf(w, "  %-7s p >= %.6f\n", risk.TierImminent, t.T99)
			fmt.Fprintf(w, "  %-7s p >= %.6f\n", risk.TierHigh, t.T95)
			fmt.Fprintf(w, "  %-7s p >= %.6f\n", risk.TierMedium, t.T90)
			fmt.Fprintf(w, "  %-7s p <  %.6f\n", risk.TierStable, t.T90)
			return nil
		},
	}
}
