package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/churn-triage/internal/engine"
	"github.com/miradorstack/churn-triage/internal/features"
	"github.com/miradorstack/churn-triage/internal/ingest"
	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/risk"
)

type scoreFlags struct {
	input    string
	idColumn string
	out      string
	top      int
}

// scoreReport is the JSON document written by `churnctl score --out`.
type scoreReport struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Source      string                  `json:"source"`
	IDColumn    string                  `json:"id_column"`
	Thresholds  risk.Thresholds         `json:"thresholds"`
	TierCounts  map[string]int          `json:"tier_counts"`
	Customers   []models.ScoredCustomer `json:"customers"`
}

func newScoreCmd(root *rootFlags) *cobra.Command {
	flags := &scoreFlags{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a customer CSV file",
		Example: `  churnctl score --input customers.csv
  churnctl score --input customers.csv --id-column member_no --out reports/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, root, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "CSV file to score")
	cmd.Flags().StringVar(&flags.idColumn, "id-column", "", "Identifier column (defaults to features.idColumn)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Write a JSON report to this file, or a timestamped file inside this directory")
	cmd.Flags().IntVar(&flags.top, "top", 10, "Number of highest-risk customers to print")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runScore(cmd *cobra.Command, root *rootFlags, flags *scoreFlags) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}
	idColumn := flags.idColumn
	if idColumn == "" {
		idColumn = cfg.Features.IDColumn
	}

	f, err := os.Open(flags.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	df, err := ingest.ReadCSV(f)
	if err != nil {
		return err
	}

	pipeline := engine.NewPipeline(logger, newLoader(cfg, logger), features.NewSchema(cfg.Features.Numeric, cfg.Features.Categorical))
	table, err := pipeline.Run(cmd.Context(), df, idColumn)
	if err != nil {
		return err
	}

	printTable(cmd.OutOrStdout(), table, flags.top)

	if flags.out == "" {
		return nil
	}
	report := scoreReport{
		GeneratedAt: time.Now().UTC(),
		Source:      filepath.Base(flags.input),
		IDColumn:    idColumn,
		Thresholds:  table.Thresholds,
		TierCounts:  table.TierCounts(),
		Customers:   table.Customers,
	}
	path := reportPath(flags.out, strings.TrimSuffix(report.Source, filepath.Ext(report.Source)), report.GeneratedAt)
	if err := exportJSON(path, report); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Exported to:", path)
	return nil
}

func printTable(w io.Writer, table models.ScoredTable, top int) {
	counts := table.TierCounts()
	fmt.Fprintf(w, "Scored %d customers (T90=%.4f T95=%.4f T99=%.4f)\n",
		len(table.Customers), table.Thresholds.T90, table.Thresholds.T95, table.Thresholds.T99)
	for _, tier := range risk.Tiers {
		fmt.Fprintf(w, "  %-7s %-10s %d\n", tier.String(), tier.Label(), counts[tier.String()])
	}
	if top <= 0 || len(table.Customers) == 0 {
		return
	}
	if top > len(table.Customers) {
		top = len(table.Customers)
	}
	fmt.Fprintf(w, "\nTop %d customers:\n", top)
	for _, c := range table.Customers[:top] {
		fmt.Fprintf(w, "  %-16s %.6f  %s\n", c.CustomerID, c.ChurnProba, c.RiskTier)
	}
}
