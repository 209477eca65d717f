package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miradorstack/churn-triage/internal/repo"
)

func newMigrateCmd(root *rootFlags) *cobra.Command {
	var dsn, dir string
	cmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back the run store schema",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = cfg.Storage.DSN
			}
			if dir == "" {
				dir = cfg.Storage.MigrationsPath
			}
			if dsn == "" {
				return fmt.Errorf("no postgres DSN: set storage.dsn or pass --dsn")
			}
			switch args[0] {
			case "up":
				err = repo.MigrateUp(dsn, dir)
			case "down":
				err = repo.MigrateDown(dsn, dir)
			default:
				return fmt.Errorf("unknown direction %q (want up or down)", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to storage.dsn)")
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (defaults to storage.migrationsPath)")
	return cmd
}
