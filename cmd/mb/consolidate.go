package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantaleap/meshbench/internal/consolidate"
	"github.com/quantaleap/meshbench/internal/notify"
)

func newConsolidateCmd() *cobra.Command {
	var (
		configPath string
		runID      string
		status     string
		limit      int
		dryRun     bool
		strict     bool
		fixStatus  bool
	)

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Reconcile a run's records against on-disk evidence",
		Long:  "Folds staged worker results into the system-of-record, recomputes each job's status from markers and artifacts, backfills missing fields, and merges duplicate rows. Safe to run at any time, including while workers are active.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := loadEnv(configPath)
			if err != nil {
				return err
			}

			sum, err := consolidate.Run(cfg, layout, consolidate.Options{
				RunID:     runID,
				Status:    status,
				Limit:     limit,
				DryRun:    dryRun,
				Strict:    strict,
				FixStatus: fixStatus,
			})
			if sum != nil {
				out, perr := printYAML(sum)
				if perr != nil {
					return perr
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			}
			if err != nil {
				return err
			}

			if !dryRun {
				notify.New(cfg.Slack).ConsolidateDone(runID, sum.After, sum.ConflictsResolved, sum.Downgraded)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to meshbench config file")
	cmd.Flags().StringVar(&runID, "run", "", "run identifier (required)")
	cmd.Flags().StringVar(&status, "status", "", "only reconcile rows currently in this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap how many rows are reconciled")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report repairs without writing")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when repairs were needed")
	cmd.Flags().BoolVar(&fixStatus, "fix-status", true, "downgrade completed rows whose artifact is missing")
	cmd.MarkFlagRequired("run")
	return cmd
}
