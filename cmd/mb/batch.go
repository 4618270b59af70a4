package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantaleap/meshbench/internal/batch"
	"github.com/quantaleap/meshbench/internal/notify"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build generation runs",
	}
	cmd.AddCommand(newBatchCreateCmd())
	return cmd
}

func newBatchCreateCmd() *cobra.Command {
	var (
		configPath string
		runID      string
		algorithms []string
		include    []string
		exclude    []string
		withGT     bool
		limit      int
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Expand the catalog into queue tokens for a run",
		Long:  "Evaluates every catalog item against the requested algorithms, computes job identities, and writes one todo queue token per job not already completed or queued. Re-running a build enqueues nothing new.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := loadEnv(configPath)
			if err != nil {
				return err
			}

			sum, err := batch.Build(cfg, layout, batch.Options{
				RunID:      runID,
				Algorithms: algorithms,
				Filters:    batch.Filters{Include: include, Exclude: exclude},
				WithGTOnly: withGT,
				Limit:      limit,
				DryRun:     dryRun,
			})
			if err != nil {
				return err
			}

			out, err := printYAML(sum)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)

			if !dryRun {
				notify.New(cfg.Slack).BatchCreated(runID, sum.Enqueued, sum.Considered, sum.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to meshbench config file")
	cmd.Flags().StringVar(&runID, "run", "", "run identifier (required)")
	cmd.Flags().StringSliceVar(&algorithms, "algo", nil, "algorithm to enqueue, repeatable (required)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "only items matching these product/variant patterns")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "drop items matching these patterns")
	cmd.Flags().BoolVar(&withGT, "with-gt", false, "only items that have ground truth")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after enqueueing this many jobs")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be enqueued without writing")
	cmd.MarkFlagRequired("run")
	cmd.MarkFlagRequired("algo")
	return cmd
}
