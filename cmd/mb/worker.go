package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/quantaleap/meshbench/internal/adapters"
	"github.com/quantaleap/meshbench/internal/config"
	"github.com/quantaleap/meshbench/internal/notify"
	"github.com/quantaleap/meshbench/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	var (
		configPath string
		runID      string
		algorithm  string
		limit      int
		dryRun     bool
		workerID   string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Claim and execute queued jobs",
		Long:  "Runs one worker session over a run's queue: claims todo tokens by atomic rename, executes each through its adapter with retry and deadline policy, and stages result rows for consolidation. Multiple workers may run concurrently against the same queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := loadEnv(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			session := &worker.Session{
				Config:    cfg,
				Layout:    layout,
				Registry:  buildRegistry(cfg),
				RunID:     runID,
				Algorithm: algorithm,
				Limit:     limit,
				DryRun:    dryRun,
				WorkerID:  workerID,
			}
			counts, err := session.Run(ctx)

			out, perr := printYAML(counts)
			if perr != nil {
				return perr
			}
			fmt.Fprint(cmd.OutOrStdout(), out)

			if !dryRun && counts.Processed > 0 {
				notify.New(cfg.Slack).SessionDone(runID, session.WorkerID,
					counts.Processed, counts.Completed, counts.Failed)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to meshbench config file")
	cmd.Flags().StringVar(&runID, "run", "", "run identifier (required)")
	cmd.Flags().StringVar(&algorithm, "algo", "", "only process this algorithm's tokens")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after processing this many tokens")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count claimable tokens without executing")
	cmd.Flags().StringVar(&workerID, "worker-id", "", "claim identity (defaults to the OS user)")
	cmd.MarkFlagRequired("run")
	return cmd
}

// buildRegistry binds every configured algorithm to its adapter. Only
// the script adapter is built in; an algorithm without a command stays
// unregistered and fails lookup with a permanent error at claim time.
func buildRegistry(cfg *config.Config) *adapters.Registry {
	reg := adapters.NewRegistry()
	for name, a := range cfg.Algorithms {
		if a.Command == "" {
			continue
		}
		key := a.Adapter
		if key == "" {
			key = name
		}
		reg.Register(key, &adapters.ScriptAdapter{Command: a.Command})
	}
	return reg
}
