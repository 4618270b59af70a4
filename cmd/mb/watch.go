package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/quantaleap/meshbench/internal/consolidate"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		runID      string
		schedule   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Consolidate a run on a schedule",
		Long:  "Runs consolidation for a run on a cron schedule so statuses, timestamps and artifacts stay reconciled while workers are active. Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := loadEnv(configPath)
			if err != nil {
				return err
			}
			sched, err := cronParser.Parse(schedule)
			if err != nil {
				return fmt.Errorf("parse schedule %q: %w", schedule, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching run %s on schedule %q... (Ctrl+C to stop)\n", runID, schedule)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			for {
				next := sched.Next(time.Now())
				timer := time.NewTimer(time.Until(next))
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}

				sum, err := consolidate.Run(cfg, layout, consolidate.Options{
					RunID:     runID,
					FixStatus: true,
				})
				if err != nil {
					fmt.Fprintf(out, "consolidate error: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "[%s] consolidated %s: %d considered, %d folded, %d conflicts, %d downgraded\n",
					time.Now().Format("15:04:05"), runID,
					sum.Considered, sum.Folded, sum.ConflictsResolved, sum.Downgraded)
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to meshbench config file")
	cmd.Flags().StringVar(&runID, "run", "", "run identifier (required)")
	cmd.Flags().StringVar(&schedule, "schedule", "*/5 * * * *", "5-field cron expression")
	cmd.MarkFlagRequired("run")
	return cmd
}
