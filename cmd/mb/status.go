package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/tabular"
	"github.com/quantaleap/meshbench/internal/workspace"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		runID      string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-run job counts from the system-of-record",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, layout, err := loadEnv(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for {
				if watch {
					// Clear screen.
					fmt.Fprint(out, "\033[2J\033[H")
				}
				if err := printStatus(out, layout, runID); err != nil {
					return err
				}
				if !watch {
					return nil
				}
				time.Sleep(5 * time.Second)
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to meshbench config file")
	cmd.Flags().StringVar(&runID, "run", "", "limit to one run")
	cmd.Flags().BoolVar(&watch, "watch", false, "auto-refresh every 5 seconds")
	return cmd
}

func printStatus(out io.Writer, layout workspace.Layout, runID string) error {
	table, err := tabular.Load(layout.SSOTPath())
	if err != nil {
		return err
	}

	type counts struct {
		total, enqueued, running, completed, failed int
	}
	byRun := make(map[string]*counts)
	for _, row := range table.Rows {
		if runID != "" && row["run_id"] != runID {
			continue
		}
		c, ok := byRun[row["run_id"]]
		if !ok {
			c = &counts{}
			byRun[row["run_id"]] = c
		}
		c.total++
		switch row["status"] {
		case models.StatusRunning:
			c.running++
		case models.StatusCompleted:
			c.completed++
		case models.StatusFailed:
			c.failed++
		default:
			c.enqueued++
		}
	}

	runs := make([]string, 0, len(byRun))
	for r := range byRun {
		runs = append(runs, r)
	}
	sort.Strings(runs)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTOTAL\tENQUEUED\tRUNNING\tCOMPLETED\tFAILED")
	for _, r := range runs {
		c := byRun[r]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", r, c.total, c.enqueued, c.running, c.completed, c.failed)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "(no records)\t\t\t\t\t")
	}
	return w.Flush()
}
