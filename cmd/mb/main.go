package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mb",
		Short: "Meshbench — image-to-3D generation benchmarking harness",
		Long:  "Meshbench enqueues, executes and reconciles image-to-3D generation jobs over a shared workspace directory.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newConsolidateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newWatchCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mb %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
