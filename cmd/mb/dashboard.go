package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/quantaleap/meshbench/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve a read-only HTTP view of the workspace",
		Long:  "Starts an HTTP server exposing run summaries and job rows from the system-of-record, plus Prometheus metrics. Blocks until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := loadEnv(configPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Dashboard.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			return dashboard.Start(ctx, dashboard.StartOpts{
				Layout: layout,
				Addr:   addr,
				Out:    cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to meshbench config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to dashboard.addr from config)")
	return cmd
}
