package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantaleap/meshbench/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product catalog",
	}
	cmd.AddCommand(newCatalogBuildCmd())
	return cmd
}

func newCatalogBuildCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Scan the products tree and rewrite the catalog table",
		Long:  "Walks products/<product>/<variant>/ under the workspace, collects input images and optional ground truth, and overwrites catalog.csv.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, layout, err := loadEnv(configPath)
			if err != nil {
				return err
			}
			n, err := catalog.Build(layout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog: %d items written to %s\n", n, layout.CatalogPath())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to meshbench config file")
	return cmd
}
