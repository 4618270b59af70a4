package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/quantaleap/meshbench/internal/config"
	"github.com/quantaleap/meshbench/internal/workspace"
)

// defaultConfigPath is where every subcommand looks for the harness
// config unless --config overrides it.
const defaultConfigPath = "meshbench.yaml"

// loadEnv reads the config file and derives the workspace layout from it.
func loadEnv(configPath string) (*config.Config, workspace.Layout, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, workspace.Layout{}, err
	}
	return cfg, workspace.New(cfg.Workspace), nil
}

// printYAML renders a command summary as YAML on the command's stdout.
func printYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return string(data), nil
}
