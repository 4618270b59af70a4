// Package config provides YAML-based configuration loading for meshbench.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level meshbench configuration, loaded from meshbench.yaml.
type Config struct {
	Workspace   string                     `yaml:"workspace"`
	CodeVersion string                     `yaml:"code_version"`
	Worker      WorkerConfig               `yaml:"worker"`
	Algorithms  map[string]AlgorithmConfig `yaml:"algorithms"`
	Slack       SlackConfig                `yaml:"slack"`
	Dashboard   DashboardConfig            `yaml:"dashboard"`
}

// WorkerConfig holds execution-loop tuning for worker sessions.
type WorkerConfig struct {
	DeadlineSeconds    int   `yaml:"deadline_seconds"`
	RetryDelaysSeconds []int `yaml:"retry_delays_seconds"`
	HeartbeatSeconds   int   `yaml:"heartbeat_seconds"`
	StalenessSeconds   int   `yaml:"staleness_seconds"`
}

// AlgorithmConfig describes one registered generation algorithm: its
// input-selection policy, adapter binding and cost bookkeeping.
type AlgorithmConfig struct {
	Adapter         string       `yaml:"adapter"` // adapter registry key; defaults to the algorithm name
	Command         string       `yaml:"command"` // for the script adapter
	Policy          PolicyConfig `yaml:"policy"`
	PriceUSD        float64      `yaml:"price_usd"`
	DeadlineSeconds int          `yaml:"deadline_seconds"` // overrides worker default when set
}

// PolicyConfig selects which of an item's input images feed a job.
// Kind is one of single, first_k, min_all, min_max.
type PolicyConfig struct {
	Kind        string `yaml:"kind"`
	K           int    `yaml:"k"`
	MinRequired int    `yaml:"min_required"`
	NMin        int    `yaml:"n_min"`
	NMax        int    `yaml:"n_max"`
}

// SlackConfig enables optional summary notifications. An empty token
// disables delivery.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DashboardConfig holds the status dashboard listen address.
type DashboardConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if c.CodeVersion == "" {
		c.CodeVersion = "dev"
	}
	if c.Worker.DeadlineSeconds == 0 {
		c.Worker.DeadlineSeconds = 480
	}
	if c.Worker.RetryDelaysSeconds == nil {
		c.Worker.RetryDelaysSeconds = []int{10, 30, 60}
	}
	if c.Worker.HeartbeatSeconds == 0 {
		c.Worker.HeartbeatSeconds = 30
	}
	if c.Worker.StalenessSeconds == 0 {
		c.Worker.StalenessSeconds = 600
	}
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = "127.0.0.1:8270"
	}
	for name, a := range c.Algorithms {
		if a.Adapter == "" {
			a.Adapter = name
		}
		if a.Policy.Kind == "" {
			a.Policy.Kind = "single"
		}
		if a.DeadlineSeconds == 0 {
			a.DeadlineSeconds = c.Worker.DeadlineSeconds
		}
		c.Algorithms[name] = a
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if len(c.Algorithms) == 0 {
		errs = append(errs, "at least one algorithm is required")
	}
	for name, a := range c.Algorithms {
		switch a.Policy.Kind {
		case "single":
		case "first_k":
			if a.Policy.K <= 0 {
				errs = append(errs, fmt.Sprintf("algorithms.%s.policy.k must be positive", name))
			}
		case "min_all":
			if a.Policy.NMin <= 0 {
				errs = append(errs, fmt.Sprintf("algorithms.%s.policy.n_min must be positive", name))
			}
		case "min_max":
			if a.Policy.NMin <= 0 || a.Policy.NMax < a.Policy.NMin {
				errs = append(errs, fmt.Sprintf("algorithms.%s.policy needs 0 < n_min <= n_max", name))
			}
		default:
			errs = append(errs, fmt.Sprintf("algorithms.%s.policy.kind %q is unknown", name, a.Policy.Kind))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Deadline returns the effective execution deadline for an algorithm.
func (c *Config) Deadline(algorithm string) time.Duration {
	if a, ok := c.Algorithms[algorithm]; ok && a.DeadlineSeconds > 0 {
		return time.Duration(a.DeadlineSeconds) * time.Second
	}
	return time.Duration(c.Worker.DeadlineSeconds) * time.Second
}

// RetryDelays returns the fixed backoff schedule between attempts.
func (c *Config) RetryDelays() []time.Duration {
	out := make([]time.Duration, len(c.Worker.RetryDelaysSeconds))
	for i, s := range c.Worker.RetryDelaysSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}
