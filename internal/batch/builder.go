// Package batch builds generation runs: it expands the catalog against
// the requested algorithms into queue tokens, one per job, skipping
// work that is already done or already queued. Builds are idempotent;
// re-running one enqueues nothing new.
package batch

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/quantaleap/meshbench/internal/catalog"
	"github.com/quantaleap/meshbench/internal/config"
	"github.com/quantaleap/meshbench/internal/inputs"
	"github.com/quantaleap/meshbench/internal/jobid"
	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/oplog"
	"github.com/quantaleap/meshbench/internal/queue"
	"github.com/quantaleap/meshbench/internal/tabular"
	"github.com/quantaleap/meshbench/internal/workspace"
)

// Options control one batch build invocation.
type Options struct {
	RunID      string
	Algorithms []string
	Filters    Filters
	WithGTOnly bool
	Limit      int // stop after enqueueing this many jobs; 0 = no cap
	DryRun     bool
}

// Summary is the structured result of a batch build.
type Summary struct {
	RunID      string         `yaml:"run_id"`
	Considered int            `yaml:"considered"`
	Enqueued   int            `yaml:"enqueued"`
	Skipped    map[string]int `yaml:"skipped"`
	DryRun     bool           `yaml:"dry_run,omitempty"`

	Rows []models.ManifestRow `yaml:"-"`
}

// Build runs one batch creation. Per-row problems become manifest skip
// reasons; only configuration-class failures (missing catalog, bad
// filter pattern, lock failure) abort the build.
func Build(cfg *config.Config, layout workspace.Layout, opts Options) (*Summary, error) {
	if opts.RunID == "" {
		return nil, fmt.Errorf("batch: run id is required")
	}
	if len(opts.Algorithms) == 0 {
		return nil, fmt.Errorf("batch: at least one algorithm is required")
	}
	if err := opts.Filters.Validate(); err != nil {
		return nil, err
	}

	items, err := catalog.Load(layout.CatalogPath())
	if err != nil {
		return nil, err
	}

	completed, err := completedJobs(layout.SSOTPath(), opts.RunID)
	if err != nil {
		return nil, err
	}

	if !opts.DryRun {
		if err := layout.EnsureRunDirs(opts.RunID); err != nil {
			return nil, err
		}
		lock := flock.New(layout.BuildLockPath(opts.RunID))
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("batch: acquire build lock for %s: %w", opts.RunID, err)
		}
		defer lock.Unlock()
	}

	sum := &Summary{RunID: opts.RunID, Skipped: make(map[string]int), DryRun: opts.DryRun}
	queueDir := layout.QueueDir(opts.RunID)
	queuedAt := time.Now().UTC().Format(models.Timestamp)

items:
	for _, item := range items {
		if !opts.Filters.Match(item) {
			continue
		}
		if opts.WithGTOnly && item.GroundTruth == "" {
			continue
		}
		for _, algo := range opts.Algorithms {
			if opts.Limit > 0 && sum.Enqueued >= opts.Limit {
				break items
			}
			sum.Considered++
			row := buildOne(cfg, layout, opts, item, algo, completed, queueDir, queuedAt)
			sum.Rows = append(sum.Rows, row)
			if row.SkipReason == "" {
				sum.Enqueued++
			} else {
				sum.Skipped[row.SkipReason]++
			}
		}
	}

	if !opts.DryRun {
		if err := persist(cfg, layout, opts, sum); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

// buildOne evaluates one (item, algorithm) pair and enqueues a token
// when nothing rules it out. Failures become the row's skip reason.
func buildOne(cfg *config.Config, layout workspace.Layout, opts Options, item models.CatalogItem, algo string, completed map[string]bool, queueDir, queuedAt string) models.ManifestRow {
	row := models.ManifestRow{
		RunID:     opts.RunID,
		ProductID: item.ProductID,
		Variant:   item.Variant,
		Algorithm: algo,
	}

	algoCfg, ok := cfg.Algorithms[algo]
	if !ok {
		row.SkipReason = "unknown_algo_policy:" + algo
		return row
	}

	ordered := inputs.CanonicalOrder(item.Images)
	selected, reason := Select(algoCfg.Policy, ordered)
	row.InputCount = strconv.Itoa(len(selected))
	row.JobID = jobid.Compute(algo, item.ProductID, item.Variant, selected, cfg.CodeVersion)
	if reason != "" {
		row.SkipReason = reason
		return row
	}

	if completed[row.JobID] {
		row.SkipReason = models.SkipAlreadyCompleted
		return row
	}
	queued, err := queue.HasToken(queueDir, row.JobID)
	if err != nil {
		row.SkipReason = "queue_check_failed:" + err.Error()
		return row
	}
	if queued {
		row.SkipReason = models.SkipAlreadyQueued
		return row
	}

	if opts.DryRun {
		return row
	}

	stem := queue.Stem(item.ProductID, item.Variant, algo, len(selected), inputs.TagSuffix(selected), opts.RunID, row.JobID)
	_, err = queue.Create(queueDir, stem, models.QueueToken{
		JobID:          row.JobID,
		RunID:          opts.RunID,
		ProductID:      item.ProductID,
		Variant:        item.Variant,
		Algorithm:      algo,
		SelectedInputs: selected,
		GroundTruthRef: item.GroundTruth,
		QueuedAt:       queuedAt,
		CodeVersion:    cfg.CodeVersion,
	})
	if err != nil {
		row.SkipReason = "enqueue_failed:" + err.Error()
	}
	return row
}

// completedJobs returns the job ids with a completed record for the run.
func completedJobs(ssotPath, runID string) (map[string]bool, error) {
	t, err := tabular.Load(ssotPath)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, row := range t.Rows {
		if row["run_id"] == runID && row["status"] == models.StatusCompleted {
			out[row["job_id"]] = true
		}
	}
	return out, nil
}

// persist writes the manifest table (overwritten each build), the run
// config snapshot and the build-summary log entry.
func persist(cfg *config.Config, layout workspace.Layout, opts Options, sum *Summary) error {
	manifest := &tabular.Table{Columns: models.ManifestColumns}
	for _, r := range sum.Rows {
		manifest.Rows = append(manifest.Rows, r.Row())
	}
	if err := manifest.Write(layout.ManifestPath(opts.RunID)); err != nil {
		return err
	}

	snap := struct {
		RunID       string                     `yaml:"run_id"`
		CreatedAt   string                     `yaml:"created_at"`
		CodeVersion string                     `yaml:"code_version"`
		Algorithms  []string                   `yaml:"algorithms"`
		Include     []string                   `yaml:"include,omitempty"`
		Exclude     []string                   `yaml:"exclude,omitempty"`
		WithGTOnly  bool                       `yaml:"with_gt_only,omitempty"`
		Limit       int                        `yaml:"limit,omitempty"`
		Configs     map[string]config.AlgorithmConfig `yaml:"algorithm_configs"`
	}{
		RunID:       opts.RunID,
		CreatedAt:   time.Now().UTC().Format(models.Timestamp),
		CodeVersion: cfg.CodeVersion,
		Algorithms:  opts.Algorithms,
		Include:     opts.Filters.Include,
		Exclude:     opts.Filters.Exclude,
		WithGTOnly:  opts.WithGTOnly,
		Limit:       opts.Limit,
		Configs:     pickConfigs(cfg, opts.Algorithms),
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("batch: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(layout.SnapshotPath(opts.RunID), data, 0o644); err != nil {
		return fmt.Errorf("batch: write snapshot: %w", err)
	}

	return oplog.Append(layout.OpLogPath(), oplog.Entry{
		Op:     "batch_create",
		RunID:  opts.RunID,
		Detail: sum,
	})
}

func pickConfigs(cfg *config.Config, algorithms []string) map[string]config.AlgorithmConfig {
	out := make(map[string]config.AlgorithmConfig, len(algorithms))
	for _, a := range algorithms {
		if c, ok := cfg.Algorithms[a]; ok {
			out[a] = c
		}
	}
	return out
}
