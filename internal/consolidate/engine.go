// Package consolidate repairs the system-of-record from on-disk
// evidence. Workers only ever write per-job staging rows; this engine
// folds them into the shared table, recomputes each job's true status
// from markers and artifacts, backfills missing fields, and merges any
// duplicate rows so exactly one record per (run_id, job_id) survives.
package consolidate

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/quantaleap/meshbench/internal/config"
	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/oplog"
	"github.com/quantaleap/meshbench/internal/tabular"
	"github.com/quantaleap/meshbench/internal/workspace"
)

// Options control one consolidation pass.
type Options struct {
	RunID     string
	Status    string // reconcile only rows currently in this status
	Limit     int    // cap reconciled rows; 0 = no cap
	DryRun    bool
	Strict    bool // fail instead of summarizing when repairs were needed
	FixStatus bool // downgrade completed rows whose artifact is missing
}

// Summary is the structured result of a consolidation.
type Summary struct {
	RunID             string         `yaml:"run_id"`
	Folded            int            `yaml:"folded"`
	Considered        int            `yaml:"considered"`
	Inserted          int            `yaml:"inserted"`
	Updated           int            `yaml:"updated"`
	Unchanged         int            `yaml:"unchanged"`
	ConflictsResolved int            `yaml:"conflicts_resolved"`
	Downgraded        int            `yaml:"downgraded"`
	Before            map[string]int `yaml:"status_before"`
	After             map[string]int `yaml:"status_after"`
	DryRun            bool           `yaml:"dry_run,omitempty"`
}

// Run executes one consolidation for a run. Per-job evidence problems
// are absorbed into that job's row; only whole-run failures (lock, bad
// table) abort.
func Run(cfg *config.Config, layout workspace.Layout, opts Options) (*Summary, error) {
	if opts.RunID == "" {
		return nil, fmt.Errorf("consolidate: run id is required")
	}

	sum := &Summary{
		RunID:  opts.RunID,
		Before: make(map[string]int),
		After:  make(map[string]int),
		DryRun: opts.DryRun,
	}

	if !opts.DryRun {
		folded, err := foldStaging(layout, opts.RunID)
		if err != nil {
			return nil, err
		}
		sum.Folded = folded
	}

	table, err := tabular.Load(layout.SSOTPath())
	if err != nil {
		return nil, err
	}

	staleness := time.Duration(cfg.Worker.StalenessSeconds) * time.Second
	now := time.Now()

	// Reconcile rows in scope; keep the run's other rows untouched so
	// duplicate merging sees the whole run.
	var runRows []map[string]string
	var changed []map[string]string
	scoped := 0
	for _, row := range table.Rows {
		if row["run_id"] != opts.RunID {
			continue
		}
		inScope := (opts.Status == "" || row["status"] == opts.Status) &&
			(opts.Limit == 0 || scoped < opts.Limit)
		if !inScope {
			runRows = append(runRows, row)
			continue
		}
		scoped++
		sum.Considered++
		sum.Before[statusOrEnqueued(row["status"])]++

		rec := models.RecordFromRow(row)
		ev := Gather(layout, opts.RunID, rec.JobID, staleness, now)
		fixed, downgraded := reconcile(layout, rec, ev, opts.FixStatus)
		if downgraded {
			sum.Downgraded++
		}

		newRow := fixed.Row()
		// Preserve columns outside the record schema (downstream
		// metric placeholders) verbatim.
		for col, v := range row {
			if _, known := newRow[col]; !known {
				newRow[col] = v
			}
		}
		sum.After[statusOrEnqueued(newRow["status"])]++
		if reflect.DeepEqual(row, newRow) {
			sum.Unchanged++
		} else {
			changed = append(changed, newRow)
		}
		runRows = append(runRows, newRow)
	}

	merged, conflicts := MergeDuplicates(runRows)
	sum.ConflictsResolved = conflicts

	if !opts.DryRun {
		if err := persist(layout, opts.RunID, merged, changed, conflicts, sum); err != nil {
			return nil, err
		}
		if err := oplog.Append(layout.OpLogPath(), oplog.Entry{
			Op:     "consolidate",
			RunID:  opts.RunID,
			Detail: sum,
		}); err != nil {
			return nil, err
		}
	}

	if opts.Strict && (sum.ConflictsResolved > 0 || sum.Downgraded > 0) {
		return sum, fmt.Errorf("consolidate: strict: run %s needed repairs (%d conflicts resolved, %d downgraded)",
			opts.RunID, sum.ConflictsResolved, sum.Downgraded)
	}
	return sum, nil
}

// persist writes corrections back. When duplicates were found the
// run's rows are replaced wholesale with the deduplicated set so no
// duplicate can survive; otherwise the standard keyed upsert applies
// only the changed rows.
func persist(layout workspace.Layout, runID string, merged, changed []map[string]string, conflicts int, sum *Summary) error {
	if conflicts > 0 {
		return tabular.Update(layout.SSOTPath(), func(t *tabular.Table) error {
			t.EnsureColumns(models.GenerationColumns)
			var kept []map[string]string
			for _, row := range t.Rows {
				if row["run_id"] != runID {
					kept = append(kept, row)
				}
			}
			t.Rows = append(kept, merged...)
			sum.Updated = len(merged)
			return nil
		})
	}
	if len(changed) == 0 {
		return nil
	}
	ins, upd, err := tabular.Upsert(layout.SSOTPath(), models.GenerationColumns, changed, models.KeyColumns)
	if err != nil {
		return err
	}
	sum.Inserted = ins
	sum.Updated = upd
	return nil
}

// reconcile applies the truth table and backfills to one record.
func reconcile(layout workspace.Layout, rec models.GenerationRecord, ev Evidence, fixStatus bool) (models.GenerationRecord, bool) {
	out := rec
	out.Status = DesiredStatus(ev, rec.Status)

	// A completed claim without an artifact is definitively wrong, not
	// ambiguous: downgrade it and say why.
	downgraded := false
	if fixStatus && rec.Status == models.StatusCompleted && ev.ArtifactPath == "" {
		out.Status = models.StatusFailed
		out.Error = "consolidate: status was completed but no output artifact exists on disk"
		downgraded = true
	}

	backfillTiming(&out, ev)

	if ev.ArtifactPath != "" {
		rel := relativeTo(layout.Root, ev.ArtifactPath)
		if out.OutputPath == "" || !exists(layout.Resolve(out.OutputPath)) {
			out.OutputPath = rel
		}
	}
	if out.PreviewPaths == "" && len(ev.PreviewPaths) > 0 {
		rels := make([]string, len(ev.PreviewPaths))
		for i, p := range ev.PreviewPaths {
			rels[i] = relativeTo(layout.Root, p)
		}
		out.PreviewPaths = strings.Join(rels, ";")
	}
	if out.Error == "" && ev.SidecarError != "" {
		out.Error = ev.SidecarError
	}

	return out, downgraded
}

// backfillTiming derives missing timestamps from marker and artifact
// mtimes. A duration above one second is worker-reported and is never
// overwritten by these estimates.
func backfillTiming(rec *models.GenerationRecord, ev Evidence) {
	if genuineDuration(*rec) {
		return
	}
	if rec.StartedAt == "" && !ev.HeartbeatAt.IsZero() {
		rec.StartedAt = ev.HeartbeatAt.UTC().Format(models.Timestamp)
	}
	if rec.FinishedAt == "" {
		switch {
		case !ev.CompletedAt.IsZero():
			rec.FinishedAt = ev.CompletedAt.UTC().Format(models.Timestamp)
		case !ev.FailedAt.IsZero():
			rec.FinishedAt = ev.FailedAt.UTC().Format(models.Timestamp)
		case !ev.ArtifactAt.IsZero():
			rec.FinishedAt = ev.ArtifactAt.UTC().Format(models.Timestamp)
		}
	}
	if rec.StartedAt != "" && rec.FinishedAt != "" {
		start, err1 := time.Parse(models.Timestamp, rec.StartedAt)
		end, err2 := time.Parse(models.Timestamp, rec.FinishedAt)
		if err1 == nil && err2 == nil && !end.Before(start) {
			rec.DurationS = strconv.FormatFloat(end.Sub(start).Seconds(), 'f', 1, 64)
		}
	}
}

// foldStaging upserts every staged per-job row into the shared table.
// This is the only path worker results take into the system-of-record.
func foldStaging(layout workspace.Layout, runID string) (int, error) {
	dir := layout.StagingDir(runID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("consolidate: read staging dir %s: %w", dir, err)
	}

	var rows []map[string]string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		t, err := tabular.Load(filepath.Join(dir, e.Name()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "consolidate: skipping staging file %s: %v\n", e.Name(), err)
			continue
		}
		rows = append(rows, t.Rows...)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if _, _, err := tabular.Upsert(layout.SSOTPath(), models.GenerationColumns, rows, models.KeyColumns); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func statusOrEnqueued(s string) string {
	if s == "" {
		return models.StatusEnqueued
	}
	return s
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
