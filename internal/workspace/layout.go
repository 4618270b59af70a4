// Package workspace defines the shared on-disk layout every stage of the
// harness reads and writes. The directory tree is the system's only
// coordination medium, so all paths are derived here and nowhere else.
//
// Layout, relative to the workspace root:
//
//	catalog.csv                    product catalog (catalog build output)
//	generations.csv                system-of-record table, all runs
//	meshbench.log.yaml             append-only operational log (YAML stream)
//	products/<pid>/<variant>/      source images (inputs/, optional gt/)
//	runs/<run>/queue/              one token file per job, state in name
//	runs/<run>/markers/            <job_id>.completed|.failed|.inprogress
//	runs/<run>/staging/            per-job result rows (<job_id>.csv)
//	runs/<run>/outputs/<job_id>/   generated artifact + previews
//	runs/<run>/manifest.csv        latest batch-build manifest
//	runs/<run>/config.yaml         config snapshot from batch creation
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves workspace paths from a root directory.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) Layout {
	return Layout{Root: root}
}

// CatalogPath is the product catalog table.
func (l Layout) CatalogPath() string { return filepath.Join(l.Root, "catalog.csv") }

// SSOTPath is the workspace-wide generations table.
func (l Layout) SSOTPath() string { return filepath.Join(l.Root, "generations.csv") }

// OpLogPath is the append-only operational log.
func (l Layout) OpLogPath() string { return filepath.Join(l.Root, "meshbench.log.yaml") }

// ProductsDir holds the source images, one tree per product/variant.
func (l Layout) ProductsDir() string { return filepath.Join(l.Root, "products") }

// RunDir is the per-run state root.
func (l Layout) RunDir(runID string) string { return filepath.Join(l.Root, "runs", runID) }

// QueueDir holds the run's queue token files.
func (l Layout) QueueDir(runID string) string { return filepath.Join(l.RunDir(runID), "queue") }

// MarkerDir holds the run's job state markers and error sidecars.
func (l Layout) MarkerDir(runID string) string { return filepath.Join(l.RunDir(runID), "markers") }

// StagingDir holds per-job result rows written by workers.
func (l Layout) StagingDir(runID string) string { return filepath.Join(l.RunDir(runID), "staging") }

// OutputDir is the artifact directory for one job.
func (l Layout) OutputDir(runID, jobID string) string {
	return filepath.Join(l.RunDir(runID), "outputs", jobID)
}

// ManifestPath is the run's batch-build manifest table.
func (l Layout) ManifestPath(runID string) string {
	return filepath.Join(l.RunDir(runID), "manifest.csv")
}

// SnapshotPath is the run's configuration snapshot.
func (l Layout) SnapshotPath(runID string) string {
	return filepath.Join(l.RunDir(runID), "config.yaml")
}

// BuildLockPath guards batch-build manifest and log writes for one run.
func (l Layout) BuildLockPath(runID string) string {
	return filepath.Join(l.RunDir(runID), "build.lock")
}

// MarkerPath returns the path of one state marker, e.g. state "completed".
func (l Layout) MarkerPath(runID, jobID, state string) string {
	return filepath.Join(l.MarkerDir(runID), jobID+"."+state)
}

// ErrorSidecarPath is the per-job error text written next to the markers.
func (l Layout) ErrorSidecarPath(runID, jobID string) string {
	return filepath.Join(l.MarkerDir(runID), jobID+".error.txt")
}

// StagingPath is the per-job staged result row file.
func (l Layout) StagingPath(runID, jobID string) string {
	return filepath.Join(l.StagingDir(runID), jobID+".csv")
}

// EnsureRunDirs creates the run's queue, marker, staging and outputs
// directories.
func (l Layout) EnsureRunDirs(runID string) error {
	for _, dir := range []string{
		l.QueueDir(runID),
		l.MarkerDir(runID),
		l.StagingDir(runID),
		filepath.Join(l.RunDir(runID), "outputs"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("workspace: mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// Resolve joins a workspace-relative reference to an absolute path.
// Absolute references pass through unchanged.
func (l Layout) Resolve(ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(l.Root, ref)
}
