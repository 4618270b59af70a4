package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quantaleap/meshbench/internal/queue"
	"github.com/quantaleap/meshbench/internal/workspace"
)

// writeMarker creates or refreshes a job state marker. The marker body
// records the worker holding the job; its mtime is the heartbeat.
func writeMarker(layout workspace.Layout, runID, jobID, state, workerID string) error {
	path := layout.MarkerPath(runID, jobID, state)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("worker: mkdir markers: %w", err)
	}
	body := fmt.Sprintf("worker: %s\ntime: %s\n", workerID, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("worker: write marker %s: %w", path, err)
	}
	return nil
}

// clearInProgress removes the job's inprogress marker once a terminal
// marker exists.
func clearInProgress(layout workspace.Layout, runID, jobID string) {
	os.Remove(layout.MarkerPath(runID, jobID, queue.StateInProgress))
}

// writeErrorSidecar records the failure message next to the markers for
// later reconciliation and debugging.
func writeErrorSidecar(layout workspace.Layout, runID, jobID, msg string) {
	path := layout.ErrorSidecarPath(runID, jobID)
	if err := os.WriteFile(path, []byte(msg), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "worker: write error sidecar %s: %v\n", path, err)
	}
}
