package consolidate

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/queue"
	"github.com/quantaleap/meshbench/internal/workspace"
)

// sidecarLimit caps how much of an error sidecar is pulled into the
// record.
const sidecarLimit = 2000

// Evidence is everything the engine can learn about one job from disk:
// state markers, heartbeat freshness, artifacts and the error sidecar.
// It is recomputed per consolidation, never persisted.
type Evidence struct {
	CompletedMarker bool
	CompletedAt     time.Time
	FailedMarker    bool
	FailedAt        time.Time

	InProgressMarker bool
	HeartbeatAt      time.Time
	HeartbeatFresh   bool

	ArtifactPath string // absolute; empty when no artifact found
	ArtifactSize int64
	ArtifactAt   time.Time

	PreviewPaths []string // absolute
	SidecarError string
}

// Gather collects a job's on-disk evidence. Staleness bounds how old an
// inprogress heartbeat may be and still count as a live claim.
func Gather(layout workspace.Layout, runID, jobID string, staleness time.Duration, now time.Time) Evidence {
	var ev Evidence

	if info, err := os.Stat(layout.MarkerPath(runID, jobID, queue.StateCompleted)); err == nil {
		ev.CompletedMarker = true
		ev.CompletedAt = info.ModTime()
	}
	if info, err := os.Stat(layout.MarkerPath(runID, jobID, queue.StateFailed)); err == nil {
		ev.FailedMarker = true
		ev.FailedAt = info.ModTime()
	}
	if info, err := os.Stat(layout.MarkerPath(runID, jobID, queue.StateInProgress)); err == nil {
		ev.InProgressMarker = true
		ev.HeartbeatAt = info.ModTime()
		ev.HeartbeatFresh = now.Sub(info.ModTime()) < staleness
	}

	outDir := layout.OutputDir(runID, jobID)
	if path := findArtifact(outDir); path != "" {
		if info, err := os.Stat(path); err == nil {
			ev.ArtifactPath = path
			ev.ArtifactSize = info.Size()
			ev.ArtifactAt = info.ModTime()
		}
	}
	for i := 0; i < 3; i++ {
		p := filepath.Join(outDir, previewName(i))
		if _, err := os.Stat(p); err == nil {
			ev.PreviewPaths = append(ev.PreviewPaths, p)
		}
	}

	if data, err := os.ReadFile(layout.ErrorSidecarPath(runID, jobID)); err == nil {
		msg := string(data)
		if len(msg) > sidecarLimit {
			msg = msg[:sidecarLimit]
		}
		ev.SidecarError = strings.TrimSpace(msg)
	}

	return ev
}

// findArtifact locates the job's output model: the deterministic
// stem-named file first, then the legacy model.glb fallback.
func findArtifact(outDir string) string {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return ""
	}
	var named []string
	legacy := ""
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".glb") {
			continue
		}
		if e.Name() == "model.glb" {
			legacy = filepath.Join(outDir, e.Name())
			continue
		}
		named = append(named, filepath.Join(outDir, e.Name()))
	}
	if len(named) > 0 {
		sort.Strings(named)
		return named[0]
	}
	return legacy
}

func previewName(i int) string {
	return "preview_" + string(rune('0'+i)) + ".png"
}

// genuineDuration reports whether the record carries worker-supplied
// timing that must never be overwritten by marker-derived estimates.
func genuineDuration(rec models.GenerationRecord) bool {
	d, err := strconv.ParseFloat(rec.DurationS, 64)
	return err == nil && d > 1.0
}
