package consolidate

import "github.com/quantaleap/meshbench/internal/models"

// statusRule maps one evidence predicate to a job status. Rules are
// evaluated top to bottom; the first match wins.
type statusRule struct {
	name    string
	applies func(Evidence) bool
	status  string
}

var statusRules = []statusRule{
	{
		name:    "completed_marker_with_artifact",
		applies: func(ev Evidence) bool { return ev.CompletedMarker && ev.ArtifactPath != "" },
		status:  models.StatusCompleted,
	},
	{
		name:    "failed_marker",
		applies: func(ev Evidence) bool { return ev.FailedMarker },
		status:  models.StatusFailed,
	},
	{
		name:    "fresh_heartbeat",
		applies: func(ev Evidence) bool { return ev.InProgressMarker && ev.HeartbeatFresh },
		status:  models.StatusRunning,
	},
}

// DesiredStatus recomputes a job's true status from evidence. When no
// rule matches, the record's current status stands (defaulting to
// enqueued when empty). In particular a stale heartbeat with no
// terminal marker is left as-is rather than auto-downgraded: operators
// decide what to do with genuinely stuck jobs.
func DesiredStatus(ev Evidence, current string) string {
	for _, r := range statusRules {
		if r.applies(ev) {
			return r.status
		}
	}
	if current == "" {
		return models.StatusEnqueued
	}
	return current
}
