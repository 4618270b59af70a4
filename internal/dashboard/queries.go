package dashboard

import (
	"sort"

	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/tabular"
	"github.com/quantaleap/meshbench/internal/workspace"
)

// RunSummary is one run's status histogram.
type RunSummary struct {
	RunID    string         `json:"run_id"`
	Total    int            `json:"total"`
	Statuses map[string]int `json:"statuses"`
}

// runSummaries aggregates the generations table per run, sorted by run id.
func runSummaries(layout workspace.Layout) ([]RunSummary, error) {
	table, err := tabular.Load(layout.SSOTPath())
	if err != nil {
		return nil, err
	}

	byRun := make(map[string]*RunSummary)
	for _, row := range table.Rows {
		runID := row["run_id"]
		s, ok := byRun[runID]
		if !ok {
			s = &RunSummary{RunID: runID, Statuses: make(map[string]int)}
			byRun[runID] = s
		}
		s.Total++
		status := row["status"]
		if status == "" {
			status = models.StatusEnqueued
		}
		s.Statuses[status]++
	}

	out := make([]RunSummary, 0, len(byRun))
	for _, s := range byRun {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

// runJobs returns one run's rows, optionally filtered by status, in
// table order.
func runJobs(layout workspace.Layout, runID, status string) ([]map[string]string, error) {
	table, err := tabular.Load(layout.SSOTPath())
	if err != nil {
		return nil, err
	}

	jobs := make([]map[string]string, 0)
	for _, row := range table.Rows {
		if row["run_id"] != runID {
			continue
		}
		if status != "" && row["status"] != status {
			continue
		}
		jobs = append(jobs, row)
	}
	return jobs, nil
}
