package models

import "time"

// Job statuses recorded in the system-of-record table.
const (
	StatusEnqueued  = "enqueued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StatusRank orders statuses by precedence for duplicate-row merging.
// Higher wins: a completed row beats a failed row for the same job.
var StatusRank = map[string]int{
	StatusCompleted: 4,
	StatusFailed:    3,
	StatusRunning:   2,
	StatusEnqueued:  1,
}

// Column names of the generations table. KeyColumns identify one job
// within one run; everything else is payload.
var (
	KeyColumns = []string{"run_id", "job_id"}

	GenerationColumns = []string{
		"run_id", "job_id", "product_id", "variant", "algorithm",
		"input_count", "image_set_hash", "status", "queued_at",
		"started_at", "finished_at", "duration_s", "output_path",
		"preview_paths", "worker_id", "error", "cost_usd",
		"provider_request_id", "code_version",
	}
)

// GenerationRecord is one row of the system-of-record table, keyed by
// (run_id, job_id). Workers write the initial row via staging files;
// the consolidate engine corrects and merges rows afterwards.
type GenerationRecord struct {
	RunID             string
	JobID             string
	ProductID         string
	Variant           string
	Algorithm         string
	InputCount        string
	ImageSetHash      string
	Status            string
	QueuedAt          string
	StartedAt         string
	FinishedAt        string
	DurationS         string
	OutputPath        string
	PreviewPaths      string
	WorkerID          string
	Error             string
	CostUSD           string
	ProviderRequestID string
	CodeVersion       string
}

// Row converts the record to a tabular row keyed by column name.
func (r GenerationRecord) Row() map[string]string {
	return map[string]string{
		"run_id":              r.RunID,
		"job_id":              r.JobID,
		"product_id":          r.ProductID,
		"variant":             r.Variant,
		"algorithm":           r.Algorithm,
		"input_count":         r.InputCount,
		"image_set_hash":      r.ImageSetHash,
		"status":              r.Status,
		"queued_at":           r.QueuedAt,
		"started_at":          r.StartedAt,
		"finished_at":         r.FinishedAt,
		"duration_s":          r.DurationS,
		"output_path":         r.OutputPath,
		"preview_paths":       r.PreviewPaths,
		"worker_id":           r.WorkerID,
		"error":               r.Error,
		"cost_usd":            r.CostUSD,
		"provider_request_id": r.ProviderRequestID,
		"code_version":        r.CodeVersion,
	}
}

// RecordFromRow builds a GenerationRecord from a tabular row. Unknown
// columns are ignored; missing columns yield empty fields.
func RecordFromRow(row map[string]string) GenerationRecord {
	return GenerationRecord{
		RunID:             row["run_id"],
		JobID:             row["job_id"],
		ProductID:         row["product_id"],
		Variant:           row["variant"],
		Algorithm:         row["algorithm"],
		InputCount:        row["input_count"],
		ImageSetHash:      row["image_set_hash"],
		Status:            row["status"],
		QueuedAt:          row["queued_at"],
		StartedAt:         row["started_at"],
		FinishedAt:        row["finished_at"],
		DurationS:         row["duration_s"],
		OutputPath:        row["output_path"],
		PreviewPaths:      row["preview_paths"],
		WorkerID:          row["worker_id"],
		Error:             row["error"],
		CostUSD:           row["cost_usd"],
		ProviderRequestID: row["provider_request_id"],
		CodeVersion:       row["code_version"],
	}
}

// Timestamp is the canonical format for all time fields in tables,
// tokens and markers.
const Timestamp = time.RFC3339
