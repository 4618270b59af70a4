package models

// CatalogItem is one row of the product catalog: a product/variant pair
// with its ordered input images. Read-only input to batch building.
type CatalogItem struct {
	ProductID   string
	Variant     string
	Name        string
	Images      []string // workspace-relative, canonical order
	GroundTruth string   // workspace-relative, empty if absent
}

// QueueToken is the write-once body of a queue token file. The token's
// state lives in its filename, never in the body.
type QueueToken struct {
	JobID          string   `yaml:"job_id"`
	RunID          string   `yaml:"run_id"`
	ProductID      string   `yaml:"product_id"`
	Variant        string   `yaml:"variant"`
	Algorithm      string   `yaml:"algorithm"`
	SelectedInputs []string `yaml:"selected_inputs"`
	GroundTruthRef string   `yaml:"ground_truth_ref,omitempty"`
	QueuedAt       string   `yaml:"queued_at"`
	CodeVersion    string   `yaml:"code_version"`
}

// Skip reasons recorded in the batch manifest. An empty reason means
// the job was enqueued.
const (
	SkipAlreadyCompleted = "already_completed"
	SkipAlreadyQueued    = "already_queued"
)

// ManifestRow is one row of the batch-build manifest: one entry per
// (catalog item, requested algorithm) pair considered.
type ManifestRow struct {
	RunID      string
	ProductID  string
	Variant    string
	Algorithm  string
	JobID      string
	InputCount string
	SkipReason string // empty when enqueued
}

// Row converts the manifest row to a tabular row.
func (m ManifestRow) Row() map[string]string {
	return map[string]string{
		"run_id":      m.RunID,
		"product_id":  m.ProductID,
		"variant":     m.Variant,
		"algorithm":   m.Algorithm,
		"job_id":      m.JobID,
		"input_count": m.InputCount,
		"skip_reason": m.SkipReason,
	}
}

// ManifestColumns is the column order of the manifest table.
var ManifestColumns = []string{
	"run_id", "product_id", "variant", "algorithm", "job_id",
	"input_count", "skip_reason",
}
