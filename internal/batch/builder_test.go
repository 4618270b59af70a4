package batch

import (
	"os"
	"testing"

	"github.com/quantaleap/meshbench/internal/config"
	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/queue"
	"github.com/quantaleap/meshbench/internal/tabular"
	"github.com/quantaleap/meshbench/internal/workspace"
)

func itemFor(productID, variant string) models.CatalogItem {
	return models.CatalogItem{ProductID: productID, Variant: variant, Name: productID + "/" + variant}
}

func testConfig(t *testing.T, ws string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
workspace: ` + ws + `
code_version: v1
algorithms:
  x:
    policy:
      kind: min_all
      n_min: 2
`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

// writeCatalog persists catalog rows for the three-item scenario used
// across the builder tests.
func writeCatalog(t *testing.T, layout workspace.Layout) {
	t.Helper()
	tab := &tabular.Table{
		Columns: []string{"product_id", "variant", "name", "images", "image_count", "gt_path"},
		Rows: []map[string]string{
			{
				"product_id": "100001", "variant": "default", "name": "100001/default",
				"images":      "products/100001/default/inputs/front_A.png;products/100001/default/inputs/side_B.png",
				"image_count": "2", "gt_path": "products/100001/default/gt/scan.glb",
			},
			{
				"product_id": "100002", "variant": "default", "name": "100002/default",
				"images": "", "image_count": "0", "gt_path": "products/100002/default/gt/scan.glb",
			},
			{
				"product_id": "100003", "variant": "default", "name": "100003/default",
				"images":      "products/100003/default/inputs/a.png;products/100003/default/inputs/b.png;products/100003/default/inputs/c.png",
				"image_count": "3", "gt_path": "",
			},
		},
	}
	if err := tab.Write(layout.CatalogPath()); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
}

func TestBuild_EndToEnd(t *testing.T) {
	layout := workspace.New(t.TempDir())
	cfg := testConfig(t, layout.Root)
	writeCatalog(t, layout)

	opts := Options{RunID: "run1", Algorithms: []string{"x"}}
	sum, err := Build(cfg, layout, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if sum.Considered != 3 {
		t.Errorf("Considered = %d, want 3", sum.Considered)
	}
	if sum.Enqueued != 2 {
		t.Errorf("Enqueued = %d, want 2 (100001, 100003)", sum.Enqueued)
	}
	if sum.Skipped["insufficient_images(min=2)"] != 1 {
		t.Errorf("Skipped = %v, want one insufficient_images(min=2)", sum.Skipped)
	}

	todos, err := queue.ListTodo(layout.QueueDir("run1"))
	if err != nil {
		t.Fatalf("listTodo: %v", err)
	}
	if len(todos) != 2 {
		t.Errorf("len(todo tokens) = %d, want 2", len(todos))
	}

	// The manifest must carry one row per considered pair.
	manifest, err := tabular.Load(layout.ManifestPath("run1"))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(manifest.Rows) != 3 {
		t.Errorf("manifest rows = %d, want 3", len(manifest.Rows))
	}

	if _, err := os.Stat(layout.SnapshotPath("run1")); err != nil {
		t.Errorf("config snapshot not written: %v", err)
	}

	// Idempotency: a second identical build enqueues nothing.
	sum2, err := Build(cfg, layout, opts)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if sum2.Enqueued != 0 {
		t.Errorf("second build Enqueued = %d, want 0", sum2.Enqueued)
	}
	if sum2.Skipped[models.SkipAlreadyQueued] != 2 {
		t.Errorf("second build Skipped = %v, want 2 already_queued", sum2.Skipped)
	}
}

func TestBuild_SkipsCompletedJobs(t *testing.T) {
	layout := workspace.New(t.TempDir())
	cfg := testConfig(t, layout.Root)
	writeCatalog(t, layout)

	// Dry-run once to learn the job id batch would assign to 100001.
	dry, err := Build(cfg, layout, Options{RunID: "run1", Algorithms: []string{"x"}, DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	var jobID string
	for _, r := range dry.Rows {
		if r.ProductID == "100001" {
			jobID = r.JobID
		}
	}
	if jobID == "" {
		t.Fatal("dry run produced no job id for 100001")
	}

	rec := models.GenerationRecord{RunID: "run1", JobID: jobID, Status: models.StatusCompleted}
	if _, _, err := tabular.Upsert(layout.SSOTPath(), models.GenerationColumns, []map[string]string{rec.Row()}, models.KeyColumns); err != nil {
		t.Fatalf("seed ssot: %v", err)
	}

	sum, err := Build(cfg, layout, Options{RunID: "run1", Algorithms: []string{"x"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sum.Skipped[models.SkipAlreadyCompleted] != 1 {
		t.Errorf("Skipped = %v, want one already_completed", sum.Skipped)
	}
	if sum.Enqueued != 1 {
		t.Errorf("Enqueued = %d, want 1 (only 100003)", sum.Enqueued)
	}
}

func TestBuild_DryRunWritesNothing(t *testing.T) {
	layout := workspace.New(t.TempDir())
	cfg := testConfig(t, layout.Root)
	writeCatalog(t, layout)

	sum, err := Build(cfg, layout, Options{RunID: "run1", Algorithms: []string{"x"}, DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if sum.Enqueued != 2 {
		t.Errorf("dry run Enqueued = %d, want 2", sum.Enqueued)
	}
	todos, _ := queue.ListTodo(layout.QueueDir("run1"))
	if len(todos) != 0 {
		t.Errorf("dry run created %d tokens", len(todos))
	}
	if _, err := os.Stat(layout.ManifestPath("run1")); !os.IsNotExist(err) {
		t.Error("dry run wrote a manifest")
	}
}

func TestBuild_GroundTruthFilterAndLimit(t *testing.T) {
	layout := workspace.New(t.TempDir())
	cfg := testConfig(t, layout.Root)
	writeCatalog(t, layout)

	sum, err := Build(cfg, layout, Options{RunID: "run1", Algorithms: []string{"x"}, WithGTOnly: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// 100003 has no ground truth and is filtered before consideration.
	if sum.Considered != 2 {
		t.Errorf("Considered = %d, want 2 with GT filter", sum.Considered)
	}
	if sum.Enqueued != 1 {
		t.Errorf("Enqueued = %d, want 1", sum.Enqueued)
	}

	layout2 := workspace.New(t.TempDir())
	cfg2 := testConfig(t, layout2.Root)
	writeCatalog(t, layout2)
	sum2, err := Build(cfg2, layout2, Options{RunID: "run1", Algorithms: []string{"x"}, Limit: 1})
	if err != nil {
		t.Fatalf("build with limit: %v", err)
	}
	if sum2.Enqueued != 1 {
		t.Errorf("Enqueued = %d, want capped at 1", sum2.Enqueued)
	}
}

func TestBuild_UnknownAlgorithm(t *testing.T) {
	layout := workspace.New(t.TempDir())
	cfg := testConfig(t, layout.Root)
	writeCatalog(t, layout)

	sum, err := Build(cfg, layout, Options{RunID: "run1", Algorithms: []string{"nope"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sum.Skipped["unknown_algo_policy:nope"] != 3 {
		t.Errorf("Skipped = %v, want 3 unknown_algo_policy:nope", sum.Skipped)
	}
}

func TestBuild_MissingCatalogIsFatal(t *testing.T) {
	layout := workspace.New(t.TempDir())
	cfg := testConfig(t, layout.Root)
	if _, err := Build(cfg, layout, Options{RunID: "run1", Algorithms: []string{"x"}}); err == nil {
		t.Fatal("expected fatal error for missing catalog")
	}
}
