package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quantaleap/meshbench/internal/catalog"
	"github.com/quantaleap/meshbench/internal/tabular"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeTestConfig(t *testing.T, workspaceDir string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "meshbench.yaml")
	cfg := "workspace: " + workspaceDir + "\ncode_version: v1\nalgorithms:\n  tripo:\n    command: \"true\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func seedProduct(t *testing.T, workspaceDir, productID, variant string, images int) {
	t.Helper()
	dir := filepath.Join(workspaceDir, "products", productID, variant, "inputs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir inputs: %v", err)
	}
	for i := 0; i < images; i++ {
		name := filepath.Join(dir, "img_"+string(rune('a'+i))+".png")
		if err := os.WriteFile(name, []byte("png"), 0o644); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "mb ") {
		t.Errorf("output = %q, want mb version line", out)
	}
}

func TestUnknownCommandFails(t *testing.T) {
	if _, err := runCommand(t, "definitely-not-a-command"); err == nil {
		t.Error("unknown command must return an error")
	}
}

func TestCatalogBuildThenBatchDryRun(t *testing.T) {
	ws := t.TempDir()
	cfgPath := writeTestConfig(t, ws)
	seedProduct(t, ws, "100001", "base", 2)

	out, err := runCommand(t, "catalog", "build", "-c", cfgPath)
	if err != nil {
		t.Fatalf("catalog build: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 items") {
		t.Errorf("catalog output = %q, want 1 item", out)
	}

	out, err = runCommand(t, "batch", "create", "-c", cfgPath,
		"--run", "r1", "--algo", "tripo", "--dry-run")
	if err != nil {
		t.Fatalf("batch create: %v\n%s", err, out)
	}
	if !strings.Contains(out, "enqueued: 1") {
		t.Errorf("batch output = %q, want enqueued: 1", out)
	}

	// Dry run must leave the workspace untouched.
	if _, err := os.Stat(filepath.Join(ws, "runs")); !os.IsNotExist(err) {
		t.Error("dry run created run directories")
	}
}

func TestBatchCreateRequiresRun(t *testing.T) {
	ws := t.TempDir()
	cfgPath := writeTestConfig(t, ws)
	if _, err := runCommand(t, "batch", "create", "-c", cfgPath, "--algo", "tripo"); err == nil {
		t.Error("batch create without --run must fail")
	}
}

func TestStatusEmptyWorkspace(t *testing.T) {
	ws := t.TempDir()
	cfgPath := writeTestConfig(t, ws)
	out, err := runCommand(t, "status", "-c", cfgPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "RUN") {
		t.Errorf("status output = %q, want header row", out)
	}
}

func TestStatusCountsRows(t *testing.T) {
	ws := t.TempDir()
	cfgPath := writeTestConfig(t, ws)

	table := &tabular.Table{
		Columns: []string{"run_id", "job_id", "status"},
		Rows: []map[string]string{
			{"run_id": "r1", "job_id": "j1", "status": "completed"},
			{"run_id": "r1", "job_id": "j2", "status": "failed"},
		},
	}
	if err := table.Write(filepath.Join(ws, "generations.csv")); err != nil {
		t.Fatalf("seed table: %v", err)
	}

	out, err := runCommand(t, "status", "-c", cfgPath, "--run", "r1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "r1") {
		t.Errorf("status output = %q, want r1 row", out)
	}
}

func TestCatalogBuildCountsVariants(t *testing.T) {
	ws := t.TempDir()
	cfgPath := writeTestConfig(t, ws)
	seedProduct(t, ws, "100001", "base", 1)
	seedProduct(t, ws, "100001", "colorway_red", 3)
	seedProduct(t, ws, "100002", "base", 2)

	out, err := runCommand(t, "catalog", "build", "-c", cfgPath)
	if err != nil {
		t.Fatalf("catalog build: %v\n%s", err, out)
	}
	items, err := catalog.Load(filepath.Join(ws, "catalog.csv"))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("catalog items = %d, want 3", len(items))
	}
}
