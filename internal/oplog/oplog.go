// Package oplog appends structured operation records to the workspace's
// operational log. The log is a YAML stream: one document per batch
// build, worker session or consolidation, separated by "---".
package oplog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one operational log record.
type Entry struct {
	Time   string      `yaml:"time"`
	Op     string      `yaml:"op"` // batch_create | worker_session | consolidate | catalog_build
	RunID  string      `yaml:"run_id"`
	Worker string      `yaml:"worker,omitempty"`
	Detail interface{} `yaml:"detail"`
}

// Append writes one record to the log. Time defaults to now. The record
// is marshalled first and written with a single O_APPEND write so
// concurrent appenders do not interleave documents.
func Append(path string, e Entry) error {
	if e.Time == "" {
		e.Time = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("oplog: marshal entry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("oplog: mkdir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("oplog: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append([]byte("---\n"), body...)); err != nil {
		return fmt.Errorf("oplog: append %s: %w", path, err)
	}
	return nil
}

// ReadAll decodes every record in the log. A missing log yields nil.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("oplog: open %s: %w", path, err)
	}
	defer f.Close()

	var out []Entry
	dec := yaml.NewDecoder(f)
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("oplog: decode %s: %w", path, err)
		}
		out = append(out, e)
	}
	return out, nil
}
