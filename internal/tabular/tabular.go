// Package tabular implements the locked, atomically-written CSV tables
// that serve as the workspace's shared state: the generations
// system-of-record, the catalog, and batch manifests.
//
// All mutation goes through an exclusive advisory file lock scoped to the
// table, and every write lands via temp-file-plus-rename so readers never
// observe a torn file.
package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
)

// Table is an in-memory keyed CSV table. Columns preserves file column
// order; rows are keyed by column name.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Load reads a CSV table from path. A missing file yields an empty table,
// not an error. Load takes no lock; use Update for read-modify-write.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("tabular: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Columns: records[0]}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Write atomically persists the table to path: write a temp file in the
// same directory, then rename over the destination.
func (t *Table) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tabular: mkdir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("tabular: temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("tabular: write header %s: %w", path, err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("tabular: write row %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("tabular: flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tabular: close temp %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("tabular: rename %s: %w", path, err)
	}
	return nil
}

// EnsureColumns adds any missing columns to the schema, appended after
// the existing ones in the given order. Existing rows read back empty
// for the new columns.
func (t *Table) EnsureColumns(cols []string) {
	have := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = true
	}
	for _, c := range cols {
		if !have[c] {
			t.Columns = append(t.Columns, c)
			have[c] = true
		}
	}
}

// Key joins a row's values for the given key columns into a composite
// lookup key.
func Key(row map[string]string, keyCols []string) string {
	k := ""
	for i, col := range keyCols {
		if i > 0 {
			k += "\x1f"
		}
		k += row[col]
	}
	return k
}

// Update runs fn on the table at path under the table's exclusive lock
// and writes the result back atomically. fn returning an error aborts
// the write.
func Update(path string, fn func(*Table) error) error {
	unlock, err := acquire(path)
	if err != nil {
		return err
	}
	defer unlock()

	t, err := Load(path)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	return t.Write(path)
}

// Upsert inserts or updates rows in the table at path, keyed by keyCols.
//
// Semantics: incoming rows are deduplicated on the key columns first
// (last occurrence wins); a row whose key exists overwrites that row's
// fields in place, otherwise it is appended. Columns present in the
// incoming rows but not in the table are added at the end of the schema,
// ordered per the columns argument; pre-existing column order is
// preserved. The whole read-modify-write runs under the table lock.
//
// It fails before any I/O if a key column is absent from an incoming row.
func Upsert(path string, columns []string, rows []map[string]string, keyCols []string) (inserted, updated int, err error) {
	if len(keyCols) == 0 {
		return 0, 0, fmt.Errorf("tabular: upsert %s: no key columns", path)
	}
	for i, row := range rows {
		for _, col := range keyCols {
			if _, ok := row[col]; !ok {
				return 0, 0, fmt.Errorf("tabular: upsert %s: row %d missing key column %q", path, i, col)
			}
		}
	}

	incoming := dedupe(rows, keyCols)

	err = Update(path, func(t *Table) error {
		t.EnsureColumns(columns)
		for _, row := range incoming {
			t.EnsureColumns(rowColumns(row, columns))
		}

		index := make(map[string]int, len(t.Rows))
		for i, row := range t.Rows {
			index[Key(row, keyCols)] = i
		}

		for _, row := range incoming {
			k := Key(row, keyCols)
			if i, ok := index[k]; ok {
				for col, v := range row {
					t.Rows[i][col] = v
				}
				updated++
			} else {
				t.Rows = append(t.Rows, row)
				index[k] = len(t.Rows) - 1
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

// dedupe collapses rows sharing a key tuple, keeping the last occurrence.
func dedupe(rows []map[string]string, keyCols []string) []map[string]string {
	index := make(map[string]int, len(rows))
	var out []map[string]string
	for _, row := range rows {
		k := Key(row, keyCols)
		if i, ok := index[k]; ok {
			out[i] = row
			continue
		}
		index[k] = len(out)
		out = append(out, row)
	}
	return out
}

// rowColumns returns the row's columns in preferred order: those listed
// in preferred first, then the rest sorted by name for determinism.
func rowColumns(row map[string]string, preferred []string) []string {
	var cols []string
	seen := make(map[string]bool, len(row))
	for _, c := range preferred {
		if _, ok := row[c]; ok {
			cols = append(cols, c)
			seen[c] = true
		}
	}
	var rest []string
	for c := range row {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// acquire takes the exclusive advisory lock guarding the table at path
// and returns the release function.
func acquire(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tabular: mkdir for %s: %w", path, err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("tabular: lock %s: %w", path, err)
	}
	return func() { lock.Unlock() }, nil
}
