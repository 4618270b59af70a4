package batch

import (
	"fmt"
	"path"
	"strings"

	"github.com/quantaleap/meshbench/internal/models"
)

// Filters narrow the catalog rows a batch build considers. A pattern
// containing glob metacharacters is matched with path.Match against the
// item's product id, variant and name; any other pattern is a plain
// substring match. Include patterns OR together; any exclude match
// drops the item.
type Filters struct {
	Include []string
	Exclude []string
}

// Validate rejects malformed glob patterns up front so a bad pattern
// aborts the build instead of silently matching nothing.
func (f Filters) Validate() error {
	for _, p := range append(append([]string{}, f.Include...), f.Exclude...) {
		if !isGlob(p) {
			continue
		}
		if _, err := path.Match(p, "probe"); err != nil {
			return fmt.Errorf("batch: malformed filter pattern %q: %w", p, err)
		}
	}
	return nil
}

// Match reports whether the item passes the include/exclude filters.
func (f Filters) Match(item models.CatalogItem) bool {
	if len(f.Include) > 0 && !matchAny(f.Include, item) {
		return false
	}
	return !matchAny(f.Exclude, item)
}

func matchAny(patterns []string, item models.CatalogItem) bool {
	for _, p := range patterns {
		for _, field := range []string{item.ProductID, item.Variant, item.Name} {
			if isGlob(p) {
				if ok, _ := path.Match(p, field); ok {
					return true
				}
			} else if strings.Contains(field, p) {
				return true
			}
		}
	}
	return false
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[")
}
