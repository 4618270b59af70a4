package consolidate

import (
	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/tabular"
)

// MergeDuplicates restores the one-row-per-(run_id, job_id) invariant.
// Within each duplicate group the row with the highest status
// precedence (completed > failed > running > enqueued) becomes the
// base; every other row's non-empty fields fill fields still empty on
// the base. When both rows carry different non-empty values, the base
// row's value stands. Returns the deduplicated rows in first-seen key
// order and the number of groups that had duplicates.
func MergeDuplicates(rows []map[string]string) ([]map[string]string, int) {
	type group struct {
		base  map[string]string
		extra []map[string]string
	}
	index := make(map[string]int)
	var order []*group

	for _, row := range rows {
		k := tabular.Key(row, models.KeyColumns)
		if i, ok := index[k]; ok {
			g := order[i]
			if models.StatusRank[row["status"]] > models.StatusRank[g.base["status"]] {
				g.extra = append(g.extra, g.base)
				g.base = row
			} else {
				g.extra = append(g.extra, row)
			}
			continue
		}
		index[k] = len(order)
		order = append(order, &group{base: row})
	}

	conflicts := 0
	out := make([]map[string]string, 0, len(order))
	for _, g := range order {
		if len(g.extra) > 0 {
			conflicts++
			merged := make(map[string]string, len(g.base))
			for col, v := range g.base {
				merged[col] = v
			}
			for _, row := range g.extra {
				for col, v := range row {
					if merged[col] == "" && v != "" {
						merged[col] = v
					}
				}
			}
			out = append(out, merged)
			continue
		}
		out = append(out, g.base)
	}
	return out, conflicts
}
