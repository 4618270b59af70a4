// Package inputs defines the canonical ordering of a catalog item's
// input images. The ordering feeds input selection, job identity and
// the image-set hash, so it must be stable: renaming or retagging an
// image changes job identity deterministically.
package inputs

import (
	"path"
	"sort"
	"strings"
)

// TagOf extracts the trailing single-letter view tag from an input
// reference's filename, e.g. "front_A.png" → "A". References without a
// tag return "".
func TagOf(ref string) string {
	name := path.Base(ref)
	stem := strings.TrimSuffix(name, path.Ext(name))
	if len(stem) >= 2 && stem[len(stem)-2] == '_' {
		c := stem[len(stem)-1]
		if c >= 'A' && c <= 'Z' {
			return string(c)
		}
	}
	return ""
}

// CanonicalOrder sorts input references: tagged inputs first, sorted by
// tag, then untagged inputs sorted case-insensitively by name.
func CanonicalOrder(refs []string) []string {
	out := make([]string, len(refs))
	copy(out, refs)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := TagOf(out[i]), TagOf(out[j])
		switch {
		case ti != "" && tj != "":
			if ti != tj {
				return ti < tj
			}
		case ti != "":
			return true
		case tj != "":
			return false
		}
		return strings.ToLower(path.Base(out[i])) < strings.ToLower(path.Base(out[j]))
	})
	return out
}

// TagSuffix concatenates the tags of the selected inputs, e.g. "AB".
// Used in token and output names for human debugging.
func TagSuffix(refs []string) string {
	var b strings.Builder
	for _, r := range refs {
		b.WriteString(TagOf(r))
	}
	return b.String()
}
