package queue

import (
	"fmt"
	"strings"
)

// maxStemLen caps the token/output name stem so full paths stay inside
// practical filesystem limits on the shared workspace.
const maxStemLen = 120

// Stem builds the deterministic, filesystem-safe name stem shared by
// queue tokens and output artifacts. It encodes product id, variant,
// algorithm, input count, tag suffixes, run id and the 8-char job-id
// prefix for human debugging. If the assembled stem would exceed the
// length cap, the variant portion is truncated first; a hard truncate
// is the last resort.
func Stem(productID, variant, algorithm string, inputCount int, tags, runID, jobID string) string {
	jobPrefix := jobID
	if len(jobPrefix) > 8 {
		jobPrefix = jobPrefix[:8]
	}
	v := Slug(variant)

	build := func(variantSlug string) string {
		return fmt.Sprintf("%s_%s_%s_%dimg%s_%s_%s",
			productID, variantSlug, algorithm, inputCount, tags, runID, jobPrefix)
	}

	stem := build(v)
	if len(stem) > maxStemLen {
		overflow := len(stem) - maxStemLen
		if len(v) > overflow {
			stem = build(v[:len(v)-overflow])
		} else {
			stem = build("")
		}
	}
	if len(stem) > maxStemLen {
		stem = stem[:maxStemLen]
	}
	return stem
}

// Slug lowercases s and replaces every non-alphanumeric run with a
// single dash, trimming leading and trailing dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
