// Package jobid computes deterministic job identities for generation jobs.
//
// A job identity binds an algorithm to a specific ordered set of input
// images for one catalog item, plus the code version that produced it.
// Identical inputs always yield the identical identity, so the identity
// doubles as the dedup key for queueing and for the system-of-record table.
package jobid

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Compute returns the 12-hex-character job identity for the given tuple.
// Fields are joined with a pipe before hashing; callers must not pass
// values containing the pipe character (input references are file paths
// and product identifiers, which never do).
func Compute(algorithm, productID, variant string, selectedInputs []string, codeVersion string) string {
	payload := strings.Join([]string{
		algorithm,
		productID,
		variant,
		strings.Join(selectedInputs, ","),
		codeVersion,
	}, "|")
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])[:12]
}

// ImageSetHash returns the full 40-hex digest of the newline-joined ordered
// path list. It changes when the selected image set changes, independent of
// algorithm or code version, and is used for input change detection.
func ImageSetHash(orderedPaths []string) string {
	sum := sha1.Sum([]byte(strings.Join(orderedPaths, "\n")))
	return hex.EncodeToString(sum[:])
}
