// Package sequence normalizes raw amino-acid input and derives the
// deterministic job identifier used for on-disk bookkeeping.
package sequence

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	nonCanonical = regexp.MustCompile(`[BJOUXZ]`)
	nonResidue   = regexp.MustCompile(`[^A-Z]`)
	nonWord      = regexp.MustCompile(`\W+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Sanitize uppercases raw, strips whitespace, removes the non-canonical
// letters B, J, O, U, X and Z, then removes anything left that is not A-Z.
// The second return reports whether non-canonical letters were removed so
// the caller can log a warning.
func Sanitize(raw string) (string, bool) {
	seq := whitespace.ReplaceAllString(strings.ToUpper(raw), "")

	removed := nonCanonical.MatchString(seq)
	if removed {
		seq = nonCanonical.ReplaceAllString(seq, "")
	}

	return nonResidue.ReplaceAllString(seq, ""), removed
}

// JobID builds the stable job identifier: the name with whitespace and
// non-word characters stripped, joined to the first 5 hex characters of the
// SHA-1 digest of the sanitized sequence. Identical (name, seq) inputs always
// map to the same id, which is what makes re-runs reuse on-disk artifacts.
func JobID(name, seq string) string {
	cleaned := nonWord.ReplaceAllString(whitespace.ReplaceAllString(name, ""), "")

	sum := sha1.Sum([]byte(seq))
	return cleaned + "_" + hex.EncodeToString(sum[:])[:5]
}
