// Package fingerprint computes content fingerprints for work items and
// decides whether an item has changed since it was last processed.
//
// Fingerprints are a pure function of bytes, never of modification time:
// editing a transcript back to a previous byte-identical state is
// "unchanged", not a new event.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex-encoded SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Changed reports whether current represents new work relative to prior.
// An empty prior means no record exists, which always counts as changed.
// This is a pure comparison; both digests are supplied by the caller.
func Changed(prior, current string) bool {
	return prior == "" || prior != current
}
