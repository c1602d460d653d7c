// Package ids centralizes prefixed identifier generation for sessions
// (including ingest sessions) and branches. Claims extracted by
// internal/ingest keep the oracle's id or fall back to CLAIM-n, and passes
// carry no id.
package ids

import "github.com/google/uuid"

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// Prefixed returns a fresh identifier with a short kind prefix, e.g.
// "claim_3f1c2a9e", for readability in logs and rendered scratchpads.
func Prefixed(kind string) string {
	return kind + "_" + uuid.NewString()[:8]
}
