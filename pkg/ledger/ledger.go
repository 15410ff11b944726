// Package ledger persists the running memory of each monitored transcript:
// the fingerprint of the content last analyzed and the free-text summary the
// model produced for it. It is the single source of truth for "what was last
// seen"; the dispatcher reads it to filter work and writes it only after a
// fully successful analysis.
package ledger

import (
	"context"
	"time"
)

// Record is the durable memory row for one logical work-item path.
// At most one record exists per path.
type Record struct {
	// Path is the canonical owner/filename key (primary key).
	Path string

	// Owner is the namespace label derived from the first path segment.
	Owner string

	// LastFingerprint is the digest of the content last successfully analyzed.
	LastFingerprint string

	// LastSummary is the running natural-language state of the conversation.
	LastSummary string

	// UpdatedAt is the time of the last successful write.
	UpdatedAt time.Time
}

// Ledger is the read/write interface for memory records.
//
// Get returns (nil, nil) when no record exists for the path. Lookup errors
// are reported honestly; callers that prefer availability over strict
// consistency (the dispatcher does) treat an error as "no prior state" so a
// transient outage degrades to reprocessing rather than halting ingestion.
//
// Upsert resolves conflicts last-writer-wins keyed by Path. Records are never
// deleted by this interface; deletion is an administrative action.
type Ledger interface {
	Get(ctx context.Context, path string) (*Record, error)
	Upsert(ctx context.Context, rec *Record) error
}
