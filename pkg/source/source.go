// Package source abstracts where transcript work items come from: a local
// directory tree or a Supabase storage bucket. Both realizations present the
// same capability interface so the dispatch loop never duplicates per-backend
// logic.
//
// Every item is identified by a canonical "owner/filename" key. Normalizing
// to that key happens entirely inside this package; nothing downstream (the
// ledger, the dispatcher) ever sees a backend-specific path shape.
package source

import "context"

// Item describes one discovered work item. Items are ephemeral: they are
// rediscovered on every listing pass and never persisted.
type Item struct {
	// Path is the canonical owner/filename key.
	Path string

	// Owner is the namespace label, the first path segment.
	Owner string

	// Name is the bare filename.
	Name string
}

// Source is the capability interface over a work-item backend.
//
// List re-enumerates from scratch on every call; no cursor or watermark is
// kept between calls. A brief race where an item appears after listing is
// resolved by the next poll cycle.
type Source interface {
	// List enumerates all current work items across owner namespaces.
	List(ctx context.Context) ([]Item, error)

	// Read returns the raw bytes of the item at the canonical path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Remove deletes the consumed item. Backends that cannot delete
	// (the local realization) implement this as a no-op.
	Remove(ctx context.Context, path string) error

	// Removable reports whether Remove actually deletes items. The
	// dispatcher uses it to select its idempotency strategy: presence-based
	// when true, fingerprint-based when false.
	Removable() bool
}
