package ack

import "context"

// Store is the persistence interface for acknowledgment records.
//
// Implementations keep an append-only audit trail; the interface only
// exposes the active view. Writes to the same (case, scope) must be
// linearizable: a new Record supersedes the prior active record, Undo
// tombstones it, and neither ever resurrects superseded history. Reads
// and writes on different scopes are independent.
type Store interface {
	// Record appends rec and makes it the active record for
	// (rec.CaseID, rec.Scope), superseding any prior active record.
	Record(ctx context.Context, rec *Record) error

	// Undo tombstones the active record for (caseID, scope). It returns
	// ErrNotFound when no record is active; afterwards the scope has no
	// active record regardless of earlier history.
	Undo(ctx context.Context, caseID, scope string) error

	// ListActive returns the active records for a case, at most one per
	// scope. Order is unspecified.
	ListActive(ctx context.Context, caseID string) ([]Record, error)
}
