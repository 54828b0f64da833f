package ack

import "github.com/linnemanlabs/go-core/xerrors"

// Domain errors. Handlers map these to HTTP statuses; everything else
// is an internal error.
var (
	// ErrUnknownScope rejects an ack/shift targeting a rule_id absent
	// from the current evaluation set.
	ErrUnknownScope = xerrors.New("scope not present in current evaluation set")

	// ErrUnauthorized rejects a write by an actor without the
	// acknowledge capability for the case.
	ErrUnauthorized = xerrors.New("actor lacks acknowledge capability")

	// ErrInvalidReason rejects a SHIFT whose reason code is not in the
	// catalog, and an ACK that carries one.
	ErrInvalidReason = xerrors.New("invalid deferral reason code")

	// ErrStoreUnavailable marks a store read/write failure.
	// Reconciliation fails closed on it; writes surface it to the caller.
	ErrStoreUnavailable = xerrors.New("ack store unavailable")

	// ErrDayClosed rejects writes targeting a closed business date.
	ErrDayClosed = xerrors.New("business date is closed")

	// ErrNotFound marks an undo with no active record, or a missing case.
	ErrNotFound = xerrors.New("not found")
)
