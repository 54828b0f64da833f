package ack

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/wardwatch/internal/alert"
	"github.com/linnemanlabs/wardwatch/internal/authz"
	"github.com/linnemanlabs/wardwatch/internal/reasons"
)

// SnapshotSource yields the latest rule-engine snapshot for a case.
type SnapshotSource interface {
	Case(caseID string) (*alert.Snapshot, bool)
}

// DayGate reports whether a business date has been closed for its
// station. Writes targeting a closed date are rejected.
type DayGate interface {
	Closed(stationID, businessDate string) bool
}

// Service is the business boundary for acknowledgment operations. All
// mutations validate authorization, day state, scope, and reason before
// touching the store; a rejected call leaves no trace.
type Service struct {
	store     Store
	authz     authz.Authorizer
	reasons   reasons.Catalog
	days      DayGate
	snapshots SnapshotSource
	logger    log.Logger
	hooks     Hooks
}

// NewService wires the service. Logger may be nil; hooks may be zero.
func NewService(store Store, az authz.Authorizer, catalog reasons.Catalog, days DayGate, snapshots SnapshotSource, logger log.Logger, hooks Hooks) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:     store,
		authz:     az,
		reasons:   catalog,
		days:      days,
		snapshots: snapshots,
		logger:    logger,
		hooks:     hooks,
	}
}

// Acknowledge records a permanent acknowledgment of scope for the case.
// Scope is a rule_id or ScopeCase. The live fingerprint is captured at
// this moment; the record stays valid only while it is unchanged.
func (s *Service) Acknowledge(ctx context.Context, actor authz.Context, caseID, scope string) (*Record, error) {
	return s.record(ctx, actor, caseID, scope, StateAck, "")
}

// Defer records a temporary deferral of scope with a catalog reason.
func (s *Service) Defer(ctx context.Context, actor authz.Context, caseID, scope, reasonCode string) (*Record, error) {
	return s.record(ctx, actor, caseID, scope, StateShift, reasonCode)
}

func (s *Service) record(ctx context.Context, actor authz.Context, caseID, scope string, state State, reasonCode string) (*Record, error) {
	snap, err := s.authorizeWrite(ctx, actor, caseID)
	if err != nil {
		return nil, err
	}

	fingerprint, err := fingerprintForScope(snap, scope)
	if err != nil {
		return nil, err
	}

	switch state {
	case StateShift:
		if reasonCode == "" {
			return nil, ErrInvalidReason
		}
		if err := s.reasons.Validate(ctx, reasonCode); err != nil {
			return nil, ErrInvalidReason
		}
	case StateAck:
		if reasonCode != "" {
			return nil, ErrInvalidReason
		}
	}

	rec := &Record{
		ID:               ulid.Make().String(),
		CaseID:           caseID,
		Scope:            scope,
		State:            state,
		FingerprintAtAck: fingerprint,
		Actor:            actor.Actor,
		ReasonCode:       reasonCode,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.store.Record(ctx, rec); err != nil {
		s.hooks.onRecord(state, "store_error")
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	s.hooks.onRecord(state, "ok")
	s.logger.Info(ctx, "ack recorded",
		"record_id", rec.ID,
		"case_id", caseID,
		"scope", scope,
		"state", string(state),
		"actor", actor.Actor,
		"reason", reasonCode,
	)
	cp := *rec
	return &cp, nil
}

// Undo tombstones the active record for (caseID, scope). The scope
// reads open afterwards; superseded history is never resurrected. Undo
// is a mutation of the day's ack state and is rejected once the
// business date is closed, like any other write.
func (s *Service) Undo(ctx context.Context, actor authz.Context, caseID, scope string) error {
	if _, err := s.authorizeWrite(ctx, actor, caseID); err != nil {
		return err
	}

	if err := s.store.Undo(ctx, caseID, scope); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			s.hooks.onUndo("not_found")
			return err
		default:
			s.hooks.onUndo("store_error")
			return errors.Join(ErrStoreUnavailable, err)
		}
	}

	s.hooks.onUndo("ok")
	s.logger.Info(ctx, "ack undone", "case_id", caseID, "scope", scope, "actor", actor.Actor)
	return nil
}

// CaseStatus reconciles the case's latest snapshot against the store
// and returns the full read model. A store read failure degrades to
// fail-closed: every alert open, no acks, Degraded set so the result
// is never silently mistaken for an empty store.
func (s *Service) CaseStatus(ctx context.Context, caseID string) (*Reconciliation, error) {
	snap, ok := s.snapshots.Case(caseID)
	if !ok {
		return nil, ErrNotFound
	}

	start := time.Now()
	recon := &Reconciliation{
		CaseID:       caseID,
		StationID:    snap.StationID,
		BusinessDate: snap.BusinessDate,
		Version:      snap.Version,
	}

	records, err := s.store.ListActive(ctx, caseID)
	if err != nil {
		s.logger.Error(ctx, err, "ack store read failed, failing closed", "case_id", caseID)
		recon.Degraded = true
		recon.Statuses = Reconcile(snap, nil)
	} else {
		recon.Statuses = Reconcile(snap, records)
		s.hooks.onStale(countStale(snap, records))
	}
	recon.Aggregate = Aggregate(recon.Statuses)

	s.hooks.onReconcile(recon.Degraded, recon.Aggregate.OpenCount, recon.Aggregate.TotalCount, time.Since(start).Seconds())
	return recon, nil
}

// authorizeWrite runs the common write preconditions and returns the
// case's current snapshot.
func (s *Service) authorizeWrite(ctx context.Context, actor authz.Context, caseID string) (*alert.Snapshot, error) {
	allowed, err := s.authz.CanAcknowledge(ctx, actor, caseID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrUnauthorized
	}

	snap, ok := s.snapshots.Case(caseID)
	if !ok {
		return nil, ErrNotFound
	}
	if s.days.Closed(snap.StationID, snap.BusinessDate) {
		return nil, ErrDayClosed
	}
	return snap, nil
}

// fingerprintForScope captures the matching value for a new record:
// the rule's live fingerprint, or the snapshot set-fingerprint for a
// whole-case scope. Unknown rule scopes are rejected rather than
// silently accepted.
func fingerprintForScope(snap *alert.Snapshot, scope string) (string, error) {
	if scope == ScopeCase {
		return snap.SetFingerprint(), nil
	}
	ev, ok := snap.Evaluation(scope)
	if !ok {
		return "", ErrUnknownScope
	}
	return ev.Fingerprint, nil
}

// countStale counts active records whose scope still fires but whose
// fingerprint no longer matches, i.e. the reactivations this pass saw.
func countStale(snap *alert.Snapshot, records []Record) int {
	stale := 0
	for i := range records {
		rec := &records[i]
		if rec.Scope == ScopeCase {
			if rec.FingerprintAtAck != snap.SetFingerprint() {
				stale++
			}
			continue
		}
		if ev, ok := snap.Evaluation(rec.Scope); ok && ev.Fingerprint != rec.FingerprintAtAck {
			stale++
		}
	}
	return stale
}
