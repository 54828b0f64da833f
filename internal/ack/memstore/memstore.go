// Package memstore provides an in-memory implementation of ack.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/wardwatch/internal/ack"
)

// Store holds ack records in memory. Suitable for dev/testing. The
// mutex makes writes to any (case, scope) linearizable; the audit slice
// is append-only and keeps superseded and undone records.
type Store struct {
	mu     sync.RWMutex
	active map[string]map[string]*ack.Record // case ID -> scope -> active record
	audit  []ack.Record
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		active: make(map[string]map[string]*ack.Record),
	}
}

// Record appends rec to the audit trail and makes it the active record
// for its (case, scope), superseding any prior one.
func (s *Store) Record(_ context.Context, rec *ack.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.audit = append(s.audit, cp)

	scopes, ok := s.active[rec.CaseID]
	if !ok {
		scopes = make(map[string]*ack.Record)
		s.active[rec.CaseID] = scopes
	}
	stored := cp
	scopes[rec.Scope] = &stored
	return nil
}

// Undo removes the active record for (caseID, scope). Earlier
// superseded records stay in the audit trail but never become active
// again.
func (s *Store) Undo(_ context.Context, caseID, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scopes, ok := s.active[caseID]
	if !ok {
		return ack.ErrNotFound
	}
	if _, ok := scopes[scope]; !ok {
		return ack.ErrNotFound
	}
	delete(scopes, scope)
	return nil
}

// ListActive returns copies of the active records for a case.
func (s *Store) ListActive(_ context.Context, caseID string) ([]ack.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scopes := s.active[caseID]
	if len(scopes) == 0 {
		return nil, nil
	}
	out := make([]ack.Record, 0, len(scopes))
	for _, rec := range scopes {
		out = append(out, *rec)
	}
	return out, nil
}

// Audit returns copies of every record ever written for a case, in
// write order. Test and inspection helper, not part of ack.Store.
func (s *Store) Audit(caseID string) []ack.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ack.Record
	for i := range s.audit {
		if s.audit[i].CaseID == caseID {
			out = append(out, s.audit[i])
		}
	}
	return out
}
