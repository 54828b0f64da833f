package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/linnemanlabs/wardwatch/internal/ack"
)

func rec(id, caseID, scope string) *ack.Record {
	return &ack.Record{
		ID:               id,
		CaseID:           caseID,
		Scope:            scope,
		State:            ack.StateAck,
		FingerprintAtAck: "f1",
		Actor:            "nurse-1",
	}
}

func TestStore_RecordAndListActive(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if err := s.Record(ctx, rec("a-1", "c-1", "r1")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, rec("a-2", "c-1", "r2")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, rec("a-3", "c-2", "r1")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	active, err := s.ListActive(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len(active) = %d, want 2", len(active))
	}
	for _, r := range active {
		if r.CaseID != "c-1" {
			t.Errorf("leaked record from another case: %+v", r)
		}
	}
}

func TestStore_SupersedeKeepsAudit(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if err := s.Record(ctx, rec("a-1", "c-1", "r1")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, rec("a-2", "c-1", "r1")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	active, err := s.ListActive(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != "a-2" {
		t.Errorf("active = %+v, want only a-2", active)
	}
	if audit := s.Audit("c-1"); len(audit) != 2 {
		t.Errorf("audit length = %d, want 2", len(audit))
	}
}

func TestStore_Undo(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if err := s.Undo(ctx, "c-1", "r1"); !errors.Is(err, ack.ErrNotFound) {
		t.Errorf("undo with nothing active: err = %v, want ErrNotFound", err)
	}

	if err := s.Record(ctx, rec("a-1", "c-1", "r1")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Undo(ctx, "c-1", "r1"); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	active, err := s.ListActive(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active = %+v, want none after undo", active)
	}
	// Undo never resurrects the superseded history.
	if err := s.Undo(ctx, "c-1", "r1"); !errors.Is(err, ack.ErrNotFound) {
		t.Errorf("second undo: err = %v, want ErrNotFound", err)
	}
	if audit := s.Audit("c-1"); len(audit) != 1 {
		t.Errorf("audit length = %d, want 1 (undo keeps history)", len(audit))
	}
}

func TestStore_CopiesOut(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	orig := rec("a-1", "c-1", "r1")
	if err := s.Record(ctx, orig); err != nil {
		t.Fatalf("Record: %v", err)
	}
	orig.FingerprintAtAck = "mutated"

	active, err := s.ListActive(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if active[0].FingerprintAtAck != "f1" {
		t.Error("caller mutation leaked into the store")
	}
	active[0].FingerprintAtAck = "mutated again"

	again, err := s.ListActive(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if again[0].FingerprintAtAck != "f1" {
		t.Error("returned slice aliases store state")
	}
}

func TestStore_ConcurrentWritesSameScope(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Record(ctx, rec(fmt.Sprintf("a-%d", i), "c-1", "r1"))
		}(i)
	}
	wg.Wait()

	// Exactly one winner is active; every write is in the audit trail
	// and the winner is observable by all callers.
	active, err := s.ListActive(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("len(active) = %d, want 1", len(active))
	}
	if audit := s.Audit("c-1"); len(audit) != writers {
		t.Errorf("audit length = %d, want %d", len(audit), writers)
	}
	last := s.Audit("c-1")[writers-1]
	if active[0].ID != last.ID {
		t.Errorf("active = %s, want the last audited write %s", active[0].ID, last.ID)
	}
}
