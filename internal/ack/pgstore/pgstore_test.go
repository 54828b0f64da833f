package pgstore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/ack/pgstore"
	"github.com/linnemanlabs/wardwatch/internal/postgres"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("WARDWATCH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WARDWATCH_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

// testCaseID gives each run a fresh case so tests do not collide with
// earlier data in a shared database.
func testCaseID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, ulid.Make())
}

func newRecord(caseID, scope string, state ack.State, reason string) *ack.Record {
	return &ack.Record{
		ID:               ulid.Make().String(),
		CaseID:           caseID,
		Scope:            scope,
		State:            state,
		FingerprintAtAck: "fp-1",
		Actor:            "nurse-1",
		ReasonCode:       reason,
		CreatedAt:        time.Now().Truncate(time.Microsecond).UTC(),
	}
}

func TestRecordAndListActive(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	caseID := testCaseID("c-list")

	want := newRecord(caseID, "r1", ack.StateAck, "")
	if err := s.Record(ctx, want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	active, err := s.ListActive(ctx, caseID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("len(active) = %d, want 1", len(active))
	}
	got := active[0]
	if got.ID != want.ID || got.Scope != "r1" || got.State != ack.StateAck {
		t.Errorf("record = %+v, want %+v", got, want)
	}
	if got.FingerprintAtAck != "fp-1" || got.Actor != "nurse-1" {
		t.Errorf("record fields = %+v", got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestSupersedeBySeqOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	caseID := testCaseID("c-supersede")

	first := newRecord(caseID, "r1", ack.StateAck, "")
	second := newRecord(caseID, "r1", ack.StateShift, "await_results")
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("Record first: %v", err)
	}
	if err := s.Record(ctx, second); err != nil {
		t.Fatalf("Record second: %v", err)
	}

	active, err := s.ListActive(ctx, caseID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Errorf("active = %+v, want only the later record", active)
	}
	if active[0].ReasonCode != "await_results" {
		t.Errorf("ReasonCode = %q, want await_results", active[0].ReasonCode)
	}

	audit, err := s.Audit(ctx, caseID)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(audit) != 2 || audit[0].ID != first.ID || audit[1].ID != second.ID {
		t.Errorf("audit = %+v, want both records in write order", audit)
	}
}

func TestUndoTombstonesHead(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	caseID := testCaseID("c-undo")

	if err := s.Undo(ctx, caseID, "r1"); !errors.Is(err, ack.ErrNotFound) {
		t.Errorf("undo with nothing active: err = %v, want ErrNotFound", err)
	}

	first := newRecord(caseID, "r1", ack.StateAck, "")
	second := newRecord(caseID, "r1", ack.StateAck, "")
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("Record first: %v", err)
	}
	if err := s.Record(ctx, second); err != nil {
		t.Fatalf("Record second: %v", err)
	}

	if err := s.Undo(ctx, caseID, "r1"); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	// The tombstoned head must not fall back to the superseded record.
	active, err := s.ListActive(ctx, caseID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active = %+v, want none (undo never resurrects history)", active)
	}

	if err := s.Undo(ctx, caseID, "r1"); !errors.Is(err, ack.ErrNotFound) {
		t.Errorf("second undo: err = %v, want ErrNotFound", err)
	}

	audit, err := s.Audit(ctx, caseID)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(audit) != 2 {
		t.Errorf("audit length = %d, want 2 (undo keeps history)", len(audit))
	}
}

func TestScopesAreIndependent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	caseID := testCaseID("c-scopes")

	ruleRec := newRecord(caseID, "r1", ack.StateAck, "")
	caseRec := newRecord(caseID, ack.ScopeCase, ack.StateShift, "remind_tomorrow")
	if err := s.Record(ctx, ruleRec); err != nil {
		t.Fatalf("Record rule scope: %v", err)
	}
	if err := s.Record(ctx, caseRec); err != nil {
		t.Fatalf("Record case scope: %v", err)
	}

	if err := s.Undo(ctx, caseID, "r1"); err != nil {
		t.Fatalf("Undo rule scope: %v", err)
	}

	active, err := s.ListActive(ctx, caseID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].Scope != ack.ScopeCase {
		t.Errorf("active = %+v, want only the case-scope record", active)
	}
}
