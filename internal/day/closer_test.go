package day

import (
	"context"
	"errors"
	"testing"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/ack/memstore"
	"github.com/linnemanlabs/wardwatch/internal/reasons"
)

type staticCases map[string][]string

func (s staticCases) CasesFor(stationID, businessDate string) []string {
	return s[stationID+"/"+businessDate]
}

func TestCloser_Close(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	ctx := context.Background()
	seed := []*ack.Record{
		{ID: "a-1", CaseID: "c-1", Scope: "r1", State: ack.StateAck, Actor: "nurse-1"},
		{ID: "s-1", CaseID: "c-1", Scope: "r2", State: ack.StateShift, ReasonCode: "remind_tomorrow", Actor: "nurse-1"},
		{ID: "s-2", CaseID: "c-2", Scope: "*", State: ack.StateShift, ReasonCode: "remind_tomorrow", Actor: "nurse-2"},
	}
	for _, rec := range seed {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	days := NewRegistry()
	closer := NewCloser(days, store, staticCases{
		"ward-a/2026-03-02": {"c-1", "c-2"},
	}, reasons.Defaults(), nil)

	summary, err := closer.Close(ctx, "ward-a", "2026-03-02")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if summary.Cases != 2 {
		t.Errorf("Cases = %d, want 2", summary.Cases)
	}
	if len(summary.Intents) != 2 {
		t.Fatalf("len(Intents) = %d, want 2", len(summary.Intents))
	}
	if !days.Closed("ward-a", "2026-03-02") {
		t.Error("day not frozen after close")
	}

	if _, err := closer.Close(ctx, "ward-a", "2026-03-02"); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("second close: err = %v, want ErrAlreadyClosed", err)
	}
}

type flakyStore struct {
	ack.Store
	failCase string
}

func (f *flakyStore) ListActive(ctx context.Context, caseID string) ([]ack.Record, error) {
	if caseID == f.failCase {
		return nil, errors.New("connection reset")
	}
	return f.Store.ListActive(ctx, caseID)
}

func TestCloser_StoreFailureSkipsCase(t *testing.T) {
	t.Parallel()

	inner := memstore.New()
	ctx := context.Background()
	recs := []*ack.Record{
		{ID: "s-1", CaseID: "c-1", Scope: "r1", State: ack.StateShift, ReasonCode: "remind_tomorrow"},
		{ID: "s-2", CaseID: "c-2", Scope: "r1", State: ack.StateShift, ReasonCode: "remind_tomorrow"},
	}
	for _, rec := range recs {
		if err := inner.Record(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	days := NewRegistry()
	closer := NewCloser(days, &flakyStore{Store: inner, failCase: "c-1"}, staticCases{
		"ward-a/2026-03-02": {"c-1", "c-2"},
	}, reasons.Defaults(), nil)

	summary, err := closer.Close(ctx, "ward-a", "2026-03-02")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !days.Closed("ward-a", "2026-03-02") {
		t.Error("day must freeze even when a case read fails")
	}
	if len(summary.Intents) != 1 || summary.Intents[0].CaseID != "c-2" {
		t.Errorf("Intents = %+v, want only c-2", summary.Intents)
	}
}
