package wardapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/ack/memstore"
	"github.com/linnemanlabs/wardwatch/internal/alert"
	"github.com/linnemanlabs/wardwatch/internal/authz"
	"github.com/linnemanlabs/wardwatch/internal/day"
	"github.com/linnemanlabs/wardwatch/internal/reasons"
	"github.com/linnemanlabs/wardwatch/internal/snapshot"
	"github.com/linnemanlabs/wardwatch/internal/wardapi"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memstore.New()
	days := day.NewRegistry()
	snaps := snapshot.NewRegistry(days.Observe)
	catalog := reasons.Defaults()
	az := authz.NewStatic(map[string][]string{
		"nurse-1": {authz.CapabilityAcknowledge},
	})
	svc := ack.NewService(store, az, catalog, days, snaps, nil, ack.Hooks{})
	closer := day.NewCloser(days, store, snaps, catalog, nil)

	api := wardapi.New(nil, svc, snaps, closer, catalog, nil)
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func ingestBody(version int64, fingerprints ...string) []byte {
	if len(fingerprints) == 0 {
		fingerprints = []string{"f1", "f2"}
	}
	snap := alert.Snapshot{
		StationID:    "ward-a",
		BusinessDate: "2026-03-02",
		Version:      version,
		CaseID:       "c-1",
		Evaluations: []alert.Evaluation{
			{CaseID: "c-1", RuleID: "r1", Severity: alert.SeverityWarn, Category: alert.CategoryCompleteness, Fingerprint: fingerprints[0]},
			{CaseID: "c-1", RuleID: "r2", Severity: alert.SeverityCritical, Category: alert.CategoryMedical, Fingerprint: fingerprints[1]},
		},
	}
	b, _ := json.Marshal(snap)
	return b
}

func doReq(t *testing.T, srv *httptest.Server, method, path, actor string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func mustIngest(t *testing.T, srv *httptest.Server, version int64, fingerprints ...string) {
	t.Helper()
	resp := doReq(t, srv, http.MethodPost, "/api/v1/snapshots", "", ingestBody(version, fingerprints...))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest v%d: status = %d, want 202", version, resp.StatusCode)
	}
}

func TestIngestSnapshot(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       []byte
		wantStatus int
	}{
		{"valid", ingestBody(1), http.StatusAccepted},
		{"stale version", ingestBody(1), http.StatusConflict},
		{"malformed json", []byte("{"), http.StatusBadRequest},
		{"missing identity", []byte(`{"version":2}`), http.StatusBadRequest},
		{
			"bad severity",
			[]byte(`{"case_id":"c-1","station_id":"ward-a","business_date":"2026-03-02","version":2,` +
				`"evaluations":[{"case_id":"c-1","rule_id":"r1","severity":"PANIC","category":"medical","fingerprint":"f1"}]}`),
			http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		// Sequential on purpose; the stale case depends on the valid one.
		resp := doReq(t, srv, http.MethodPost, "/api/v1/snapshots", "", tt.body)
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.wantStatus)
		}
	}
}

func TestCaseAlerts(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp := doReq(t, srv, http.MethodGet, "/api/v1/cases/c-404/alerts", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown case: status = %d, want 404", resp.StatusCode)
	}

	mustIngest(t, srv, 1)
	resp = doReq(t, srv, http.MethodGet, "/api/v1/cases/c-1/alerts", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var recon ack.Reconciliation
	if err := json.NewDecoder(resp.Body).Decode(&recon); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if recon.CaseID != "c-1" || recon.Version != 1 {
		t.Errorf("recon identity = %s/v%d, want c-1/v1", recon.CaseID, recon.Version)
	}
	if recon.Aggregate.OpenCount != 2 || recon.Aggregate.Severity != alert.SeverityCritical {
		t.Errorf("aggregate = %+v, want 2 open at CRITICAL", recon.Aggregate)
	}
}

func TestAckFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mustIngest(t, srv, 1)

	resp := doReq(t, srv, http.MethodPost, "/api/v1/cases/c-1/ack", "nurse-1", []byte(`{"scope":"r1"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ack: status = %d, want 201", resp.StatusCode)
	}
	var rec ack.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.State != ack.StateAck || rec.FingerprintAtAck != "f1" || rec.Actor != "nurse-1" {
		t.Errorf("record = %+v", rec)
	}

	resp = doReq(t, srv, http.MethodGet, "/api/v1/cases/c-1/alerts", "", nil)
	var recon ack.Reconciliation
	if err := json.NewDecoder(resp.Body).Decode(&recon); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if recon.Aggregate.OpenCount != 1 || recon.Aggregate.AckedCount != 1 {
		t.Errorf("aggregate = %+v, want 1 open / 1 acked", recon.Aggregate)
	}

	// A new snapshot with changed facts reopens the alert.
	mustIngest(t, srv, 2, "f1b", "f2")
	resp = doReq(t, srv, http.MethodGet, "/api/v1/cases/c-1/alerts", "", nil)
	recon = ack.Reconciliation{}
	if err := json.NewDecoder(resp.Body).Decode(&recon); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if recon.Aggregate.OpenCount != 2 {
		t.Errorf("after fingerprint change: OpenCount = %d, want 2", recon.Aggregate.OpenCount)
	}
}

func TestCommandRejections(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mustIngest(t, srv, 1)

	tests := []struct {
		name       string
		path       string
		actor      string
		body       string
		wantStatus int
	}{
		{"missing actor", "/api/v1/cases/c-1/ack", "", `{"scope":"r1"}`, http.StatusUnauthorized},
		{"unauthorized actor", "/api/v1/cases/c-1/ack", "visitor", `{"scope":"r1"}`, http.StatusForbidden},
		{"missing scope", "/api/v1/cases/c-1/ack", "nurse-1", `{}`, http.StatusBadRequest},
		{"unknown rule scope", "/api/v1/cases/c-1/ack", "nurse-1", `{"scope":"r9"}`, http.StatusNotFound},
		{"unknown case", "/api/v1/cases/c-404/ack", "nurse-1", `{"scope":"r1"}`, http.StatusNotFound},
		{"ack with reason", "/api/v1/cases/c-1/ack", "nurse-1", `{"scope":"r1","reason_code":"await_results"}`, http.StatusUnprocessableEntity},
		{"shift without reason", "/api/v1/cases/c-1/shift", "nurse-1", `{"scope":"r1"}`, http.StatusUnprocessableEntity},
		{"shift with unknown reason", "/api/v1/cases/c-1/shift", "nurse-1", `{"scope":"r1","reason_code":"because"}`, http.StatusUnprocessableEntity},
		{"undo with nothing active", "/api/v1/cases/c-1/undo", "nurse-1", `{"scope":"r1"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doReq(t, srv, http.MethodPost, tt.path, tt.actor, []byte(tt.body))
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestShiftAndUndo(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mustIngest(t, srv, 1)

	resp := doReq(t, srv, http.MethodPost, "/api/v1/cases/c-1/shift", "nurse-1", []byte(`{"scope":"r2","reason_code":"await_results"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("shift: status = %d, want 201", resp.StatusCode)
	}

	resp = doReq(t, srv, http.MethodPost, "/api/v1/cases/c-1/undo", "nurse-1", []byte(`{"scope":"r2"}`))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("undo: status = %d, want 204", resp.StatusCode)
	}

	resp = doReq(t, srv, http.MethodGet, "/api/v1/cases/c-1/alerts", "", nil)
	var recon ack.Reconciliation
	if err := json.NewDecoder(resp.Body).Decode(&recon); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if recon.Aggregate.OpenCount != 2 {
		t.Errorf("OpenCount = %d, want 2 after undo", recon.Aggregate.OpenCount)
	}
}

func TestListReasons(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp := doReq(t, srv, http.MethodGet, "/api/v1/reasons", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Reasons []reasons.Code `json:"reasons"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Reasons) == 0 {
		t.Error("empty reason catalog")
	}
}

func TestCloseDay(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mustIngest(t, srv, 1)

	resp := doReq(t, srv, http.MethodPost, "/api/v1/cases/c-1/shift", "nurse-1", []byte(`{"scope":"r1","reason_code":"remind_tomorrow"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("shift: status = %d, want 201", resp.StatusCode)
	}

	resp = doReq(t, srv, http.MethodPost, "/api/v1/stations/ward-a/days/2026-03-02/close", "nurse-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close: status = %d, want 200", resp.StatusCode)
	}
	var summary day.CloseSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Cases != 1 || len(summary.Intents) != 1 {
		t.Errorf("summary = %+v, want 1 case with 1 carried intent", summary)
	}

	// The frozen day rejects writes and further closes.
	resp = doReq(t, srv, http.MethodPost, "/api/v1/cases/c-1/ack", "nurse-1", []byte(`{"scope":"r2"}`))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("ack on closed day: status = %d, want 409", resp.StatusCode)
	}
	resp = doReq(t, srv, http.MethodPost, "/api/v1/stations/ward-a/days/2026-03-02/close", "nurse-1", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second close: status = %d, want 409", resp.StatusCode)
	}
	resp = doReq(t, srv, http.MethodPost, "/api/v1/snapshots", "", ingestBody(2))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("ingest after close: status = %d, want 409", resp.StatusCode)
	}
}

func TestActorHeaderIdentity(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mustIngest(t, srv, 1)

	for i := 0; i < 2; i++ {
		resp := doReq(t, srv, http.MethodPost, "/api/v1/cases/c-1/ack", "nurse-1",
			[]byte(fmt.Sprintf(`{"scope":"r%d"}`, i+1)))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("ack r%d: status = %d, want 201", i+1, resp.StatusCode)
		}
		var rec ack.Record
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.Actor != "nurse-1" {
			t.Errorf("Actor = %q, want nurse-1", rec.Actor)
		}
	}
}
