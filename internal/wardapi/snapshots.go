package wardapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/wardwatch/internal/alert"
)

func (a *API) handleIngestSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap alert.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if snap.CaseID == "" || snap.StationID == "" || snap.BusinessDate == "" {
		writeError(w, http.StatusBadRequest, "case_id, station_id and business_date are required")
		return
	}
	for i := range snap.Evaluations {
		ev := &snap.Evaluations[i]
		if ev.RuleID == "" || ev.Fingerprint == "" || !ev.Severity.Valid() || !ev.Category.Valid() {
			writeError(w, http.StatusBadRequest, "invalid evaluation")
			return
		}
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("wardwatch.case.id", snap.CaseID),
		attribute.String("wardwatch.station.id", snap.StationID),
		attribute.Int64("wardwatch.snapshot.version", snap.Version),
	)

	if err := a.snaps.Put(&snap); err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			a.logger.Error(r.Context(), err, "snapshot ingest failed",
				"case_id", snap.CaseID, "version", snap.Version)
		}
		writeError(w, status, msg)
		return
	}

	a.logger.Info(r.Context(), "snapshot ingested",
		"case_id", snap.CaseID,
		"station", snap.StationID,
		"business_date", snap.BusinessDate,
		"version", snap.Version,
		"evaluations", len(snap.Evaluations),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"case_id": snap.CaseID,
		"version": snap.Version,
	})
}
