package wardapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/authz"
)

type commandRequest struct {
	Scope      string `json:"scope"`
	ReasonCode string `json:"reason_code,omitempty"`
}

func (a *API) handleCaseAlerts(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("wardwatch.case.id", caseID))

	recon, err := a.svc.CaseStatus(r.Context(), caseID)
	if err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			a.logger.Error(r.Context(), err, "case status failed", "case_id", caseID)
		}
		writeError(w, status, msg)
		return
	}

	span.SetAttributes(
		attribute.Bool("wardwatch.reconcile.degraded", recon.Degraded),
		attribute.Int("wardwatch.reconcile.open", recon.Aggregate.OpenCount),
	)

	writeJSON(w, http.StatusOK, recon)
}

func (a *API) handleAck(w http.ResponseWriter, r *http.Request) {
	a.handleCommand(w, r, func(req *commandRequest) (any, int, error) {
		if req.ReasonCode != "" {
			return nil, 0, ack.ErrInvalidReason
		}
		rec, err := a.svc.Acknowledge(r.Context(), mustActor(r), chi.URLParam(r, "caseID"), req.Scope)
		return rec, http.StatusCreated, err
	})
}

func (a *API) handleShift(w http.ResponseWriter, r *http.Request) {
	a.handleCommand(w, r, func(req *commandRequest) (any, int, error) {
		rec, err := a.svc.Defer(r.Context(), mustActor(r), chi.URLParam(r, "caseID"), req.Scope, req.ReasonCode)
		return rec, http.StatusCreated, err
	})
}

func (a *API) handleUndo(w http.ResponseWriter, r *http.Request) {
	a.handleCommand(w, r, func(req *commandRequest) (any, int, error) {
		err := a.svc.Undo(r.Context(), mustActor(r), chi.URLParam(r, "caseID"), req.Scope)
		return nil, http.StatusNoContent, err
	})
}

// handleCommand runs the shared decode/identify/respond path of the
// three mutation endpoints.
func (a *API) handleCommand(w http.ResponseWriter, r *http.Request, run func(req *commandRequest) (any, int, error)) {
	if _, ok := actorFromRequest(r); !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Actor header")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Scope == "" {
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("wardwatch.case.id", chi.URLParam(r, "caseID")),
		attribute.String("wardwatch.ack.scope", req.Scope),
	)

	body, status, err := run(&req)
	if err != nil {
		code, msg := statusForError(err)
		if code == http.StatusInternalServerError {
			a.logger.Error(r.Context(), err, "command failed",
				"case_id", chi.URLParam(r, "caseID"), "scope", req.Scope)
		}
		writeError(w, code, msg)
		return
	}

	if body == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, body)
}

// mustActor is only called after actorFromRequest succeeded.
func mustActor(r *http.Request) authz.Context {
	actor, _ := actorFromRequest(r)
	return actor
}
