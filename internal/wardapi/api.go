// Package wardapi exposes the machine-facing HTTP contract of the
// acknowledgment core: rule-engine snapshot ingest, the reconciled
// per-case read model, and the ack/shift/undo command endpoints.
package wardapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/alert"
	"github.com/linnemanlabs/wardwatch/internal/authz"
	"github.com/linnemanlabs/wardwatch/internal/day"
	"github.com/linnemanlabs/wardwatch/internal/reasons"
	"github.com/linnemanlabs/wardwatch/internal/snapshot"
)

// AckService defines the business operations wardapi needs.
type AckService interface {
	Acknowledge(ctx context.Context, actor authz.Context, caseID, scope string) (*ack.Record, error)
	Defer(ctx context.Context, actor authz.Context, caseID, scope, reasonCode string) (*ack.Record, error)
	Undo(ctx context.Context, actor authz.Context, caseID, scope string) error
	CaseStatus(ctx context.Context, caseID string) (*ack.Reconciliation, error)
}

// SnapshotSink accepts rule-engine snapshots.
type SnapshotSink interface {
	Put(snap *alert.Snapshot) error
}

// Notifier is told about day closes. May be nil.
type Notifier interface {
	DayClosed(ctx context.Context, summary *day.CloseSummary) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	svc      AckService
	snaps    SnapshotSink
	closer   *day.Closer
	catalog  reasons.Catalog
	notifier Notifier
}

// New creates a new API handler.
func New(logger log.Logger, svc AckService, snaps SnapshotSink, closer *day.Closer, catalog reasons.Catalog, notifier Notifier) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("ack service is required"))
	}
	if snaps == nil {
		panic(xerrors.New("snapshot sink is required"))
	}
	return &API{
		logger:   logger,
		svc:      svc,
		snaps:    snaps,
		closer:   closer,
		catalog:  catalog,
		notifier: notifier,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/snapshots", a.handleIngestSnapshot)
		r.Get("/cases/{caseID}/alerts", a.handleCaseAlerts)
		r.Post("/cases/{caseID}/ack", a.handleAck)
		r.Post("/cases/{caseID}/shift", a.handleShift)
		r.Post("/cases/{caseID}/undo", a.handleUndo)
		r.Get("/reasons", a.handleListReasons)
		r.Post("/stations/{stationID}/days/{date}/close", a.handleCloseDay)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// actorFromRequest builds the authorization context from the request.
// Identity arrives via X-Actor behind the bearer-token middleware; an
// absent header is an unidentified caller, not an unauthorized one.
func actorFromRequest(r *http.Request) (authz.Context, bool) {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		return authz.Context{}, false
	}
	return authz.Context{Actor: actor}, true
}

// statusForError maps domain errors to HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, ack.ErrUnauthorized):
		return http.StatusForbidden, "actor lacks acknowledge capability"
	case errors.Is(err, ack.ErrUnknownScope):
		return http.StatusNotFound, "scope not in current evaluation set"
	case errors.Is(err, ack.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, ack.ErrDayClosed), errors.Is(err, day.ErrAlreadyClosed), errors.Is(err, day.ErrClosed):
		return http.StatusConflict, "business date is closed"
	case errors.Is(err, ack.ErrInvalidReason):
		return http.StatusUnprocessableEntity, "invalid reason code"
	case errors.Is(err, ack.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store unavailable"
	case errors.Is(err, snapshot.ErrStale), errors.Is(err, day.ErrStaleVersion):
		return http.StatusConflict, "stale snapshot version"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
