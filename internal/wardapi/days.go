package wardapi

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleListReasons(w http.ResponseWriter, r *http.Request) {
	codes, err := a.catalog.List(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list reason codes")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reasons": codes})
}

func (a *API) handleCloseDay(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	date := chi.URLParam(r, "date")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("wardwatch.station.id", stationID),
		attribute.String("wardwatch.business_date", date),
	)

	summary, err := a.closer.Close(r.Context(), stationID, date)
	if err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			a.logger.Error(r.Context(), err, "day close failed", "station", stationID, "date", date)
		}
		writeError(w, status, msg)
		return
	}

	if a.notifier != nil {
		// notify out of band, webhook latency stays off the response path
		go func(s *API) {
			if err := s.notifier.DayClosed(context.WithoutCancel(r.Context()), summary); err != nil {
				s.logger.Error(context.Background(), err, "day close notification failed",
					"station", stationID, "date", date)
			}
		}(a)
	}

	writeJSON(w, http.StatusOK, summary)
}
