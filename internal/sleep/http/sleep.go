package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/service"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/somnuslabs/somnus/pkg/httpx"
	"github.com/somnuslabs/somnus/pkg/sleepsdk"
	"github.com/somnuslabs/somnus/pkg/slogx"
)

func authedUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return "", false
	}
	return userID, true
}

func writeRecordsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDay):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_day", "days use the YYYY-MM-DD format")
	case errors.Is(err, service.ErrInvalidRange):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_range", "start must not be after end")
	case errors.Is(err, service.ErrInvalidTags):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_tags", "too many tags or a tag is too long")
	case errors.Is(err, service.ErrNotesTooLong):
		httpx.WriteError(w, http.StatusBadRequest, "notes_too_long", "notes exceed the maximum length")
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no sleep record for this day")
	default:
		slogx.FromContext(r.Context()).Error("sleep records request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

type SleepListHandler struct {
	Records *service.RecordsService
}

func (h *SleepListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	records, err := h.Records.List(r.Context(), userID,
		r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeRecordsError(w, r, err)
		return
	}

	// Serve an empty list, not null, when the window has no records.
	if records == nil {
		records = []domain.SleepRecord{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

type SleepDayHandler struct {
	Records *service.RecordsService
}

func (h *SleepDayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	record, err := h.Records.Get(r.Context(), userID, r.PathValue("day"))
	if err != nil {
		writeRecordsError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, record)
}

type SleepAnnotateHandler struct {
	Records *service.RecordsService
}

func (h *SleepAnnotateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	var req sleepsdk.AnnotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	record, err := h.Records.Annotate(r.Context(), userID, r.PathValue("day"), req.Tags, req.Notes)
	if err != nil {
		writeRecordsError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, record)
}

type SleepSummaryHandler struct {
	Records *service.RecordsService
}

func (h *SleepSummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.Records.Summary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no summary computed yet; run a sync first")
			return
		}
		writeRecordsError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, summary)
}
