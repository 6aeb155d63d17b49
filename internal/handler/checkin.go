package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/auth"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/service"
)

// CheckinHandler serves check-ins. POST /checkin and GET /checkin/history
// act on behalf of the caller identified by the bearer token.
type CheckinHandler struct {
	checkins *service.CheckinService
	logger   *slog.Logger
	now      func() time.Time
}

func NewCheckinHandler(checkins *service.CheckinService, logger *slog.Logger) *CheckinHandler {
	return &CheckinHandler{checkins: checkins, logger: logger, now: time.Now}
}

type checkinRequest struct {
	ActivityID string `json:"idActivity"`
}

// HandleCreate runs the admission engine for the caller.
//
// HTTP: POST /checkin
// REQUEST BODY: {"idActivity": "..."}
// RESPONSE: 200 {"current": {...}, "history": [...]}
//
// Every rejection is a 400, including an unknown activity or a caller whose
// account no longer exists. Only internal failures are 500.
func (h *CheckinHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.EmailFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req checkinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	activityID := strings.TrimSpace(req.ActivityID)
	if activityID == "" {
		writeError(w, apperror.ValidationFailed("idActivity", "idActivity is required"))
		return
	}

	result, err := h.checkins.RequestCheckin(r.Context(), email, activityID, h.now())
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleHistory: GET /checkin/history. The caller's check-ins, newest first.
func (h *CheckinHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.EmailFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	history, err := h.checkins.History(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleList: GET /checkin
func (h *CheckinHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	checkins, err := h.checkins.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkins)
}

// HandleGet: GET /checkin/{id}
func (h *CheckinHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	checkin, err := h.checkins.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkin)
}

type checkinUpdateRequest struct {
	CheckinTime model.DateTime `json:"checkinTime"`
}

// HandleUpdate moves a check-in in time.
//
// HTTP: PUT /checkin/{id}
// REQUEST BODY: {"checkinTime": "10-03-2026 18:05"}
//
// Admission rules are not re-checked.
func (h *CheckinHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req checkinUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	checkin, err := h.checkins.UpdateTime(r.Context(), r.PathValue("id"), req.CheckinTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkin)
}

// HandleDelete: DELETE /checkin/{id}. 404 when it does not exist.
func (h *CheckinHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.checkins.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
