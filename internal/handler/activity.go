package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/service"
)

// ActivityHandler manages CRUD operations for scheduled activities.
//
// Times travel as "dd-MM-yyyy HH:mm" in the gym's UTC-3 zone; ISO 8601
// input is accepted too (see model.DateTime).
type ActivityHandler struct {
	activities *service.ActivityService
	logger     *slog.Logger
}

func NewActivityHandler(activities *service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, logger: logger}
}

type activityRequest struct {
	Description string         `json:"description"`
	StartTime   model.DateTime `json:"startTime"`
	FinishTime  model.DateTime `json:"finishTime"`
	LimitPeople int            `json:"limitPeople"`
}

func (req activityRequest) input() service.ActivityInput {
	return service.ActivityInput{
		Description: req.Description,
		StartTime:   req.StartTime,
		FinishTime:  req.FinishTime,
		LimitPeople: req.LimitPeople,
	}
}

// HandleCreate schedules a new activity.
//
// HTTP: POST /activity
// REQUEST BODY: {"description": "Spinning", "startTime": "10-03-2026 18:00",
// "finishTime": "10-03-2026 19:00", "limitPeople": 20}
// RESPONSE: 200 + the created activity
func (h *ActivityHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	activity, err := h.activities.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

// HandleList: GET /activity
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	activities, err := h.activities.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

// HandleGet: GET /activity/{id}
func (h *ActivityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	activity, err := h.activities.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

// HandleAvailability reports free slots.
//
// HTTP: GET /activity/{id}/availability
// RESPONSE: {"id","description","limitPeople","checkinCount","availableSlots"}
func (h *ActivityHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.activities.Availability(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

// HandleUpdate: PUT /activity/{id}. Every field is replaced.
func (h *ActivityHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	activity, err := h.activities.Update(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

// HandleDelete: DELETE /activity/{id}. Always 204, even for an unknown id.
func (h *ActivityHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.activities.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
