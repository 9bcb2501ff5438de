package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/door-schedule-sync/backend/internal/api/middleware"
	"github.com/door-schedule-sync/backend/internal/gate"
	"github.com/gorilla/mux"
)

// ListCancellations returns the currently suppressed event instances.
func ListCancellations(c *gate.Cancellations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instances, err := c.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load cancellations")
			return
		}
		if instances == nil {
			instances = []gate.CancelledInstance{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(instances)
	}
}

// CancelRequest identifies one event instance to suppress.
type CancelRequest struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

// CancelEvent suppresses one event instance for the current sync window.
// Cancelling an already-cancelled instance refreshes its record.
func CancelEvent(c *gate.Cancellations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.ID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "'id' is required")
			return
		}

		if err := c.Cancel(r.Context(), req.ID, req.Name, req.StartAt, req.EndAt); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to cancel event")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(req)
	}
}

// RestoreEvent lifts a cancellation so the instance contributes again on
// the next pass.
func RestoreEvent(c *gate.Cancellations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := c.Restore(r.Context(), id); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to restore event")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
