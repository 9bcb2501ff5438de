package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/door-schedule-sync/backend/internal/api/middleware"
	syncsvc "github.com/door-schedule-sync/backend/internal/sync"
)

// RunSync triggers an immediate reconciliation pass. The pass runs
// synchronously so the caller sees its outcome.
func RunSync(service *syncsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.RunOnce(r.Context()); err != nil {
			middleware.WriteError(w, http.StatusBadGateway, middleware.ErrUpstream, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.Snapshot(r.Context()))
	}
}

// PreviewSchedule computes the desired schedule for a window without
// writing anything. Query params: from, to (RFC 3339), limit.
func PreviewSchedule(service *syncsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		from := now
		to := now.Add(7 * 24 * time.Hour)

		if v := r.URL.Query().Get("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid 'from' timestamp")
				return
			}
			from = t.UTC()
		}
		if v := r.URL.Query().Get("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid 'to' timestamp")
				return
			}
			to = t.UTC()
		}
		if !to.After(from) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "'to' must be after 'from'")
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid 'limit'")
				return
			}
			limit = n
		}

		preview, err := service.PreviewWindow(r.Context(), from, to, limit)
		if err != nil {
			middleware.WriteError(w, http.StatusBadGateway, middleware.ErrUpstream, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(preview)
	}
}

// ApplyModeRequest is the body for toggling controller writes.
type ApplyModeRequest struct {
	ApplyToUnifi bool `json:"apply_to_unifi"`
}

// GetApplyMode reports whether sync passes write to the controller.
func GetApplyMode(service *syncsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ApplyModeRequest{ApplyToUnifi: service.ApplyToUnifi()})
	}
}

// SetApplyMode flips the runtime apply toggle.
func SetApplyMode(service *syncsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ApplyModeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		service.SetApplyToUnifi(req.ApplyToUnifi)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ApplyModeRequest{ApplyToUnifi: service.ApplyToUnifi()})
	}
}
