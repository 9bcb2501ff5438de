package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/door-schedule-sync/backend/internal/api/middleware"
	"github.com/door-schedule-sync/backend/internal/gate"
	"github.com/gorilla/mux"
)

// ApprovalsResponse lists the approval queue and the standing name list.
type ApprovalsResponse struct {
	Pending       []gate.PendingApproval `json:"pending"`
	ApprovedNames []gate.ApprovedName    `json:"approved_names"`
}

// ListApprovals returns the pending queue plus the auto-approved names.
func ListApprovals(g *gate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		pending, err := g.Pending(ctx)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load approvals")
			return
		}
		names, err := g.ApprovedNames(ctx)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load approved names")
			return
		}

		if pending == nil {
			pending = []gate.PendingApproval{}
		}
		if names == nil {
			names = []gate.ApprovedName{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ApprovalsResponse{Pending: pending, ApprovedNames: names})
	}
}

// ApprovalActionResponse reports the result of an approve or deny.
type ApprovalActionResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
}

// ApproveEvent approves a flagged event. The event's name joins the
// auto-approved list so future instances pass without review.
func ApproveEvent(g *gate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		name, ok, err := g.Approve(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to approve event")
			return
		}
		if !ok {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "No pending approval with that id")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ApprovalActionResponse{ID: id, Name: name, Status: gate.StatusApproved})
	}
}

// DenyEvent denies a flagged event; it stays held for this instance.
func DenyEvent(g *gate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		name, ok, err := g.Deny(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to deny event")
			return
		}
		if !ok {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "No pending approval with that id")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ApprovalActionResponse{ID: id, Name: name, Status: gate.StatusDenied})
	}
}
