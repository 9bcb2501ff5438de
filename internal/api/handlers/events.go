package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/door-schedule-sync/backend/internal/api/middleware"
	"github.com/door-schedule-sync/backend/internal/memory"
)

// ListEventMemory returns the remembered events, upcoming first.
func ListEventMemory(m *memory.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := m.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load event memory")
			return
		}
		if entries == nil {
			entries = []memory.Entry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

// ListUpcomingEvents returns only remembered events with a known next
// occurrence, soonest first.
func ListUpcomingEvents(m *memory.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := m.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load event memory")
			return
		}

		upcoming := []memory.Entry{}
		for _, e := range entries {
			if e.NextAt != nil {
				upcoming = append(upcoming, e)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(upcoming)
	}
}
