package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/door-schedule-sync/backend/internal/api/middleware"
	"github.com/door-schedule-sync/backend/internal/pco"
)

// ListPCOCalendars returns the calendars visible to the configured
// credentials, useful when picking a calendar ID for the sync config.
func ListPCOCalendars(client *pco.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calendars, err := client.ListCalendars(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusBadGateway, middleware.ErrUpstream, err.Error())
			return
		}
		if calendars == nil {
			calendars = []pco.Calendar{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(calendars)
	}
}
