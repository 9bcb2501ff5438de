package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/door-schedule-sync/backend/internal/api/middleware"
	"github.com/door-schedule-sync/backend/internal/unifi"
)

// PingUnifi checks connectivity to the access controller.
func PingUnifi(client *unifi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok := client.CheckConnectivity(r.Context())

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"connected": ok})
	}
}

// ListUnifiDoors returns the controller's door inventory, useful when
// filling in door IDs for the room-door mapping.
func ListUnifiDoors(client *unifi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := client.ListDoors(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusBadGateway, middleware.ErrUpstream, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(listing)
	}
}
