// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/door-schedule-sync/backend/internal/storage"
	syncsvc "github.com/door-schedule-sync/backend/internal/sync"
	"github.com/door-schedule-sync/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}

// StatusResponse wraps the sync service snapshot with dashboard extras.
type StatusResponse struct {
	syncsvc.Status
	ConnectedClients int    `json:"connected_clients"`
	NextRunAt        string `json:"next_run_at,omitempty"`
}

// Status returns a handler that provides system status information.
func Status(service *syncsvc.Service, scheduler *syncsvc.Scheduler, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := StatusResponse{
			Status:           service.Snapshot(r.Context()),
			ConnectedClients: hub.ClientCount(),
		}
		if scheduler != nil {
			if next := scheduler.NextRun(); next != nil {
				response.NextRunAt = next.UTC().Format(time.RFC3339)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
