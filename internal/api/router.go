// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/door-schedule-sync/backend/internal/api/handlers"
	"github.com/door-schedule-sync/backend/internal/api/middleware"
	"github.com/door-schedule-sync/backend/internal/pco"
	"github.com/door-schedule-sync/backend/internal/storage"
	syncsvc "github.com/door-schedule-sync/backend/internal/sync"
	"github.com/door-schedule-sync/backend/internal/unifi"
	"github.com/door-schedule-sync/backend/internal/websocket"
	"github.com/gorilla/mux"
)

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(
	db *storage.DB,
	store storage.Store,
	hub *websocket.Hub,
	service *syncsvc.Service,
	scheduler *syncsvc.Scheduler,
	pcoClient *pco.Client,
	unifiClient *unifi.Client,
	staticDir string,
) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	broadcaster := websocket.NewEventBroadcaster(hub)

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(db)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(service, scheduler, hub)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(hub)).Methods("GET")

	// Sync endpoints
	api.HandleFunc("/sync/run", handlers.RunSync(service)).Methods("POST")
	api.HandleFunc("/sync/preview", handlers.PreviewSchedule(service)).Methods("GET")
	api.HandleFunc("/sync/apply-mode", handlers.GetApplyMode(service)).Methods("GET")
	api.HandleFunc("/sync/apply-mode", handlers.SetApplyMode(service)).Methods("PUT")

	// Approval queue endpoints
	api.HandleFunc("/approvals", handlers.ListApprovals(service.Gate())).Methods("GET")
	api.HandleFunc("/approvals/{id}/approve", handlers.ApproveEvent(service.Gate())).Methods("POST")
	api.HandleFunc("/approvals/{id}/deny", handlers.DenyEvent(service.Gate())).Methods("POST")

	// Cancellation endpoints
	api.HandleFunc("/cancellations", handlers.ListCancellations(service.Cancellations())).Methods("GET")
	api.HandleFunc("/cancellations", handlers.CancelEvent(service.Cancellations())).Methods("POST")
	api.HandleFunc("/cancellations/{id}", handlers.RestoreEvent(service.Cancellations())).Methods("DELETE")

	// Event memory endpoints
	api.HandleFunc("/events/memory", handlers.ListEventMemory(service.Memory())).Methods("GET")
	api.HandleFunc("/events/upcoming", handlers.ListUpcomingEvents(service.Memory())).Methods("GET")

	// Settings documents
	api.HandleFunc("/settings/mapping", handlers.GetMapping(store)).Methods("GET")
	api.HandleFunc("/settings/mapping", handlers.UpdateMapping(store, broadcaster)).Methods("PUT")
	api.HandleFunc("/settings/safe-hours", handlers.GetSafeHours(store)).Methods("GET")
	api.HandleFunc("/settings/safe-hours", handlers.UpdateSafeHours(store, broadcaster)).Methods("PUT")
	api.HandleFunc("/settings/overrides", handlers.GetOverrides(store)).Methods("GET")
	api.HandleFunc("/settings/overrides", handlers.UpdateOverrides(store, broadcaster)).Methods("PUT")
	api.HandleFunc("/settings/office-hours", handlers.GetOfficeHours(store)).Methods("GET")
	api.HandleFunc("/settings/office-hours", handlers.UpdateOfficeHours(store, broadcaster)).Methods("PUT")

	// Calendar source endpoints
	api.HandleFunc("/pco/calendars", handlers.ListPCOCalendars(pcoClient)).Methods("GET")

	// Controller endpoints
	api.HandleFunc("/unifi/ping", handlers.PingUnifi(unifiClient)).Methods("GET")
	api.HandleFunc("/unifi/doors", handlers.ListUnifiDoors(unifiClient)).Methods("GET")

	// Serve static frontend files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}
