package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/door-schedule-sync/backend/internal/api/middleware"
	"github.com/door-schedule-sync/backend/internal/gate"
	"github.com/door-schedule-sync/backend/internal/schedule"
	"github.com/door-schedule-sync/backend/internal/storage"
	"github.com/door-schedule-sync/backend/internal/websocket"
)

// The settings endpoints read and write whole state documents. Reads
// return the parsed document with defaults applied, so the dashboard
// always sees a complete shape. Writes decode strictly into the typed
// document before validating; the lenient parse-with-fallback is for
// reads only, where a mistyped body degrading to defaults would
// otherwise overwrite good config. An invalid document is rejected
// whole and the stored copy is untouched.

// decodeDocument unmarshals a settings body into its typed document,
// writing the error response on failure. A type mismatch is a validation
// error with the offending field named; anything else is a bad request.
func decodeDocument(w http.ResponseWriter, body []byte, doc any) bool {
	if err := json.Unmarshal(body, doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "(document root)"
			}
			middleware.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, middleware.ErrValidation,
				fmt.Sprintf("Field %s must be of type %s", field, typeErr.Type), err.Error())
			return false
		}
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Body must be a JSON document")
		return false
	}
	return true
}

func writeDocument(w http.ResponseWriter, r *http.Request, store storage.Store, broadcaster *websocket.EventBroadcaster, key string, body []byte) {
	if err := store.Put(r.Context(), key, body); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to save settings")
		return
	}
	if broadcaster != nil {
		broadcaster.BroadcastConfigUpdated(key)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// GetMapping returns the room-door mapping with defaults applied.
func GetMapping(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := store.Get(r.Context(), schedule.MappingDocument)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load mapping")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schedule.ParseMapping(body))
	}
}

// UpdateMapping validates and stores the room-door mapping.
func UpdateMapping(store storage.Store, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		var doc schedule.RoomDoorMapping
		if !decodeDocument(w, body, &doc) {
			return
		}
		if err := doc.Validate(); err != nil {
			middleware.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, middleware.ErrValidation, "Document failed validation", err.Error())
			return
		}

		writeDocument(w, r, store, broadcaster, schedule.MappingDocument, body)
	}
}

// GetSafeHours returns the safe-hours policy in its flat document shape.
func GetSafeHours(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := store.Get(r.Context(), gate.SafeHoursDocument)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load safe hours")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(gate.ParseSafeHours(body).Document())
	}
}

// UpdateSafeHours validates and stores the safe-hours policy.
func UpdateSafeHours(store storage.Store, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		// The stored shape is flat string-to-string; the strict decode
		// is what keeps a mistyped value from reading back as defaults.
		var doc map[string]string
		if !decodeDocument(w, body, &doc) {
			return
		}
		if err := gate.ParseSafeHours(body).Validate(); err != nil {
			middleware.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, middleware.ErrValidation, "Document failed validation", err.Error())
			return
		}

		writeDocument(w, r, store, broadcaster, gate.SafeHoursDocument, body)
	}
}

// GetOverrides returns the per-event override document.
func GetOverrides(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := store.Get(r.Context(), schedule.OverridesDocument)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load overrides")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schedule.ParseOverrides(body))
	}
}

// UpdateOverrides validates and stores the per-event overrides.
func UpdateOverrides(store storage.Store, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		var doc schedule.Overrides
		if !decodeDocument(w, body, &doc) {
			return
		}
		if err := doc.Validate(); err != nil {
			middleware.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, middleware.ErrValidation, "Document failed validation", err.Error())
			return
		}

		writeDocument(w, r, store, broadcaster, schedule.OverridesDocument, body)
	}
}

// GetOfficeHours returns the weekly office-hours template.
func GetOfficeHours(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := store.Get(r.Context(), schedule.OfficeHoursDocument)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load office hours")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schedule.ParseOfficeHours(body))
	}
}

// UpdateOfficeHours validates and stores the office-hours template.
func UpdateOfficeHours(store storage.Store, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		var doc schedule.OfficeHours
		if !decodeDocument(w, body, &doc) {
			return
		}
		if err := doc.Validate(); err != nil {
			middleware.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, middleware.ErrValidation, "Document failed validation", err.Error())
			return
		}

		writeDocument(w, r, store, broadcaster, schedule.OfficeHoursDocument, body)
	}
}
