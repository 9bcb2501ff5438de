package websocket

import (
	"log"
	"time"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastSyncCompleted sends a sync completed event.
func (b *EventBroadcaster) BroadcastSyncCompleted(ranAt time.Time, duration time.Duration, eventsFetched, eventsKept, doorWindows, pendingCount int, applied bool) {
	payload := SyncCompletedPayload{
		RanAt:         ranAt.UTC(),
		DurationMS:    duration.Milliseconds(),
		EventsFetched: eventsFetched,
		EventsKept:    eventsKept,
		DoorWindows:   doorWindows,
		PendingCount:  pendingCount,
		Applied:       applied,
	}

	msg := NewMessage(TypeSyncCompleted, payload)
	b.broadcast(msg)
}

// BroadcastSyncError sends a sync error event.
func (b *EventBroadcaster) BroadcastSyncError(ranAt time.Time, err error) {
	payload := SyncErrorPayload{
		RanAt: ranAt.UTC(),
		Error: err.Error(),
	}

	msg := NewMessage(TypeSyncError, payload)
	b.broadcast(msg)
}

// BroadcastApprovalsFlagged sends an event when new approvals need review.
func (b *EventBroadcaster) BroadcastApprovalsFlagged(names []string) {
	payload := ApprovalsFlaggedPayload{
		Count: len(names),
		Names: names,
	}

	msg := NewMessage(TypeApprovalsFlagged, payload)
	b.broadcast(msg)
}

// BroadcastConfigUpdated sends an event after a settings document changes.
func (b *EventBroadcaster) BroadcastConfigUpdated(document string) {
	payload := ConfigUpdatedPayload{Document: document}

	msg := NewMessage(TypeConfigUpdated, payload)
	b.broadcast(msg)
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	b.hub.Broadcast(data)
}
