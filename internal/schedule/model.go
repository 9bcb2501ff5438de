// Package schedule contains the domain models and the desired-schedule
// builder: room/door mapping, per-event overrides, office hours, and the
// interval merger that collapses per-door unlock windows.
package schedule

import (
	"time"
)

// Event represents a single calendar event instance for the current sync
// window. Events are produced fresh each pass and are not persisted here.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
	Room        string    `json:"room,omitempty"`
	Rooms       []string  `json:"rooms,omitempty"`
	LocationRaw string    `json:"locationRaw,omitempty"`
	Building    string    `json:"building,omitempty"`
	Address     string    `json:"address,omitempty"`
	RoomSource  string    `json:"roomSource,omitempty"`
}

// RoomNames returns the event's room names in order, deduplicated.
// Falls back to the single Room field when the Rooms list is empty.
func (e Event) RoomNames() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range e.Rooms {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) == 0 && e.Room != "" {
		out = append(out, e.Room)
	}
	return out
}

// DoorWindow is a time-bounded unlock window for one door group, with
// provenance back to the events and rooms that produced it.
type DoorWindow struct {
	DoorKey          string    `json:"doorKey"`
	DoorLabel        string    `json:"doorLabel"`
	UnifiDoorIDs     []string  `json:"unifiDoorIds"`
	OpenStart        time.Time `json:"openStart"`
	OpenEnd          time.Time `json:"openEnd"`
	SourceEventIDs   []string  `json:"sourceEventIds"`
	SourceEventNames []string  `json:"sourceEventNames"`
	SourceRooms      []string  `json:"sourceRooms"`
}

// Item is one flat pre-merge (event x door) record, retained in the
// desired schedule for audit and dashboard display.
type Item struct {
	SourceEventID     string    `json:"sourceEventId"`
	SourceEventName   string    `json:"sourceEventName"`
	Room              string    `json:"room"`
	DoorKey           string    `json:"doorKey"`
	DoorLabel         string    `json:"doorLabel"`
	UnifiDoorIDs      []string  `json:"unifiDoorIds"`
	StartAt           time.Time `json:"startAt"`
	EndAt             time.Time `json:"endAt"`
	UnlockLeadMinutes int       `json:"unlockLeadMinutes"`
	UnlockLagMinutes  int       `json:"unlockLagMinutes"`
	Overridden        bool      `json:"overridden,omitempty"`
	Suppressed        bool      `json:"suppressed,omitempty"`
}

// Desired is the full computed target state for one sync pass.
type Desired struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	Items       []Item       `json:"items"`
	DoorWindows []DoorWindow `json:"doorWindows"`
}

// WindowsByDoor groups the merged windows by door key.
func (d Desired) WindowsByDoor() map[string][]DoorWindow {
	out := make(map[string][]DoorWindow)
	for _, w := range d.DoorWindows {
		if w.DoorKey == "" {
			continue
		}
		out[w.DoorKey] = append(out[w.DoorKey], w)
	}
	return out
}

// appendUnique appends values to dst preserving order, skipping duplicates
// and empty strings.
func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
