package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MappingDocument is the document-store key for the room/door mapping.
const MappingDocument = "room-door-mapping"

// Door describes one logical door group: a label plus the downstream door
// identifiers unlocked together.
type Door struct {
	Label        string   `json:"label"`
	UnifiDoorIDs []string `json:"unifiDoorIds"`
}

// MappingDefaults holds the global lead/lag applied when no override
// specifies exact times.
type MappingDefaults struct {
	UnlockLeadMinutes int `json:"unlockLeadMinutes"`
	UnlockLagMinutes  int `json:"unlockLagMinutes"`
}

// ExcludeDoorRule suppresses specific door keys for events whose name
// contains a substring.
type ExcludeDoorRule struct {
	EventNameContains string   `json:"eventNameContains"`
	DoorKeys          []string `json:"doorKeys"`
}

// MappingRules are the optional exclusion rules in the mapping document.
type MappingRules struct {
	ExcludeEventsByRoomContains []string          `json:"excludeEventsByRoomContains,omitempty"`
	ExcludeDoorKeysByEventName  []ExcludeDoorRule `json:"excludeDoorKeysByEventName,omitempty"`
}

// RoomDoorMapping maps calendar room names to door groups.
type RoomDoorMapping struct {
	Doors    map[string]Door     `json:"doors"`
	Rooms    map[string][]string `json:"rooms"`
	Defaults MappingDefaults     `json:"defaults"`
	Rules    MappingRules        `json:"rules,omitempty"`
}

// DefaultMapping returns an empty mapping with the standard 15-minute
// lead/lag defaults.
func DefaultMapping() RoomDoorMapping {
	return RoomDoorMapping{
		Doors:    map[string]Door{},
		Rooms:    map[string][]string{},
		Defaults: MappingDefaults{UnlockLeadMinutes: 15, UnlockLagMinutes: 15},
	}
}

// ParseMapping decodes a mapping document body. A missing or malformed
// body yields the default mapping, never an error.
func ParseMapping(body []byte) RoomDoorMapping {
	if len(body) == 0 {
		return DefaultMapping()
	}
	var m RoomDoorMapping
	if err := json.Unmarshal(body, &m); err != nil {
		return DefaultMapping()
	}
	if m.Doors == nil {
		m.Doors = map[string]Door{}
	}
	if m.Rooms == nil {
		m.Rooms = map[string][]string{}
	}
	if m.Defaults.UnlockLeadMinutes == 0 && m.Defaults.UnlockLagMinutes == 0 {
		m.Defaults = MappingDefaults{UnlockLeadMinutes: 15, UnlockLagMinutes: 15}
	}
	return m
}

// Validate checks the mapping for internal consistency. Used at the
// settings write boundary and at the start of each sync pass; a room
// referencing an unknown door key is a configuration error.
func (m RoomDoorMapping) Validate() error {
	if m.Defaults.UnlockLeadMinutes < 0 {
		return fmt.Errorf("defaults.unlockLeadMinutes must not be negative")
	}
	if m.Defaults.UnlockLagMinutes < 0 {
		return fmt.Errorf("defaults.unlockLagMinutes must not be negative")
	}
	for room, doorKeys := range m.Rooms {
		for _, dk := range doorKeys {
			if _, ok := m.Doors[dk]; !ok {
				return fmt.Errorf("room %q references unknown door key %q", room, dk)
			}
		}
	}
	for i, rule := range m.Rules.ExcludeDoorKeysByEventName {
		if strings.TrimSpace(rule.EventNameContains) == "" {
			return fmt.Errorf("rules.excludeDoorKeysByEventName[%d].eventNameContains must not be empty", i)
		}
		for _, dk := range rule.DoorKeys {
			if _, ok := m.Doors[dk]; !ok {
				return fmt.Errorf("rules.excludeDoorKeysByEventName[%d] references unknown door key %q", i, dk)
			}
		}
	}
	return nil
}

// DoorKeysForRoom returns the door keys mapped to a room name.
func (m RoomDoorMapping) DoorKeysForRoom(room string) []string {
	return m.Rooms[room]
}

// EventExcluded reports whether the event should be skipped entirely
// because one of its rooms (or raw location) contains a configured
// exclusion substring.
func (m RoomDoorMapping) EventExcluded(e Event) bool {
	if len(m.Rules.ExcludeEventsByRoomContains) == 0 {
		return false
	}
	haystacks := []string{strings.ToLower(e.LocationRaw)}
	for _, r := range e.RoomNames() {
		haystacks = append(haystacks, strings.ToLower(r))
	}
	for _, needle := range m.Rules.ExcludeEventsByRoomContains {
		n := strings.ToLower(strings.TrimSpace(needle))
		if n == "" {
			continue
		}
		for _, hay := range haystacks {
			if hay != "" && strings.Contains(hay, n) {
				return true
			}
		}
	}
	return false
}

// DoorExcludedForEvent reports whether a name-matching rule suppresses the
// given door key for this event. Matching is substring, case-insensitive
// on the event name, exact on the door key.
func (m RoomDoorMapping) DoorExcludedForEvent(eventName, doorKey string) bool {
	name := strings.ToLower(strings.TrimSpace(eventName))
	if name == "" {
		return false
	}
	for _, rule := range m.Rules.ExcludeDoorKeysByEventName {
		needle := strings.ToLower(strings.TrimSpace(rule.EventNameContains))
		if needle == "" || !strings.Contains(name, needle) {
			continue
		}
		for _, dk := range rule.DoorKeys {
			if strings.TrimSpace(dk) == doorKey {
				return true
			}
		}
	}
	return false
}
