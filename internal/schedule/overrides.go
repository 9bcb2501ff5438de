package schedule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// OverridesDocument is the document-store key for event overrides.
const OverridesDocument = "event-overrides"

// maxOverrideWindows caps how many custom windows one door may carry for
// one event.
const maxOverrideWindows = 2

var clockTimeRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// OverrideWindow is one custom open/close window in local wall-clock time.
type OverrideWindow struct {
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
}

// DoorOverride holds the custom windows for one door on one event. An
// empty Windows list means the door is suppressed for that event.
type DoorOverride struct {
	Windows []OverrideWindow `json:"windows"`
}

// EventOverrideEntry maps door keys to their overrides for one event name.
type EventOverrideEntry struct {
	DoorOverrides map[string]DoorOverride `json:"doorOverrides"`
}

// Overrides is the full per-event-name override document. Lookup by event
// name is case-insensitive.
type Overrides struct {
	Overrides map[string]EventOverrideEntry `json:"overrides"`
}

// DefaultOverrides returns an empty override set.
func DefaultOverrides() Overrides {
	return Overrides{Overrides: map[string]EventOverrideEntry{}}
}

// ParseOverrides decodes an overrides document body, falling back to the
// empty set on missing or malformed input.
func ParseOverrides(body []byte) Overrides {
	if len(body) == 0 {
		return DefaultOverrides()
	}
	var o Overrides
	if err := json.Unmarshal(body, &o); err != nil || o.Overrides == nil {
		return DefaultOverrides()
	}
	return o
}

// Validate checks a user-submitted override document, returning a
// field-level error for the first problem found.
func (o Overrides) Validate() error {
	for eventName, entry := range o.Overrides {
		if entry.DoorOverrides == nil {
			return fmt.Errorf("override for %q must include doorOverrides", eventName)
		}
		for doorKey, dov := range entry.DoorOverrides {
			if dov.Windows == nil {
				return fmt.Errorf("windows for %q.%q must be an array (use [] to suppress this door)", eventName, doorKey)
			}
			if len(dov.Windows) > maxOverrideWindows {
				return fmt.Errorf("%q.%q has %d windows; at most %d are allowed", eventName, doorKey, len(dov.Windows), maxOverrideWindows)
			}
			for i, win := range dov.Windows {
				if !clockTimeRe.MatchString(win.OpenTime) {
					return fmt.Errorf("openTime in window %d for %q.%q must be HH:MM", i+1, eventName, doorKey)
				}
				if !clockTimeRe.MatchString(win.CloseTime) {
					return fmt.Errorf("closeTime in window %d for %q.%q must be HH:MM", i+1, eventName, doorKey)
				}
				openMin, err := parseClockMinutes(win.OpenTime)
				if err != nil {
					return fmt.Errorf("openTime in window %d for %q.%q: %v", i+1, eventName, doorKey, err)
				}
				closeMin, err := parseClockMinutes(win.CloseTime)
				if err != nil {
					return fmt.Errorf("closeTime in window %d for %q.%q: %v", i+1, eventName, doorKey, err)
				}
				if closeMin <= openMin {
					return fmt.Errorf("window %d for %q.%q must close after it opens", i+1, eventName, doorKey)
				}
			}
		}
	}
	return nil
}

// ForDoor looks up the override for (eventName, doorKey). Event name
// matching is case-insensitive; the door key is exact.
func (o Overrides) ForDoor(eventName, doorKey string) (DoorOverride, bool) {
	name := strings.ToLower(strings.TrimSpace(eventName))
	if name == "" {
		return DoorOverride{}, false
	}
	for key, entry := range o.Overrides {
		if strings.ToLower(strings.TrimSpace(key)) != name {
			continue
		}
		dov, ok := entry.DoorOverrides[doorKey]
		return dov, ok
	}
	return DoorOverride{}, false
}

// ResolveWindows produces the unlock windows for one (event, door) pair.
// An override with an empty window list suppresses the door for this event
// (nil result, suppressed=true). A non-empty override anchors each HH:MM
// pair to the event's local calendar date. Without an override the global
// lead/lag defaults apply.
func (o Overrides) ResolveWindows(e Event, doorKey string, door Door, defaults MappingDefaults, loc *time.Location) (windows []DoorWindow, overridden, suppressed bool) {
	dov, ok := o.ForDoor(e.Name, doorKey)
	if !ok {
		openStart := e.StartAt.Add(-time.Duration(defaults.UnlockLeadMinutes) * time.Minute)
		openEnd := e.EndAt.Add(time.Duration(defaults.UnlockLagMinutes) * time.Minute)
		return []DoorWindow{newEventWindow(e, doorKey, door, openStart, openEnd)}, false, false
	}

	if len(dov.Windows) == 0 {
		return nil, true, true
	}

	localDate := e.StartAt.In(loc)
	count := 0
	for _, win := range dov.Windows {
		if count >= maxOverrideWindows {
			break
		}
		openMin, err := parseClockMinutes(win.OpenTime)
		if err != nil {
			continue
		}
		closeMin, err := parseClockMinutes(win.CloseTime)
		if err != nil {
			continue
		}
		openStart := time.Date(localDate.Year(), localDate.Month(), localDate.Day(), openMin/60, openMin%60, 0, 0, loc).UTC()
		openEnd := time.Date(localDate.Year(), localDate.Month(), localDate.Day(), closeMin/60, closeMin%60, 0, 0, loc).UTC()
		if !openEnd.After(openStart) {
			continue
		}
		windows = append(windows, newEventWindow(e, doorKey, door, openStart, openEnd))
		count++
	}
	return windows, true, false
}

func newEventWindow(e Event, doorKey string, door Door, openStart, openEnd time.Time) DoorWindow {
	label := door.Label
	if label == "" {
		label = doorKey
	}
	return DoorWindow{
		DoorKey:          doorKey,
		DoorLabel:        label,
		UnifiDoorIDs:     append([]string(nil), door.UnifiDoorIDs...),
		OpenStart:        openStart.UTC(),
		OpenEnd:          openEnd.UTC(),
		SourceEventIDs:   []string{e.ID},
		SourceEventNames: appendUnique(nil, e.Name),
		SourceRooms:      appendUnique(nil, e.RoomNames()...),
	}
}

// parseClockMinutes converts "HH:MM" to minutes since midnight.
func parseClockMinutes(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return h*60 + m, nil
}
