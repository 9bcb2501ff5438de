package schedule

import (
	"sort"
	"time"
)

// BuildInput carries everything one desired-schedule computation needs.
type BuildInput struct {
	Events      []Event
	Mapping     RoomDoorMapping
	Overrides   Overrides
	OfficeHours OfficeHours
	From        time.Time
	To          time.Time
	Location    *time.Location
	Now         time.Time
}

// Build computes the desired per-door schedule for one sync pass: resolve
// each gated event's rooms to door groups, apply exclusion rules and
// overrides, merge windows per door, then union in the office-hours
// template and re-merge so both coverage sources combine cleanly.
func Build(in BuildInput) Desired {
	desired := Desired{GeneratedAt: in.Now.UTC()}
	windowsByDoor := make(map[string][]DoorWindow)

	for _, evt := range in.Events {
		if in.Mapping.EventExcluded(evt) {
			continue
		}

		for _, room := range evt.RoomNames() {
			for _, doorKey := range in.Mapping.DoorKeysForRoom(room) {
				if in.Mapping.DoorExcludedForEvent(evt.Name, doorKey) {
					continue
				}
				door, ok := in.Mapping.Doors[doorKey]
				if !ok {
					continue
				}

				windows, overridden, suppressed := in.Overrides.ResolveWindows(evt, doorKey, door, in.Mapping.Defaults, in.Location)

				label := door.Label
				if label == "" {
					label = doorKey
				}
				desired.Items = append(desired.Items, Item{
					SourceEventID:     evt.ID,
					SourceEventName:   evt.Name,
					Room:              room,
					DoorKey:           doorKey,
					DoorLabel:         label,
					UnifiDoorIDs:      append([]string(nil), door.UnifiDoorIDs...),
					StartAt:           evt.StartAt,
					EndAt:             evt.EndAt,
					UnlockLeadMinutes: in.Mapping.Defaults.UnlockLeadMinutes,
					UnlockLagMinutes:  in.Mapping.Defaults.UnlockLagMinutes,
					Overridden:        overridden,
					Suppressed:        suppressed,
				})

				for _, w := range windows {
					// Stamp the contributing room onto override-derived
					// windows too, so merged provenance stays complete.
					w.SourceRooms = appendUnique(w.SourceRooms, room)
					windowsByDoor[doorKey] = append(windowsByDoor[doorKey], w)
				}
			}
		}
	}

	for _, w := range in.OfficeHours.ExpandWindows(in.From, in.To, in.Location, in.Mapping.Doors) {
		windowsByDoor[w.DoorKey] = append(windowsByDoor[w.DoorKey], w)
	}

	doorKeys := make([]string, 0, len(windowsByDoor))
	for dk := range windowsByDoor {
		doorKeys = append(doorKeys, dk)
	}
	sort.Strings(doorKeys)

	for _, dk := range doorKeys {
		desired.DoorWindows = append(desired.DoorWindows, MergeWindows(windowsByDoor[dk])...)
	}

	return desired
}
