package schedule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// OfficeHoursDocument is the document-store key for the office-hours
// config.
const OfficeHoursDocument = "office-hours"

// OfficeHoursSource is the synthetic provenance id carried by
// office-hours-derived windows, so the dashboard can tell them apart from
// event-derived coverage.
const OfficeHoursSource = "office-hours"

// officeHoursDays is weekday order as stored in the document
// (Monday-first, matching the settings page).
var officeHoursDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// rangeRe matches one "H:MM-H:MM" entry; minutes are optional (bare-hour
// shorthand like "8-12") and an en-dash is accepted.
var rangeRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*[-\x{2013}]\s*(\d{1,2})(?::(\d{2}))?$`)

// OfficeHoursDay is one weekday's recurring template.
type OfficeHoursDay struct {
	Ranges string   `json:"ranges"`
	Doors  []string `json:"doors"`
}

// OfficeHours is the recurring weekly open-door template.
type OfficeHours struct {
	Enabled  bool                      `json:"enabled"`
	Schedule map[string]OfficeHoursDay `json:"schedule"`
}

// DefaultOfficeHours returns a disabled template with all seven days
// present and empty.
func DefaultOfficeHours() OfficeHours {
	sched := make(map[string]OfficeHoursDay, len(officeHoursDays))
	for _, d := range officeHoursDays {
		sched[d] = OfficeHoursDay{Doors: []string{}}
	}
	return OfficeHours{Schedule: sched}
}

// ParseOfficeHours decodes an office-hours document body, falling back to
// the disabled default on missing or malformed input.
func ParseOfficeHours(body []byte) OfficeHours {
	if len(body) == 0 {
		return DefaultOfficeHours()
	}
	var oh OfficeHours
	if err := json.Unmarshal(body, &oh); err != nil || oh.Schedule == nil {
		return DefaultOfficeHours()
	}
	return oh
}

// Validate checks a user-submitted office-hours document.
func (oh OfficeHours) Validate() error {
	if oh.Schedule == nil {
		return fmt.Errorf("schedule must be an object")
	}
	for _, day := range officeHoursDays {
		if _, ok := oh.Schedule[day]; !ok {
			return fmt.Errorf("schedule is missing day: %s", day)
		}
	}
	return nil
}

// ParseTimeRanges parses a comma- or semicolon-separated list of time
// ranges into [start, end] HH:MM pairs. Malformed entries are skipped, not
// rejected; a template with one bad entry still opens doors for the rest.
func ParseTimeRanges(text string) [][2]string {
	var out [][2]string
	for _, part := range regexp.MustCompile(`[,;]`).Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := rangeRe.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		sh := atoiDefault(m[1], -1)
		sm := atoiDefault(m[2], 0)
		eh := atoiDefault(m[3], -1)
		em := atoiDefault(m[4], 0)
		if sh < 0 || sh > 23 || sm < 0 || sm > 59 || eh < 0 || eh > 23 || em < 0 || em > 59 {
			continue
		}
		out = append(out, [2]string{
			fmt.Sprintf("%02d:%02d", sh, sm),
			fmt.Sprintf("%02d:%02d", eh, em),
		})
	}
	return out
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return def
	}
	return n
}

// ExpandWindows generates unlock windows for every local calendar date in
// [from, to] where the template applies, converted to UTC and tagged with
// the synthetic office-hours provenance.
func (oh OfficeHours) ExpandWindows(from, to time.Time, loc *time.Location, doors map[string]Door) []DoorWindow {
	if !oh.Enabled {
		return nil
	}

	var windows []DoorWindow
	day := from.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	endDay := to.In(loc)
	endDay = time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 0, 0, 0, 0, loc)

	for !day.After(endDay) {
		dayCfg := oh.Schedule[weekdayKey(day.Weekday())]
		rangesText := strings.TrimSpace(dayCfg.Ranges)
		if rangesText == "" || len(dayCfg.Doors) == 0 {
			day = day.AddDate(0, 0, 1)
			continue
		}

		for _, rng := range ParseTimeRanges(rangesText) {
			startMin, err1 := parseClockMinutes(rng[0])
			endMin, err2 := parseClockMinutes(rng[1])
			if err1 != nil || err2 != nil {
				continue
			}
			localStart := day.Add(time.Duration(startMin) * time.Minute)
			localEnd := day.Add(time.Duration(endMin) * time.Minute)
			if !localEnd.After(localStart) {
				continue
			}

			for _, doorKey := range dayCfg.Doors {
				door, ok := doors[doorKey]
				if !ok {
					continue
				}
				label := door.Label
				if label == "" {
					label = doorKey
				}
				windows = append(windows, DoorWindow{
					DoorKey:          doorKey,
					DoorLabel:        label,
					UnifiDoorIDs:     append([]string(nil), door.UnifiDoorIDs...),
					OpenStart:        localStart.UTC(),
					OpenEnd:          localEnd.UTC(),
					SourceEventIDs:   []string{OfficeHoursSource},
					SourceEventNames: []string{"Office Hours"},
					SourceRooms:      []string{"Office Hours"},
				})
			}
		}

		day = day.AddDate(0, 0, 1)
	}

	return windows
}

// weekdayKey maps time.Weekday to the document's lowercase day name.
func weekdayKey(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}
