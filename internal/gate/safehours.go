// Package gate holds events that would open doors outside safe hours
// until a human approves them, and filters explicitly cancelled event
// instances. All state lives in whole-document store entries so dashboard
// actions and sync passes can interleave safely.
package gate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SafeHoursDocument is the document-store key for the safe-hours policy.
const SafeHoursDocument = "safe-hours"

// dayNames is Monday-first, matching time.Weekday offset by one.
var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// SafeHoursPolicy is the per-weekday window in which doors may open
// without approval. Times are local "HH:MM" clock strings.
type SafeHoursPolicy struct {
	Start map[string]string
	End   map[string]string
}

// DefaultSafeHours returns the standard policy: 05:00-23:00 every day,
// except Friday which runs to 23:30.
func DefaultSafeHours() SafeHoursPolicy {
	p := SafeHoursPolicy{Start: map[string]string{}, End: map[string]string{}}
	for _, day := range dayNames {
		p.Start[day] = "05:00"
		p.End[day] = "23:00"
	}
	p.End["Friday"] = "23:30"
	return p
}

// ParseSafeHours decodes a safe-hours document. The stored shape is flat
// ("safeStartMonday", "safeEndFriday", ...). Legacy single-value fields
// ("safeStartTime", "safeEndDefault") are spread across all days first, so
// old configs are not silently reset; per-day keys then override. Missing
// or malformed bodies yield the defaults.
func ParseSafeHours(body []byte) SafeHoursPolicy {
	p := DefaultSafeHours()
	if len(body) == 0 {
		return p
	}
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return p
	}

	if v := raw["safeStartTime"]; v != "" {
		for _, day := range dayNames {
			p.Start[day] = v
		}
	}
	if v := raw["safeEndDefault"]; v != "" {
		for _, day := range dayNames {
			if day == "Friday" {
				continue
			}
			p.End[day] = v
		}
	}
	for _, day := range dayNames {
		if v := raw["safeStart"+day]; v != "" {
			p.Start[day] = v
		}
		if v := raw["safeEnd"+day]; v != "" {
			p.End[day] = v
		}
	}
	return p
}

// Document renders the policy in its stored flat shape.
func (p SafeHoursPolicy) Document() map[string]string {
	out := make(map[string]string, len(dayNames)*2)
	for _, day := range dayNames {
		out["safeStart"+day] = p.Start[day]
		out["safeEnd"+day] = p.End[day]
	}
	return out
}

// Validate checks a user-submitted policy for well-formed clock times and
// start-before-end per day.
func (p SafeHoursPolicy) Validate() error {
	for _, day := range dayNames {
		start, err := clockMinutes(p.Start[day])
		if err != nil {
			return fmt.Errorf("safeStart%s: %v", day, err)
		}
		end, err := clockMinutes(p.End[day])
		if err != nil {
			return fmt.Errorf("safeEnd%s: %v", day, err)
		}
		if end <= start {
			return fmt.Errorf("safe hours for %s must end after they start", day)
		}
	}
	return nil
}

// Outside reports whether an effective door-open window falls outside
// safe hours, with a human-readable reason for the dashboard. Both times
// must already be in local time; the weekday for the policy lookup is the
// effective start's weekday.
//
// Any window whose local end date is after its local start date is
// outside, even one like 23:50-00:10 that would fit inside two adjacent
// compliant days. That matches the long-standing behavior; see the policy
// notes in DESIGN.md before changing it.
func (p SafeHoursPolicy) Outside(effStart, effEnd time.Time) (bool, string) {
	day := dayNames[mondayIndex(effStart.Weekday())]
	safeStart := clockMinutesOrDefault(p.Start[day], 5*60)
	cutoff := clockMinutesOrDefault(p.End[day], 23*60)

	startMin := effStart.Hour()*60 + effStart.Minute()
	if startMin < safeStart {
		return true, fmt.Sprintf("Doors would open at %s (before %s safe-hours start on %s)",
			fmtClock(startMin), fmtClock(safeStart), day)
	}

	sy, sm, sd := effStart.Date()
	ey, em, ed := effEnd.Date()
	if ey > sy || (ey == sy && (em > sm || (em == sm && ed > sd))) {
		return true, "Event extends past midnight"
	}

	endMin := effEnd.Hour()*60 + effEnd.Minute()
	if endMin > cutoff {
		return true, fmt.Sprintf("Doors would remain open until %s (past %s cutoff on %s)",
			fmtClock(endMin), fmtClock(cutoff), day)
	}

	return false, ""
}

// mondayIndex converts time.Weekday (Sunday=0) to a Monday-first index.
func mondayIndex(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d) - 1
}

// clockMinutes parses "HH:MM" into minutes since midnight.
func clockMinutes(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &h, &m); err != nil {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return h*60 + m, nil
}

func clockMinutesOrDefault(s string, def int) int {
	n, err := clockMinutes(s)
	if err != nil {
		return def
	}
	return n
}

// fmtClock renders minutes since midnight as a 12-hour clock string for
// reason messages ("5:00 AM", "11:30 PM").
func fmtClock(minutes int) string {
	h, m := minutes/60, minutes%60
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	display := h
	switch {
	case h == 0:
		display = 12
	case h > 12:
		display = h - 12
	}
	return fmt.Sprintf("%d:%02d %s", display, m, period)
}
