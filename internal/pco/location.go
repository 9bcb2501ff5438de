package pco

import (
	"strings"
)

// parseLocation splits a raw location string of the form
// "Campus - street address" or "Campus - street address - Room" into its
// parts. Entries with fewer than two parts yield nothing; with three or
// more, the last part is treated as a potential room name.
func parseLocation(raw string) (building, address, room string) {
	if !strings.Contains(raw, " - ") {
		return "", "", ""
	}
	var parts []string
	for _, p := range strings.Split(raw, " - ") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", ""
	}
	building = parts[0]
	if len(parts) >= 3 {
		room = parts[len(parts)-1]
		address = strings.Join(parts[1:len(parts)-1], " - ")
	} else {
		address = parts[1]
	}
	return building, address, room
}

func containsFold(hay, needle string) bool {
	return strings.Contains(strings.ToLower(hay), strings.ToLower(strings.TrimSpace(needle)))
}
