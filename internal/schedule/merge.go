package schedule

import (
	"sort"
)

// MergeWindows collapses a single door's window list into the minimal set
// of non-overlapping, non-touching windows covering the same instants.
// Provenance from merged windows is unioned, order-preserving.
//
// The sort is stable, so windows with equal start times merge in input
// order. Callers must re-run the full merge whenever new windows are added
// to an already-merged list (office hours joining event windows); an
// incremental patch can miss merges.
func MergeWindows(windows []DoorWindow) []DoorWindow {
	if len(windows) == 0 {
		return nil
	}

	sorted := make([]DoorWindow, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenStart.Before(sorted[j].OpenStart)
	})

	merged := make([]DoorWindow, 0, len(sorted))
	for _, w := range sorted {
		if w.OpenStart.IsZero() || w.OpenEnd.IsZero() {
			continue
		}

		if len(merged) == 0 {
			merged = append(merged, cloneWindow(w))
			continue
		}

		last := &merged[len(merged)-1]
		// Overlapping or touching windows become one continuous open period.
		if !w.OpenStart.After(last.OpenEnd) {
			if w.OpenEnd.After(last.OpenEnd) {
				last.OpenEnd = w.OpenEnd
			}
			last.SourceEventIDs = appendUnique(last.SourceEventIDs, w.SourceEventIDs...)
			last.SourceEventNames = appendUnique(last.SourceEventNames, w.SourceEventNames...)
			last.SourceRooms = appendUnique(last.SourceRooms, w.SourceRooms...)
			continue
		}

		merged = append(merged, cloneWindow(w))
	}

	return merged
}

func cloneWindow(w DoorWindow) DoorWindow {
	out := w
	out.UnifiDoorIDs = append([]string(nil), w.UnifiDoorIDs...)
	out.SourceEventIDs = appendUnique(nil, w.SourceEventIDs...)
	out.SourceEventNames = appendUnique(nil, w.SourceEventNames...)
	out.SourceRooms = appendUnique(nil, w.SourceRooms...)
	return out
}
