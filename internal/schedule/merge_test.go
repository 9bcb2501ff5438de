package schedule

import (
	"reflect"
	"testing"
	"time"
)

func mkWindow(doorKey string, start, end time.Time, eventID, eventName, room string) DoorWindow {
	return DoorWindow{
		DoorKey:          doorKey,
		OpenStart:        start,
		OpenEnd:          end,
		SourceEventIDs:   []string{eventID},
		SourceEventNames: []string{eventName},
		SourceRooms:      []string{room},
	}
}

func TestMergeWindows(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	at := func(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

	tests := []struct {
		name       string
		windows    []DoorWindow
		wantSpans  [][2]time.Time
		wantEvents [][]string
	}{
		{
			name:    "empty input",
			windows: nil,
		},
		{
			name: "disjoint windows stay separate",
			windows: []DoorWindow{
				mkWindow("front", at(0), at(60), "e1", "Choir", "Hall"),
				mkWindow("front", at(120), at(180), "e2", "Band", "Hall"),
			},
			wantSpans:  [][2]time.Time{{at(0), at(60)}, {at(120), at(180)}},
			wantEvents: [][]string{{"e1"}, {"e2"}},
		},
		{
			name: "overlapping windows merge with unioned provenance",
			windows: []DoorWindow{
				mkWindow("front", at(0), at(90), "e1", "Choir", "Hall"),
				mkWindow("front", at(60), at(150), "e2", "Band", "Stage"),
			},
			wantSpans:  [][2]time.Time{{at(0), at(150)}},
			wantEvents: [][]string{{"e1", "e2"}},
		},
		{
			name: "touching windows become one continuous period",
			windows: []DoorWindow{
				mkWindow("front", at(0), at(60), "e1", "Choir", "Hall"),
				mkWindow("front", at(60), at(120), "e2", "Band", "Hall"),
			},
			wantSpans:  [][2]time.Time{{at(0), at(120)}},
			wantEvents: [][]string{{"e1", "e2"}},
		},
		{
			name: "contained window does not extend the end",
			windows: []DoorWindow{
				mkWindow("front", at(0), at(180), "e1", "All Day", "Hall"),
				mkWindow("front", at(30), at(60), "e2", "Short", "Hall"),
			},
			wantSpans:  [][2]time.Time{{at(0), at(180)}},
			wantEvents: [][]string{{"e1", "e2"}},
		},
		{
			name: "unsorted input is sorted before merging",
			windows: []DoorWindow{
				mkWindow("front", at(120), at(180), "e2", "Band", "Hall"),
				mkWindow("front", at(0), at(130), "e1", "Choir", "Hall"),
			},
			wantSpans:  [][2]time.Time{{at(0), at(180)}},
			wantEvents: [][]string{{"e1", "e2"}},
		},
		{
			name: "zero-time windows are dropped",
			windows: []DoorWindow{
				{DoorKey: "front"},
				mkWindow("front", at(0), at(60), "e1", "Choir", "Hall"),
			},
			wantSpans:  [][2]time.Time{{at(0), at(60)}},
			wantEvents: [][]string{{"e1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeWindows(tt.windows)
			if len(got) != len(tt.wantSpans) {
				t.Fatalf("got %d windows, want %d", len(got), len(tt.wantSpans))
			}
			for i, w := range got {
				if !w.OpenStart.Equal(tt.wantSpans[i][0]) || !w.OpenEnd.Equal(tt.wantSpans[i][1]) {
					t.Errorf("window %d = [%v, %v], want [%v, %v]",
						i, w.OpenStart, w.OpenEnd, tt.wantSpans[i][0], tt.wantSpans[i][1])
				}
				if !reflect.DeepEqual(w.SourceEventIDs, tt.wantEvents[i]) {
					t.Errorf("window %d event IDs = %v, want %v", i, w.SourceEventIDs, tt.wantEvents[i])
				}
			}
		})
	}
}

func TestMergeWindowsIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	windows := []DoorWindow{
		mkWindow("front", base, base.Add(time.Hour), "e1", "Choir", "Hall"),
		mkWindow("front", base.Add(30*time.Minute), base.Add(2*time.Hour), "e2", "Band", "Hall"),
		mkWindow("front", base.Add(3*time.Hour), base.Add(4*time.Hour), "e3", "Youth", "Hall"),
	}

	once := MergeWindows(windows)
	twice := MergeWindows(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merging a merged list changed it:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMergeWindowsDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	windows := []DoorWindow{
		mkWindow("front", base.Add(time.Hour), base.Add(2*time.Hour), "e2", "Band", "Hall"),
		mkWindow("front", base, base.Add(90*time.Minute), "e1", "Choir", "Hall"),
	}
	MergeWindows(windows)

	if windows[0].SourceEventIDs[0] != "e2" || windows[1].SourceEventIDs[0] != "e1" {
		t.Error("input slice was reordered or mutated")
	}
}
