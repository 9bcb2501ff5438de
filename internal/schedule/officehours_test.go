package schedule

import (
	"reflect"
	"testing"
	"time"
)

func TestParseTimeRanges(t *testing.T) {
	tests := []struct {
		name string
		text string
		want [][2]string
	}{
		{"single range", "9:00-17:00", [][2]string{{"09:00", "17:00"}}},
		{"multiple comma-separated", "8:00-12:00, 13:00-17:00", [][2]string{{"08:00", "12:00"}, {"13:00", "17:00"}}},
		{"semicolon separator", "8:00-12:00; 13:00-17:00", [][2]string{{"08:00", "12:00"}, {"13:00", "17:00"}}},
		{"bare hours", "8-12", [][2]string{{"08:00", "12:00"}}},
		{"en-dash", "9:00–17:00", [][2]string{{"09:00", "17:00"}}},
		{"malformed entry skipped", "9:00-17:00, nonsense", [][2]string{{"09:00", "17:00"}}},
		{"out-of-range hour skipped", "25:00-26:00", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTimeRanges(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTimeRanges(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestOfficeHoursValidate(t *testing.T) {
	oh := DefaultOfficeHours()
	if err := oh.Validate(); err != nil {
		t.Fatalf("default template rejected: %v", err)
	}

	delete(oh.Schedule, "wednesday")
	if err := oh.Validate(); err == nil {
		t.Error("template missing a day was accepted")
	}
}

func TestExpandWindows(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	doors := map[string]Door{
		"office": {Label: "Office Door", UnifiDoorIDs: []string{"d3"}},
	}

	oh := DefaultOfficeHours()
	oh.Enabled = true
	oh.Schedule["tuesday"] = OfficeHoursDay{Ranges: "9:00-12:00", Doors: []string{"office"}}

	// Several local days in range; only Tuesday is templated.
	from := time.Date(2026, 3, 9, 5, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 12, 5, 0, 0, 0, time.UTC)

	windows := oh.ExpandWindows(from, to, loc, doors)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}

	w := windows[0]
	wantStart := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC) // 09:00 EDT
	if !w.OpenStart.Equal(wantStart) {
		t.Errorf("window opens %v, want %v", w.OpenStart, wantStart)
	}
	if w.SourceEventIDs[0] != OfficeHoursSource {
		t.Errorf("window provenance = %v, want %q", w.SourceEventIDs, OfficeHoursSource)
	}

	t.Run("disabled template yields nothing", func(t *testing.T) {
		oh.Enabled = false
		if got := oh.ExpandWindows(from, to, loc, doors); got != nil {
			t.Errorf("disabled template produced %d windows", len(got))
		}
		oh.Enabled = true
	})

	t.Run("unknown door keys are skipped", func(t *testing.T) {
		oh.Schedule["tuesday"] = OfficeHoursDay{Ranges: "9:00-12:00", Doors: []string{"nave"}}
		if got := oh.ExpandWindows(from, to, loc, doors); got != nil {
			t.Errorf("unknown door produced %d windows", len(got))
		}
	})
}
