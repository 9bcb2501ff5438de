package unifi

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/door-schedule-sync/backend/internal/schedule"
)

// weekdayKeys is the controller's weekly-pattern key set.
var weekdayKeys = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Reconciler diffs the desired per-door schedule against the controller's
// schedule and policy resources and issues only the writes needed to
// converge. A pass with unchanged desired state performs zero writes.
type Reconciler struct {
	api API
	loc *time.Location
}

// NewReconciler creates a reconciler over a controller API.
func NewReconciler(api API, loc *time.Location) *Reconciler {
	return &Reconciler{api: api, loc: loc}
}

// scheduleNameCandidates are the accepted names for a door group's
// pre-created schedule resource. Schedules are provisioned in the
// controller UI; a missing one is a configuration error, never silently
// created here.
func scheduleNameCandidates(doorKey string) []string {
	return []string{
		"Door Sync " + doorKey,
		"Door Sync | " + doorKey,
	}
}

func policyName(doorKey string) string {
	return "Door Sync Policy " + doorKey
}

// Apply reconciles the merged door windows into the controller.
func (r *Reconciler) Apply(ctx context.Context, desired schedule.Desired) error {
	byDoor := desired.WindowsByDoor()
	if len(byDoor) == 0 {
		return nil
	}

	doorIDs := make(map[string][]string, len(byDoor))
	for doorKey, windows := range byDoor {
		seen := make(map[string]bool)
		for _, w := range windows {
			for _, id := range w.UnifiDoorIDs {
				if id != "" && !seen[id] {
					seen[id] = true
					doorIDs[doorKey] = append(doorIDs[doorKey], id)
				}
			}
		}
		sort.Strings(doorIDs[doorKey])
	}

	schedules, err := r.api.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}
	schedulesByName := make(map[string]Schedule, len(schedules))
	for _, s := range schedules {
		schedulesByName[s.Name] = s
	}

	policies, err := r.api.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("listing policies: %w", err)
	}
	policiesByName := make(map[string]Policy, len(policies))
	for _, p := range policies {
		policiesByName[p.Name] = p
	}

	doorKeys := make([]string, 0, len(byDoor))
	for dk := range byDoor {
		doorKeys = append(doorKeys, dk)
	}
	sort.Strings(doorKeys)

	for _, doorKey := range doorKeys {
		if err := r.applyDoor(ctx, doorKey, byDoor[doorKey], doorIDs[doorKey], schedulesByName, policiesByName); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) applyDoor(ctx context.Context, doorKey string, windows []schedule.DoorWindow, doorIDs []string, schedulesByName map[string]Schedule, policiesByName map[string]Policy) error {
	candidates := scheduleNameCandidates(doorKey)
	var row *Schedule
	for _, name := range candidates {
		if s, ok := schedulesByName[name]; ok && s.ID != "" {
			row = &s
			break
		}
	}
	if row == nil {
		return fmt.Errorf("missing controller schedule for door group %q; expected one of: %v", doorKey, candidates)
	}

	if len(doorIDs) == 0 {
		return nil
	}

	desiredWeekly := r.buildWeekSchedule(windows)

	detail, err := r.api.GetSchedule(ctx, row.ID)
	if err != nil {
		return fmt.Errorf("getting schedule %s: %w", row.ID, err)
	}

	if !weeklyEqual(normalizeWeekly(detail.Weekly), normalizeWeekly(desiredWeekly)) {
		name := detail.Name
		if name == "" {
			name = row.Name
		}
		holidayGroup := detail.HolidayGroupID
		if holidayGroup == "" {
			holidayGroup = row.HolidayGroupID
		}
		payload := SchedulePayload{
			Name:            name,
			WeekSchedule:    desiredWeekly,
			HolidayGroupID:  holidayGroup,
			HolidaySchedule: detail.HolidaySchedule,
		}
		if err := r.api.UpdateSchedule(ctx, row.ID, payload); err != nil {
			return fmt.Errorf("updating schedule %s: %w", row.ID, err)
		}
		log.Printf("Updated weekly pattern for door group %s", doorKey)
	}

	desiredResources := make([]Resource, 0, len(doorIDs))
	for _, id := range doorIDs {
		desiredResources = append(desiredResources, Resource{ID: id, Type: "door"})
	}

	name := policyName(doorKey)
	if existing, ok := policiesByName[name]; ok {
		if existing.ScheduleID == row.ID && resourceSetEqual(existing.Resources, desiredResources) {
			return nil
		}
		// No update-in-place for policy bindings; replace the stale one.
		if existing.ID != "" {
			if err := r.api.DeletePolicy(ctx, existing.ID); err != nil {
				return fmt.Errorf("deleting stale policy %s: %w", existing.ID, err)
			}
		}
	}

	payload := PolicyPayload{Name: name, Resource: desiredResources, ScheduleID: row.ID}
	if err := r.api.CreatePolicy(ctx, payload); err != nil {
		return fmt.Errorf("creating policy for door group %q: %w", doorKey, err)
	}
	log.Printf("Replaced policy binding for door group %s (%d doors)", doorKey, len(doorIDs))
	return nil
}

// buildWeekSchedule projects UTC windows into local time, buckets by the
// local start weekday, and merges overlapping ranges per day.
func (r *Reconciler) buildWeekSchedule(windows []schedule.DoorWindow) map[string][]TimeRange {
	ranges := make(map[string][][2]string, len(weekdayKeys))
	for _, day := range weekdayKeys {
		ranges[day] = nil
	}

	for _, w := range windows {
		if w.OpenStart.IsZero() || w.OpenEnd.IsZero() {
			continue
		}
		start := w.OpenStart.In(r.loc)
		end := w.OpenEnd.In(r.loc)
		day := weekdayKeys[int(start.Weekday())]
		ranges[day] = append(ranges[day], [2]string{start.Format("15:04:05"), end.Format("15:04:05")})
	}

	out := make(map[string][]TimeRange, len(weekdayKeys))
	for _, day := range weekdayKeys {
		dayRanges := ranges[day]
		out[day] = []TimeRange{}
		if len(dayRanges) == 0 {
			continue
		}
		sort.Slice(dayRanges, func(i, j int) bool { return dayRanges[i][0] < dayRanges[j][0] })

		var merged [][2]string
		for _, rng := range dayRanges {
			if len(merged) == 0 {
				merged = append(merged, rng)
				continue
			}
			last := &merged[len(merged)-1]
			// HH:MM:SS strings compare correctly as text.
			if rng[0] <= last[1] {
				if rng[1] > last[1] {
					last[1] = rng[1]
				}
			} else {
				merged = append(merged, rng)
			}
		}
		for _, rng := range merged {
			out[day] = append(out[day], TimeRange{StartTime: rng[0], EndTime: rng[1]})
		}
	}
	return out
}

// normalizeWeekly reduces a weekly pattern to sorted, deduplicated
// (start, end) tuples per day for comparison.
func normalizeWeekly(weekly map[string][]TimeRange) map[string][][2]string {
	out := make(map[string][][2]string, len(weekdayKeys))
	for _, day := range weekdayKeys {
		var normalized [][2]string
		seen := make(map[[2]string]bool)
		for _, rng := range weekly[day] {
			if rng.StartTime == "" || rng.EndTime == "" {
				continue
			}
			tuple := [2]string{rng.StartTime, rng.EndTime}
			if seen[tuple] {
				continue
			}
			seen[tuple] = true
			normalized = append(normalized, tuple)
		}
		sort.Slice(normalized, func(i, j int) bool {
			if normalized[i][0] != normalized[j][0] {
				return normalized[i][0] < normalized[j][0]
			}
			return normalized[i][1] < normalized[j][1]
		})
		out[day] = normalized
	}
	return out
}

func weeklyEqual(a, b map[string][][2]string) bool {
	for _, day := range weekdayKeys {
		if len(a[day]) != len(b[day]) {
			return false
		}
		for i := range a[day] {
			if a[day][i] != b[day][i] {
				return false
			}
		}
	}
	return true
}

// resourceSetEqual compares resource bindings as unordered (id, type)
// sets.
func resourceSetEqual(a, b []Resource) bool {
	setA := make(map[Resource]bool, len(a))
	for _, r := range a {
		if r.ID != "" && r.Type != "" {
			setA[r] = true
		}
	}
	setB := make(map[Resource]bool, len(b))
	for _, r := range b {
		if r.ID != "" && r.Type != "" {
			setB[r] = true
		}
	}
	if len(setA) != len(setB) {
		return false
	}
	for r := range setA {
		if !setB[r] {
			return false
		}
	}
	return true
}
