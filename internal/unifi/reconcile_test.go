package unifi

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/door-schedule-sync/backend/internal/schedule"
)

// fakeAPI is an in-memory controller with write counters.
type fakeAPI struct {
	schedules map[string]*ScheduleDetail // by id
	policies  map[string]Policy          // by id
	nextID    int

	updates int
	creates int
	deletes int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		schedules: make(map[string]*ScheduleDetail),
		policies:  make(map[string]Policy),
	}
}

func (f *fakeAPI) addSchedule(id, name string) {
	f.schedules[id] = &ScheduleDetail{ID: id, Name: name, Weekly: map[string][]TimeRange{}}
}

func (f *fakeAPI) ListSchedules(_ context.Context) ([]Schedule, error) {
	var out []Schedule
	for _, s := range f.schedules {
		out = append(out, Schedule{ID: s.ID, Name: s.Name, HolidayGroupID: s.HolidayGroupID})
	}
	return out, nil
}

func (f *fakeAPI) GetSchedule(_ context.Context, id string) (*ScheduleDetail, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, fmt.Errorf("no schedule %s", id)
	}
	copied := *s
	return &copied, nil
}

func (f *fakeAPI) UpdateSchedule(_ context.Context, id string, payload SchedulePayload) error {
	s, ok := f.schedules[id]
	if !ok {
		return fmt.Errorf("no schedule %s", id)
	}
	s.Name = payload.Name
	s.Weekly = payload.WeekSchedule
	s.HolidayGroupID = payload.HolidayGroupID
	f.updates++
	return nil
}

func (f *fakeAPI) ListPolicies(_ context.Context) ([]Policy, error) {
	var out []Policy
	for _, p := range f.policies {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeAPI) CreatePolicy(_ context.Context, payload PolicyPayload) error {
	f.nextID++
	id := fmt.Sprintf("pol-%d", f.nextID)
	f.policies[id] = Policy{
		ID:         id,
		Name:       payload.Name,
		ScheduleID: payload.ScheduleID,
		Resources:  payload.Resource,
	}
	f.creates++
	return nil
}

func (f *fakeAPI) DeletePolicy(_ context.Context, id string) error {
	if _, ok := f.policies[id]; !ok {
		return fmt.Errorf("no policy %s", id)
	}
	delete(f.policies, id)
	f.deletes++
	return nil
}

func testDesired() schedule.Desired {
	// Tuesday 09:45-17:15 UTC for the front door group.
	return schedule.Desired{
		DoorWindows: []schedule.DoorWindow{
			{
				DoorKey:      "front",
				UnifiDoorIDs: []string{"d1", "d2"},
				OpenStart:    time.Date(2026, 3, 10, 9, 45, 0, 0, time.UTC),
				OpenEnd:      time.Date(2026, 3, 10, 17, 15, 0, 0, time.UTC),
			},
		},
	}
}

func TestApplyCreatesPatternAndPolicy(t *testing.T) {
	api := newFakeAPI()
	api.addSchedule("sch-1", "Door Sync front")
	r := NewReconciler(api, time.UTC)

	if err := r.Apply(context.Background(), testDesired()); err != nil {
		t.Fatal(err)
	}

	if api.updates != 1 {
		t.Errorf("schedule updates = %d, want 1", api.updates)
	}
	tue := api.schedules["sch-1"].Weekly["tuesday"]
	if len(tue) != 1 || tue[0].StartTime != "09:45:00" || tue[0].EndTime != "17:15:00" {
		t.Errorf("tuesday pattern = %+v, want 09:45:00-17:15:00", tue)
	}

	if api.creates != 1 {
		t.Fatalf("policy creates = %d, want 1", api.creates)
	}
	var pol Policy
	for _, p := range api.policies {
		pol = p
	}
	if pol.Name != "Door Sync Policy front" || pol.ScheduleID != "sch-1" {
		t.Errorf("policy = %+v", pol)
	}
	if len(pol.Resources) != 2 {
		t.Errorf("policy resources = %+v, want both door ids", pol.Resources)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	api.addSchedule("sch-1", "Door Sync front")
	r := NewReconciler(api, time.UTC)

	if err := r.Apply(context.Background(), testDesired()); err != nil {
		t.Fatal(err)
	}
	api.updates, api.creates, api.deletes = 0, 0, 0

	if err := r.Apply(context.Background(), testDesired()); err != nil {
		t.Fatal(err)
	}
	if api.updates != 0 || api.creates != 0 || api.deletes != 0 {
		t.Errorf("second apply wrote: updates=%d creates=%d deletes=%d, want zero writes",
			api.updates, api.creates, api.deletes)
	}
}

func TestApplyReplacesStalePolicy(t *testing.T) {
	api := newFakeAPI()
	api.addSchedule("sch-1", "Door Sync front")
	r := NewReconciler(api, time.UTC)

	if err := r.Apply(context.Background(), testDesired()); err != nil {
		t.Fatal(err)
	}

	changed := testDesired()
	changed.DoorWindows[0].UnifiDoorIDs = []string{"d1"}
	if err := r.Apply(context.Background(), changed); err != nil {
		t.Fatal(err)
	}

	if api.deletes != 1 || api.creates != 2 {
		t.Errorf("deletes=%d creates=%d, want stale policy replaced", api.deletes, api.creates)
	}
	if len(api.policies) != 1 {
		t.Fatalf("policies = %d, want 1", len(api.policies))
	}
	for _, p := range api.policies {
		if len(p.Resources) != 1 || p.Resources[0].ID != "d1" {
			t.Errorf("policy resources = %+v, want only d1", p.Resources)
		}
	}
}

func TestApplyMissingScheduleIsAnError(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, time.UTC)

	err := r.Apply(context.Background(), testDesired())
	if err == nil {
		t.Fatal("apply succeeded with no pre-created schedule")
	}
	if !strings.Contains(err.Error(), "front") {
		t.Errorf("error %q does not name the door group", err)
	}
}

func TestApplyAcceptsPipedScheduleName(t *testing.T) {
	api := newFakeAPI()
	api.addSchedule("sch-1", "Door Sync | front")
	r := NewReconciler(api, time.UTC)

	if err := r.Apply(context.Background(), testDesired()); err != nil {
		t.Errorf("piped schedule name rejected: %v", err)
	}
}

func TestApplySkipsDoorWithNoIDs(t *testing.T) {
	api := newFakeAPI()
	api.addSchedule("sch-1", "Door Sync front")
	r := NewReconciler(api, time.UTC)

	desired := testDesired()
	desired.DoorWindows[0].UnifiDoorIDs = nil
	if err := r.Apply(context.Background(), desired); err != nil {
		t.Fatal(err)
	}
	if api.updates != 0 || api.creates != 0 {
		t.Errorf("door with no ids still wrote: updates=%d creates=%d", api.updates, api.creates)
	}
}

func TestBuildWeekScheduleMergesSameDayRanges(t *testing.T) {
	r := NewReconciler(newFakeAPI(), time.UTC)

	windows := []schedule.DoorWindow{
		{OpenStart: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), OpenEnd: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		{OpenStart: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC), OpenEnd: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)},
		{OpenStart: time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), OpenEnd: time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)},
	}

	weekly := r.buildWeekSchedule(windows)
	tue := weekly["tuesday"]
	if len(tue) != 2 {
		t.Fatalf("tuesday ranges = %+v, want 2 after merging", tue)
	}
	if tue[0].StartTime != "09:00:00" || tue[0].EndTime != "14:00:00" {
		t.Errorf("merged range = %+v, want 09:00:00-14:00:00", tue[0])
	}
}
