package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/door-schedule-sync/backend/internal/config"
	"github.com/door-schedule-sync/backend/internal/gate"
	"github.com/door-schedule-sync/backend/internal/schedule"
	"github.com/door-schedule-sync/backend/internal/unifi"
)

type fakeStore struct {
	docs map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string][]byte{}}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	return s.docs[key], nil
}

func (s *fakeStore) Put(_ context.Context, key string, body []byte) error {
	s.docs[key] = append([]byte(nil), body...)
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	delete(s.docs, key)
	return nil
}

type fakeCalendar struct {
	events []schedule.Event
	err    error
}

func (f *fakeCalendar) Events(_ context.Context, _, _ time.Time, _ int) ([]schedule.Event, error) {
	return f.events, f.err
}

func (f *fakeCalendar) CheckConnectivity(context.Context) bool { return f.err == nil }

func (f *fakeCalendar) Stats() map[string]any { return map[string]any{} }

// fakeController is an in-memory access controller with write counters.
type fakeController struct {
	schedules map[string]*unifi.ScheduleDetail
	policies  map[string]unifi.Policy
	nextID    int

	updates int
	creates int
	deletes int
}

func newFakeController() *fakeController {
	return &fakeController{
		schedules: map[string]*unifi.ScheduleDetail{},
		policies:  map[string]unifi.Policy{},
	}
}

func (f *fakeController) addSchedule(id, name string) {
	f.schedules[id] = &unifi.ScheduleDetail{ID: id, Name: name, Weekly: map[string][]unifi.TimeRange{}}
}

func (f *fakeController) CheckConnectivity(context.Context) bool { return true }

func (f *fakeController) ListSchedules(context.Context) ([]unifi.Schedule, error) {
	var out []unifi.Schedule
	for _, s := range f.schedules {
		out = append(out, unifi.Schedule{ID: s.ID, Name: s.Name})
	}
	return out, nil
}

func (f *fakeController) GetSchedule(_ context.Context, id string) (*unifi.ScheduleDetail, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, fmt.Errorf("no schedule %s", id)
	}
	copied := *s
	return &copied, nil
}

func (f *fakeController) UpdateSchedule(_ context.Context, id string, payload unifi.SchedulePayload) error {
	s, ok := f.schedules[id]
	if !ok {
		return fmt.Errorf("no schedule %s", id)
	}
	s.Weekly = payload.WeekSchedule
	f.updates++
	return nil
}

func (f *fakeController) ListPolicies(context.Context) ([]unifi.Policy, error) {
	var out []unifi.Policy
	for _, p := range f.policies {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeController) CreatePolicy(_ context.Context, payload unifi.PolicyPayload) error {
	f.nextID++
	id := fmt.Sprintf("pol-%d", f.nextID)
	f.policies[id] = unifi.Policy{ID: id, Name: payload.Name, ScheduleID: payload.ScheduleID, Resources: payload.Resource}
	f.creates++
	return nil
}

func (f *fakeController) DeletePolicy(_ context.Context, id string) error {
	delete(f.policies, id)
	f.deletes++
	return nil
}

const serviceMappingBody = `{
	"doors": {"front": {"label": "Front Doors", "unifiDoorIds": ["d1"]}},
	"rooms": {"Main Hall": ["front"]},
	"defaults": {"unlockLeadMinutes": 15, "unlockLagMinutes": 15}
}`

func testService(store *fakeStore, cal *fakeCalendar, ctrl *fakeController) *Service {
	cfg := &config.Config{Sync: config.SyncConfig{LookaheadHours: 48, LookbehindHours: 2}}
	return NewService(cfg, store, cal, ctrl, nil, time.UTC)
}

// tomorrowAt returns tomorrow's UTC instant at the given clock time, so
// events sit in the future of the pass and clear of the pruning horizon.
func tomorrowAt(hour, min int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, time.UTC)
}

func TestRunOnceDryRunPass(t *testing.T) {
	store := newFakeStore()
	store.docs[schedule.MappingDocument] = []byte(serviceMappingBody)

	cal := &fakeCalendar{events: []schedule.Event{
		{ID: "e1", Name: "Morning Study", Room: "Main Hall",
			StartAt: tomorrowAt(14, 0), EndAt: tomorrowAt(15, 0)},
		// With the 15-minute lag this ends at 23:05, past the default
		// 23:00 cutoff, so it must be held for approval.
		{ID: "e2", Name: "Late Rehearsal", Room: "Main Hall",
			StartAt: tomorrowAt(21, 0), EndAt: tomorrowAt(22, 50)},
	}}
	ctrl := newFakeController()
	svc := testService(store, cal, ctrl)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	st := svc.Snapshot(context.Background())
	if st.LastResult == nil {
		t.Fatal("no result recorded after a successful pass")
	}
	res := st.LastResult
	if res.EventsFetched != 2 || res.EventsKept != 1 {
		t.Errorf("fetched=%d kept=%d, want 2 fetched and 1 kept", res.EventsFetched, res.EventsKept)
	}
	if res.NewlyFlagged != 1 || res.PendingCount != 1 {
		t.Errorf("flagged=%d pending=%d, want 1 and 1", res.NewlyFlagged, res.PendingCount)
	}
	if res.DoorWindows != 1 {
		t.Errorf("door windows = %d, want 1", res.DoorWindows)
	}
	if res.Applied {
		t.Error("dry-run pass reported applied=true")
	}
	if ctrl.updates != 0 || ctrl.creates != 0 {
		t.Errorf("dry run wrote to controller: updates=%d creates=%d", ctrl.updates, ctrl.creates)
	}

	if st.LastSuccessAt == nil || st.LastError != "" {
		t.Errorf("success not recorded: lastSuccessAt=%v lastError=%q", st.LastSuccessAt, st.LastError)
	}
	if st.PCOConnected == nil || !*st.PCOConnected {
		t.Error("calendar connectivity not reported")
	}
}

func TestRunOnceAppliesWhenEnabled(t *testing.T) {
	store := newFakeStore()
	store.docs[schedule.MappingDocument] = []byte(serviceMappingBody)

	cal := &fakeCalendar{events: []schedule.Event{
		{ID: "e1", Name: "Morning Study", Room: "Main Hall",
			StartAt: tomorrowAt(14, 0), EndAt: tomorrowAt(15, 0)},
	}}
	ctrl := newFakeController()
	ctrl.addSchedule("sch-1", "Door Sync front")
	svc := testService(store, cal, ctrl)
	svc.SetApplyToUnifi(true)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if ctrl.updates != 1 || ctrl.creates != 1 {
		t.Errorf("updates=%d creates=%d, want the pattern and policy written", ctrl.updates, ctrl.creates)
	}
	st := svc.Snapshot(context.Background())
	if st.LastResult == nil || !st.LastResult.Applied {
		t.Error("pass did not report applied=true")
	}
}

func TestRunOnceRecordsFailure(t *testing.T) {
	store := newFakeStore()
	store.docs[schedule.MappingDocument] = []byte(serviceMappingBody)

	cal := &fakeCalendar{err: errors.New("rate limited")}
	svc := testService(store, cal, newFakeController())

	for i := 0; i < 2; i++ {
		if err := svc.RunOnce(context.Background()); err == nil {
			t.Fatal("pass succeeded with a failing calendar source")
		}
	}

	st := svc.Snapshot(context.Background())
	if !strings.Contains(st.LastError, "rate limited") {
		t.Errorf("lastError = %q, want the fetch failure", st.LastError)
	}
	if len(st.RecentErrors) != 2 {
		t.Errorf("recentErrors = %d, want one entry per failed pass", len(st.RecentErrors))
	}
	if st.LastSuccessAt != nil || st.LastResult != nil {
		t.Error("failed passes recorded a success")
	}
}

func TestRunOnceRejectsInvalidMapping(t *testing.T) {
	store := newFakeStore()
	store.docs[schedule.MappingDocument] = []byte(`{"doors": {}, "rooms": {"Main Hall": ["ghost"]}}`)

	svc := testService(store, &fakeCalendar{}, newFakeController())

	err := svc.RunOnce(context.Background())
	if err == nil {
		t.Fatal("pass succeeded with a mapping referencing an unknown door key")
	}
	if !strings.Contains(err.Error(), "mapping") {
		t.Errorf("error = %q, want the mapping named", err)
	}
}

func TestPreviewWindowDoesNotFlagOrApply(t *testing.T) {
	store := newFakeStore()
	store.docs[schedule.MappingDocument] = []byte(serviceMappingBody)

	cal := &fakeCalendar{events: []schedule.Event{
		{ID: "e2", Name: "Late Rehearsal", Room: "Main Hall",
			StartAt: tomorrowAt(21, 0), EndAt: tomorrowAt(22, 50)},
	}}
	ctrl := newFakeController()
	svc := testService(store, cal, ctrl)
	svc.SetApplyToUnifi(true)

	preview, err := svc.PreviewWindow(context.Background(), time.Now().UTC(), time.Now().UTC().Add(48*time.Hour), 0)
	if err != nil {
		t.Fatal(err)
	}

	if preview.EventsFetched != 1 || preview.RoomHistogram["Main Hall"] != 1 {
		t.Errorf("fetched=%d histogram=%v", preview.EventsFetched, preview.RoomHistogram)
	}
	if ctrl.updates != 0 || ctrl.creates != 0 {
		t.Errorf("preview wrote to controller: updates=%d creates=%d", ctrl.updates, ctrl.creates)
	}

	// The safe-hours gate never ran, so nothing was held.
	g := gate.NewGate(store, time.UTC)
	pending, err := g.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("preview flagged %d events, want none", len(pending))
	}
}
