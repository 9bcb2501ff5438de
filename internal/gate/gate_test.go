package gate

import (
	"context"
	"testing"
	"time"

	"github.com/door-schedule-sync/backend/internal/schedule"
)

// fakeStore is an in-memory whole-document store for tests.
type fakeStore struct {
	docs map[string][]byte
	puts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string][]byte)}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	return f.docs[key], nil
}

func (f *fakeStore) Put(_ context.Context, key string, body []byte) error {
	f.docs[key] = append([]byte(nil), body...)
	f.puts++
	return nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.docs, key)
	return nil
}

func testGate(store *fakeStore, now time.Time) *Gate {
	g := NewGate(store, time.UTC)
	g.now = func() time.Time { return now }
	return g
}

// lateEvent is outside default safe hours (ends after the 23:00 cutoff
// once the lag is applied).
func lateEvent(id, name string) schedule.Event {
	return schedule.Event{
		ID:      id,
		Name:    name,
		StartAt: time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 10, 22, 50, 0, 0, time.UTC),
	}
}

func dayEvent(id, name string) schedule.Event {
	return schedule.Event{
		ID:      id,
		Name:    name,
		StartAt: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
}

func TestFilterHoldsAndFlagsUnsafeEvents(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g := testGate(store, now)

	events := []schedule.Event{dayEvent("e1", "Bible Study"), lateEvent("e2", "Late Concert")}

	allowed, flagged, err := g.Filter(ctx, events, 15, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(allowed) != 1 || allowed[0].ID != "e1" {
		t.Errorf("allowed = %v, want only e1", allowed)
	}
	if len(flagged) != 1 || flagged[0].ID != "e2" || flagged[0].Status != StatusPending {
		t.Fatalf("flagged = %+v, want pending e2", flagged)
	}
	if flagged[0].Reason == "" {
		t.Error("flagged entry has no reason")
	}

	// A second pass with the same events re-flags nothing.
	_, flagged, err = g.Filter(ctx, events, 15, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(flagged) != 0 {
		t.Errorf("second pass flagged %d events, want 0", len(flagged))
	}
}

func TestFilterEventWithoutTimesPasses(t *testing.T) {
	ctx := context.Background()
	g := testGate(newFakeStore(), time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	allowed, flagged, err := g.Filter(ctx, []schedule.Event{{ID: "e1", Name: "No Times"}}, 15, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(allowed) != 1 || len(flagged) != 0 {
		t.Errorf("allowed=%d flagged=%d, want 1/0", len(allowed), len(flagged))
	}
}

func TestApproveReleasesEventAndName(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g := testGate(store, now)

	events := []schedule.Event{lateEvent("e2", "Late Concert")}
	if _, _, err := g.Filter(ctx, events, 15, 15); err != nil {
		t.Fatal(err)
	}

	name, ok, err := g.Approve(ctx, "e2")
	if err != nil || !ok || name != "Late Concert" {
		t.Fatalf("Approve = (%q, %v, %v), want (Late Concert, true, nil)", name, ok, err)
	}

	allowed, flagged, err := g.Filter(ctx, events, 15, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(allowed) != 1 || len(flagged) != 0 {
		t.Fatalf("after approval allowed=%d flagged=%d, want 1/0", len(allowed), len(flagged))
	}

	// A different instance of the same name now passes by name, without
	// touching the queue.
	nextWeek := lateEvent("e9", "late concert")
	nextWeek.StartAt = nextWeek.StartAt.AddDate(0, 0, 7)
	nextWeek.EndAt = nextWeek.EndAt.AddDate(0, 0, 7)
	allowed, flagged, err = g.Filter(ctx, []schedule.Event{nextWeek}, 15, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(allowed) != 1 || len(flagged) != 0 {
		t.Errorf("same-name event allowed=%d flagged=%d, want 1/0", len(allowed), len(flagged))
	}

	names, err := g.ApprovedNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0].Name != "Late Concert" {
		t.Errorf("approved names = %+v, want original casing retained", names)
	}
}

func TestDenyKeepsEventHeld(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g := testGate(store, now)

	events := []schedule.Event{lateEvent("e2", "Late Concert")}
	if _, _, err := g.Filter(ctx, events, 15, 15); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := g.Deny(ctx, "e2"); err != nil || !ok {
		t.Fatalf("Deny failed: ok=%v err=%v", ok, err)
	}

	allowed, flagged, err := g.Filter(ctx, events, 15, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(allowed) != 0 || len(flagged) != 0 {
		t.Errorf("denied event allowed=%d flagged=%d, want 0/0", len(allowed), len(flagged))
	}

	names, _ := g.ApprovedNames(ctx)
	if len(names) != 0 {
		t.Errorf("deny added to approved names: %+v", names)
	}
}

func TestApproveUnknownID(t *testing.T) {
	ctx := context.Background()
	g := testGate(newFakeStore(), time.Now().UTC())

	if _, ok, err := g.Approve(ctx, "ghost"); err != nil || ok {
		t.Errorf("Approve(ghost) = ok=%v err=%v, want false/nil", ok, err)
	}
	if _, ok, err := g.Deny(ctx, "ghost"); err != nil || ok {
		t.Errorf("Deny(ghost) = ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestFilterPrunesOldEntries(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g := testGate(store, now)

	if _, _, err := g.Filter(ctx, []schedule.Event{lateEvent("e2", "Late Concert")}, 15, 15); err != nil {
		t.Fatal(err)
	}

	// Three days later the event is long over; the entry ages out even
	// though it was never decided.
	g.now = func() time.Time { return now.AddDate(0, 0, 3) }
	if _, _, err := g.Filter(ctx, nil, 15, 15); err != nil {
		t.Fatal(err)
	}

	pending, err := g.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %+v, want pruned empty queue", pending)
	}
}

func TestFilterDoesNotWriteWhenNothingChanged(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	g := testGate(store, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	if _, _, err := g.Filter(ctx, []schedule.Event{dayEvent("e1", "Bible Study")}, 15, 15); err != nil {
		t.Fatal(err)
	}
	if store.puts != 0 {
		t.Errorf("pass with nothing flagged wrote %d documents, want 0", store.puts)
	}
}
