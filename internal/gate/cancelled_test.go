package gate

import (
	"context"
	"testing"
	"time"

	"github.com/door-schedule-sync/backend/internal/schedule"
)

func testCancellations(store *fakeStore, now time.Time) *Cancellations {
	c := NewCancellations(store)
	c.now = func() time.Time { return now }
	return c
}

func TestCancelAndFilter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := testCancellations(newFakeStore(), now)

	start := now.Add(2 * time.Hour)
	end := now.Add(3 * time.Hour)
	if err := c.Cancel(ctx, "e1", "Bible Study", start, end); err != nil {
		t.Fatal(err)
	}

	events := []schedule.Event{
		{ID: "e1", Name: "Bible Study", StartAt: start, EndAt: end},
		{ID: "e2", Name: "Choir", StartAt: start, EndAt: end},
	}
	kept, err := c.Filter(ctx, events)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 || kept[0].ID != "e2" {
		t.Errorf("kept = %v, want only e2", kept)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := testCancellations(newFakeStore(), now)

	start := now.Add(time.Hour)
	end := now.Add(2 * time.Hour)
	if err := c.Cancel(ctx, "e1", "Bible Study", start, end); err != nil {
		t.Fatal(err)
	}
	if err := c.Cancel(ctx, "e1", "Bible Study", start, end); err != nil {
		t.Fatal(err)
	}

	instances, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 {
		t.Errorf("instances = %d, want 1 after duplicate cancel", len(instances))
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := testCancellations(newFakeStore(), now)

	start := now.Add(time.Hour)
	if err := c.Cancel(ctx, "e1", "Bible Study", start, start.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := c.Restore(ctx, "e1"); err != nil {
		t.Fatal(err)
	}

	events := []schedule.Event{{ID: "e1", Name: "Bible Study", StartAt: start}}
	kept, err := c.Filter(ctx, events)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 {
		t.Error("restored event still filtered out")
	}

	// Restoring an id that is not cancelled is a no-op.
	if err := c.Restore(ctx, "ghost"); err != nil {
		t.Errorf("Restore(ghost) = %v, want nil", err)
	}
}

func TestCancelPrunesStaleEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	c := testCancellations(store, now)

	// Cancelled while still upcoming, then left on record.
	old := now.Add(-30 * time.Hour)
	c.now = func() time.Time { return old.Add(-2 * time.Hour) }
	if err := c.Cancel(ctx, "old", "Old Event", old.Add(-time.Hour), old); err != nil {
		t.Fatal(err)
	}

	// A write 30 hours after the old event ended prunes it.
	c.now = func() time.Time { return now }
	if err := c.Cancel(ctx, "new", "New Event", now, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	instances, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].ID != "new" {
		t.Errorf("instances = %+v, want only the fresh entry", instances)
	}
}
