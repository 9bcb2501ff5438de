package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/door-schedule-sync/backend/internal/schedule"
	"github.com/door-schedule-sync/backend/internal/storage"
)

// CancelledDocument is the document-store key for cancelled event
// instances.
const CancelledDocument = "cancelled-instances"

// cancelledRetentionHours keeps a cancelled instance on record for a day
// past its reference time before pruning.
const cancelledRetentionHours = 24

// CancelledInstance suppresses one specific event instance by id for a
// bounded grace period.
type CancelledInstance struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
	CancelledAt time.Time `json:"cancelledAt"`
}

type cancelledDocument struct {
	Instances []CancelledInstance `json:"instances"`
}

// Cancellations manages the cancelled-instance list.
type Cancellations struct {
	store storage.Store
	now   func() time.Time
}

// NewCancellations creates a cancellation filter over the document store.
func NewCancellations(store storage.Store) *Cancellations {
	return &Cancellations{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func parseCancelledDocument(body []byte) cancelledDocument {
	var doc cancelledDocument
	if len(body) == 0 || json.Unmarshal(body, &doc) != nil || doc.Instances == nil {
		return cancelledDocument{Instances: []CancelledInstance{}}
	}
	return doc
}

// List returns the active cancelled instances.
func (c *Cancellations) List(ctx context.Context) ([]CancelledInstance, error) {
	body, err := c.store.Get(ctx, CancelledDocument)
	if err != nil {
		return nil, err
	}
	return parseCancelledDocument(body).Instances, nil
}

// Cancel records a cancellation for one event instance. Idempotent: any
// prior entry with the same id is replaced. Stale entries are pruned on
// every write.
func (c *Cancellations) Cancel(ctx context.Context, id, name string, startAt, endAt time.Time) error {
	body, err := c.store.Get(ctx, CancelledDocument)
	if err != nil {
		return err
	}
	doc := parseCancelledDocument(body)

	kept := doc.Instances[:0]
	for _, inst := range doc.Instances {
		if inst.ID != id {
			kept = append(kept, inst)
		}
	}
	doc.Instances = append(kept, CancelledInstance{
		ID:          id,
		Name:        name,
		StartAt:     startAt,
		EndAt:       endAt,
		CancelledAt: c.now(),
	})
	doc.Instances = pruneCancelled(doc.Instances, c.now())

	return c.save(ctx, doc)
}

// Restore removes a cancellation, letting the instance schedule doors
// again on the next pass.
func (c *Cancellations) Restore(ctx context.Context, id string) error {
	body, err := c.store.Get(ctx, CancelledDocument)
	if err != nil {
		return err
	}
	doc := parseCancelledDocument(body)

	kept := doc.Instances[:0]
	for _, inst := range doc.Instances {
		if inst.ID != id {
			kept = append(kept, inst)
		}
	}
	doc.Instances = kept

	return c.save(ctx, doc)
}

// Filter drops events whose id is in the active cancelled set.
func (c *Cancellations) Filter(ctx context.Context, events []schedule.Event) ([]schedule.Event, error) {
	instances, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return events, nil
	}

	cancelled := make(map[string]bool, len(instances))
	for _, inst := range instances {
		cancelled[inst.ID] = true
	}

	out := make([]schedule.Event, 0, len(events))
	for _, e := range events {
		if !cancelled[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *Cancellations) save(ctx context.Context, doc cancelledDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding cancelled instances: %w", err)
	}
	return c.store.Put(ctx, CancelledDocument, body)
}

// pruneCancelled removes instances whose reference time (end, else start)
// is more than the retention period in the past. Instances without either
// time are kept.
func pruneCancelled(instances []CancelledInstance, now time.Time) []CancelledInstance {
	cutoff := now.Add(-cancelledRetentionHours * time.Hour)
	kept := instances[:0]
	for _, inst := range instances {
		ref := inst.EndAt
		if ref.IsZero() {
			ref = inst.StartAt
		}
		if ref.IsZero() || !ref.Before(cutoff) {
			kept = append(kept, inst)
		}
	}
	return kept
}
