package gate

import (
	"context"
	"strings"
	"time"

	"github.com/door-schedule-sync/backend/internal/schedule"
	"github.com/door-schedule-sync/backend/internal/storage"
)

// Gate classifies each event's effective door-open window against the
// safe-hours policy and manages the approval queue.
type Gate struct {
	store storage.Store
	loc   *time.Location
	now   func() time.Time
}

// NewGate creates a safe-hours gate over the given document store. Policy
// weekday lookups use the given local timezone.
func NewGate(store storage.Store, loc *time.Location) *Gate {
	return &Gate{store: store, loc: loc, now: func() time.Time { return time.Now().UTC() }}
}

// SafeHours returns the current policy, defaults applied.
func (g *Gate) SafeHours(ctx context.Context) (SafeHoursPolicy, error) {
	body, err := g.store.Get(ctx, SafeHoursDocument)
	if err != nil {
		return DefaultSafeHours(), err
	}
	return ParseSafeHours(body), nil
}

// Filter runs the gate over one pass's events. Events inside safe hours,
// auto-approved by name, or individually approved pass through; the rest
// are held. First-time offenders are recorded as pending and returned as
// newly flagged so the notifier can announce them. The pending queue is
// pruned and persisted only when something changed.
func (g *Gate) Filter(ctx context.Context, events []schedule.Event, leadMinutes, lagMinutes int) (allowed []schedule.Event, newlyFlagged []PendingApproval, err error) {
	policy, err := g.SafeHours(ctx)
	if err != nil {
		return nil, nil, err
	}

	namesBody, err := g.store.Get(ctx, ApprovedNamesDocument)
	if err != nil {
		return nil, nil, err
	}
	approved := make(map[string]bool)
	for _, n := range parseApprovedNamesDocument(namesBody).Names {
		approved[strings.ToLower(n.Name)] = true
	}

	pendingBody, err := g.store.Get(ctx, PendingApprovalsDocument)
	if err != nil {
		return nil, nil, err
	}
	doc := parsePendingDocument(pendingBody)
	byID := make(map[string]PendingApproval, len(doc.Pending))
	order := make([]string, 0, len(doc.Pending))
	for _, p := range doc.Pending {
		if _, dup := byID[p.ID]; dup {
			continue
		}
		byID[p.ID] = p
		order = append(order, p.ID)
	}

	changed := false
	clearPending := func(eventID string) {
		if _, ok := byID[eventID]; ok {
			delete(byID, eventID)
			changed = true
		}
	}

	now := g.now()
	for _, e := range events {
		if e.StartAt.IsZero() || e.EndAt.IsZero() {
			allowed = append(allowed, e)
			continue
		}

		effStart := e.StartAt.Add(-time.Duration(leadMinutes) * time.Minute).In(g.loc)
		effEnd := e.EndAt.Add(time.Duration(lagMinutes) * time.Minute).In(g.loc)
		outside, reason := policy.Outside(effStart, effEnd)

		if !outside {
			// The policy may have changed since this event was flagged.
			clearPending(e.ID)
			allowed = append(allowed, e)
			continue
		}

		if approved[strings.ToLower(e.Name)] {
			clearPending(e.ID)
			allowed = append(allowed, e)
			continue
		}

		if existing, ok := byID[e.ID]; ok {
			if existing.Status == StatusApproved {
				allowed = append(allowed, e)
			}
			// Pending or denied entries hold the event.
			continue
		}

		entry := PendingApproval{
			ID:        e.ID,
			Name:      e.Name,
			StartAt:   e.StartAt,
			EndAt:     e.EndAt,
			Reason:    reason,
			FlaggedAt: now,
			Status:    StatusPending,
		}
		byID[e.ID] = entry
		order = append(order, e.ID)
		newlyFlagged = append(newlyFlagged, entry)
		changed = true
	}

	before := len(doc.Pending)
	doc.Pending = doc.Pending[:0]
	for _, id := range order {
		if p, ok := byID[id]; ok {
			doc.Pending = append(doc.Pending, p)
		}
	}
	doc.Pending = prunePending(doc.Pending, now)
	if changed || len(doc.Pending) != before {
		if err := g.savePending(ctx, doc); err != nil {
			return nil, nil, err
		}
	}

	return allowed, newlyFlagged, nil
}
