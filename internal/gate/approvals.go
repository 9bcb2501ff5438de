package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Document-store keys for approval state.
const (
	PendingApprovalsDocument = "pending-approvals"
	ApprovedNamesDocument    = "approved-event-names"
)

// Pending approval statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// pendingGraceHours keeps decided and undecided entries visible for a
// while after the event ends before pruning.
const pendingGraceHours = 2

// PendingApproval is one event instance held for human review.
type PendingApproval struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartAt   time.Time  `json:"startAt"`
	EndAt     time.Time  `json:"endAt"`
	Reason    string     `json:"reason"`
	FlaggedAt time.Time  `json:"flaggedAt"`
	Status    string     `json:"status"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
}

type pendingDocument struct {
	Pending []PendingApproval `json:"pending"`
}

// ApprovedName records an event name whose future occurrences bypass the
// gate. The set is append-only; the original casing is retained for
// display and matching is case-insensitive.
type ApprovedName struct {
	Name       string    `json:"name"`
	ApprovedAt time.Time `json:"approvedAt"`
}

type approvedNamesDocument struct {
	Names []ApprovedName `json:"names"`
}

func parsePendingDocument(body []byte) pendingDocument {
	var doc pendingDocument
	if len(body) == 0 || json.Unmarshal(body, &doc) != nil || doc.Pending == nil {
		return pendingDocument{Pending: []PendingApproval{}}
	}
	return doc
}

func parseApprovedNamesDocument(body []byte) approvedNamesDocument {
	var doc approvedNamesDocument
	if len(body) == 0 || json.Unmarshal(body, &doc) != nil || doc.Names == nil {
		return approvedNamesDocument{Names: []ApprovedName{}}
	}
	return doc
}

// Pending returns the current approval queue, decided entries included.
func (g *Gate) Pending(ctx context.Context) ([]PendingApproval, error) {
	body, err := g.store.Get(ctx, PendingApprovalsDocument)
	if err != nil {
		return nil, err
	}
	return parsePendingDocument(body).Pending, nil
}

// ApprovedNames returns the auto-approved event name set.
func (g *Gate) ApprovedNames(ctx context.Context) ([]ApprovedName, error) {
	body, err := g.store.Get(ctx, ApprovedNamesDocument)
	if err != nil {
		return nil, err
	}
	return parseApprovedNamesDocument(body).Names, nil
}

// Approve marks the queue entry approved, stamps the decision time, and
// adds the event's name to the approved set so every future occurrence of
// that name bypasses the gate. Returns the event name, or ok=false when no
// entry with that id exists.
func (g *Gate) Approve(ctx context.Context, eventID string) (name string, ok bool, err error) {
	body, err := g.store.Get(ctx, PendingApprovalsDocument)
	if err != nil {
		return "", false, err
	}
	doc := parsePendingDocument(body)

	now := g.now()
	for i := range doc.Pending {
		if doc.Pending[i].ID != eventID {
			continue
		}
		doc.Pending[i].Status = StatusApproved
		doc.Pending[i].DecidedAt = &now
		name = doc.Pending[i].Name
		ok = true
		break
	}
	if !ok {
		return "", false, nil
	}

	if err := g.savePending(ctx, doc); err != nil {
		return "", false, err
	}
	if name != "" {
		if err := g.addApprovedName(ctx, name); err != nil {
			return "", false, err
		}
	}
	return name, true, nil
}

// Deny marks the queue entry denied and stamps the decision time. The
// entry stays in the queue until pruned, so the dashboard keeps showing
// the decision. The approved-names set is not touched.
func (g *Gate) Deny(ctx context.Context, eventID string) (name string, ok bool, err error) {
	body, err := g.store.Get(ctx, PendingApprovalsDocument)
	if err != nil {
		return "", false, err
	}
	doc := parsePendingDocument(body)

	now := g.now()
	for i := range doc.Pending {
		if doc.Pending[i].ID != eventID {
			continue
		}
		doc.Pending[i].Status = StatusDenied
		doc.Pending[i].DecidedAt = &now
		name = doc.Pending[i].Name
		ok = true
		break
	}
	if !ok {
		return "", false, nil
	}
	if err := g.savePending(ctx, doc); err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (g *Gate) savePending(ctx context.Context, doc pendingDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding pending approvals: %w", err)
	}
	return g.store.Put(ctx, PendingApprovalsDocument, body)
}

func (g *Gate) addApprovedName(ctx context.Context, name string) error {
	body, err := g.store.Get(ctx, ApprovedNamesDocument)
	if err != nil {
		return err
	}
	doc := parseApprovedNamesDocument(body)

	lower := strings.ToLower(name)
	for _, existing := range doc.Names {
		if strings.ToLower(existing.Name) == lower {
			return nil
		}
	}
	doc.Names = append(doc.Names, ApprovedName{Name: name, ApprovedAt: g.now()})

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding approved names: %w", err)
	}
	return g.store.Put(ctx, ApprovedNamesDocument, encoded)
}

// prunePending drops entries whose event ended more than the grace period
// ago, regardless of status. Entries without an end time are kept.
func prunePending(items []PendingApproval, now time.Time) []PendingApproval {
	cutoff := now.Add(-pendingGraceHours * time.Hour)
	kept := items[:0]
	for _, item := range items {
		if item.EndAt.IsZero() || !item.EndAt.Before(cutoff) {
			kept = append(kept, item)
		}
	}
	return kept
}
