// Package memory keeps a rolling index of event names with their last and
// next occurrences. The dashboard uses it to surface reference times when
// editing per-event overrides.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/door-schedule-sync/backend/internal/schedule"
	"github.com/door-schedule-sync/backend/internal/storage"
)

// Document is the document-store key for event memory.
const Document = "event-memory"

// retentionDays prunes names not seen for this long with no upcoming
// occurrence.
const retentionDays = 60

// Entry is the remembered state for one event name.
type Entry struct {
	Name       string     `json:"name"`
	Building   string     `json:"building,omitempty"`
	Rooms      []string   `json:"rooms"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	LastEndAt  *time.Time `json:"lastEndAt,omitempty"`
	NextAt     *time.Time `json:"nextAt,omitempty"`
	NextEndAt  *time.Time `json:"nextEndAt,omitempty"`
}

type document struct {
	Events    []Entry    `json:"events"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// Memory is the rolling event-name index service.
type Memory struct {
	store storage.Store
	now   func() time.Time
}

// New creates an event memory over the document store.
func New(store storage.Store) *Memory {
	return &Memory{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func parseDocument(body []byte) document {
	var doc document
	if len(body) == 0 || json.Unmarshal(body, &doc) != nil || doc.Events == nil {
		return document{Events: []Entry{}}
	}
	return doc
}

// List returns the remembered entries in their stored order: upcoming
// events first (soonest first), then past events by most recent.
func (m *Memory) List(ctx context.Context) ([]Entry, error) {
	body, err := m.store.Get(ctx, Document)
	if err != nil {
		return nil, err
	}
	return parseDocument(body).Events, nil
}

// Update folds one pass's gated events into the memory and persists it.
func (m *Memory) Update(ctx context.Context, events []schedule.Event) error {
	body, err := m.store.Get(ctx, Document)
	if err != nil {
		return err
	}
	doc := parseDocument(body)
	now := m.now()

	entries := make(map[string]*Entry)
	var order []string
	for i := range doc.Events {
		key := strings.ToLower(strings.TrimSpace(doc.Events[i].Name))
		if key == "" {
			continue
		}
		if _, dup := entries[key]; dup {
			continue
		}
		e := doc.Events[i]
		entries[key] = &e
		order = append(order, key)
	}

	// Expire next-occurrence markers that have fallen into the past
	// before folding in the new events.
	for _, entry := range entries {
		if entry.NextAt != nil && entry.NextAt.Before(now) {
			entry.NextAt = nil
			entry.NextEndAt = nil
		}
	}

	for _, evt := range events {
		name := strings.TrimSpace(evt.Name)
		if name == "" || evt.StartAt.IsZero() {
			continue
		}
		key := strings.ToLower(name)

		entry, ok := entries[key]
		if !ok {
			entry = &Entry{Name: name, Building: evt.Building}
			entries[key] = entry
			order = append(order, key)
		}

		start := evt.StartAt
		var end *time.Time
		if !evt.EndAt.IsZero() {
			e := evt.EndAt
			end = &e
		}

		if start.Before(now) {
			switch {
			case entry.LastSeenAt == nil || start.After(*entry.LastSeenAt):
				s := start
				entry.LastSeenAt = &s
				entry.LastEndAt = end
			case start.Equal(*entry.LastSeenAt) && entry.LastEndAt == nil:
				entry.LastEndAt = end
			}
		} else {
			switch {
			case entry.NextAt == nil || start.Before(*entry.NextAt):
				s := start
				entry.NextAt = &s
				entry.NextEndAt = end
			case start.Equal(*entry.NextAt) && entry.NextEndAt == nil:
				entry.NextEndAt = end
			}
		}

		for _, room := range evt.RoomNames() {
			found := false
			for _, existing := range entry.Rooms {
				if existing == room {
					found = true
					break
				}
			}
			if !found {
				entry.Rooms = append(entry.Rooms, room)
			}
		}

		if entry.Building == "" {
			entry.Building = evt.Building
		}
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	var kept []Entry
	for _, key := range order {
		entry := entries[key]
		if entry.NextAt != nil {
			kept = append(kept, *entry)
		} else if entry.LastSeenAt != nil && !entry.LastSeenAt.Before(cutoff) {
			kept = append(kept, *entry)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if (a.NextAt != nil) != (b.NextAt != nil) {
			return a.NextAt != nil
		}
		if a.NextAt != nil && b.NextAt != nil && !a.NextAt.Equal(*b.NextAt) {
			return a.NextAt.Before(*b.NextAt)
		}
		at, bt := time.Time{}, time.Time{}
		if a.LastSeenAt != nil {
			at = *a.LastSeenAt
		}
		if b.LastSeenAt != nil {
			bt = *b.LastSeenAt
		}
		return at.After(bt)
	})

	doc.Events = kept
	doc.UpdatedAt = &now

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding event memory: %w", err)
	}
	return m.store.Put(ctx, Document, encoded)
}
