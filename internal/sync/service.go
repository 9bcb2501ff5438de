// Package sync runs the reconciliation pass: fetch calendar events, apply
// the cancellation and safe-hours gates, record event memory, build the
// desired per-door schedule, and push it to the access controller.
package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/door-schedule-sync/backend/internal/config"
	"github.com/door-schedule-sync/backend/internal/gate"
	"github.com/door-schedule-sync/backend/internal/memory"
	"github.com/door-schedule-sync/backend/internal/notify"
	"github.com/door-schedule-sync/backend/internal/schedule"
	"github.com/door-schedule-sync/backend/internal/storage"
	"github.com/door-schedule-sync/backend/internal/unifi"
	"github.com/door-schedule-sync/backend/internal/websocket"
)

const maxRecentErrors = 20

// CalendarSource is the slice of the calendar client a pass needs. The
// HTTP client implements it; tests substitute a fake.
type CalendarSource interface {
	Events(ctx context.Context, from, to time.Time, maxItems int) ([]schedule.Event, error)
	CheckConnectivity(ctx context.Context) bool
	Stats() map[string]any
}

// Controller is the access-controller surface: the reconciler API plus
// the connectivity probe.
type Controller interface {
	unifi.API
	CheckConnectivity(ctx context.Context) bool
}

// Status is a snapshot of the service's health for the dashboard.
type Status struct {
	Running        bool           `json:"running"`
	ApplyToUnifi   bool           `json:"applyToUnifi"`
	LastRunAt      *time.Time     `json:"lastRunAt,omitempty"`
	LastSuccessAt  *time.Time     `json:"lastSuccessAt,omitempty"`
	LastError      string         `json:"lastError,omitempty"`
	RecentErrors   []RunError     `json:"recentErrors,omitempty"`
	LastResult     *Result        `json:"lastResult,omitempty"`
	PCOConnected   *bool          `json:"pcoConnected,omitempty"`
	UnifiConnected *bool          `json:"unifiConnected,omitempty"`
	PCOStats       map[string]any `json:"pcoStats,omitempty"`
}

// RunError records one failed pass.
type RunError struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Result summarizes one completed pass.
type Result struct {
	RanAt         time.Time `json:"ranAt"`
	DurationMS    int64     `json:"durationMs"`
	EventsFetched int       `json:"eventsFetched"`
	EventsKept    int       `json:"eventsKept"`
	DoorWindows   int       `json:"doorWindows"`
	Items         int       `json:"items"`
	NewlyFlagged  int       `json:"newlyFlagged"`
	PendingCount  int       `json:"pendingCount"`
	Applied       bool      `json:"applied"`
}

// Preview is a dry computation of the desired schedule for an arbitrary
// window, without touching the controller or the approval queue.
type Preview struct {
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	EventsFetched int              `json:"eventsFetched"`
	EventsKept    int              `json:"eventsKept"`
	RoomHistogram map[string]int   `json:"roomHistogram"`
	Desired       schedule.Desired `json:"desired"`
}

// Service wires the calendar source, gates, builder and reconciler into
// one periodic pass.
type Service struct {
	cfg         *config.Config
	store       storage.Store
	pco         CalendarSource
	unifi       Controller
	reconciler  *unifi.Reconciler
	gate        *gate.Gate
	cancelled   *gate.Cancellations
	memory      *memory.Memory
	notifier    *notify.Telegram
	broadcaster *websocket.EventBroadcaster
	loc         *time.Location

	runMu sync.Mutex // held for the duration of a pass

	mu           sync.RWMutex // guards the fields below
	running      bool
	applyToUnifi bool
	lastRunAt    *time.Time
	lastSuccess  *time.Time
	lastError    string
	recentErrors []RunError
	lastResult   *Result
}

// NewService creates the sync service. The apply toggle starts from
// configuration and can be flipped at runtime.
func NewService(
	cfg *config.Config,
	store storage.Store,
	pcoClient CalendarSource,
	unifiClient Controller,
	hub *websocket.Hub,
	loc *time.Location,
) *Service {
	var broadcaster *websocket.EventBroadcaster
	if hub != nil {
		broadcaster = websocket.NewEventBroadcaster(hub)
	}

	return &Service{
		cfg:          cfg,
		store:        store,
		pco:          pcoClient,
		unifi:        unifiClient,
		reconciler:   unifi.NewReconciler(unifiClient, loc),
		gate:         gate.NewGate(store, loc),
		cancelled:    gate.NewCancellations(store),
		memory:       memory.New(store),
		notifier:     notify.NewTelegram(cfg.Telegram),
		broadcaster:  broadcaster,
		loc:          loc,
		applyToUnifi: cfg.Sync.ApplyToUnifi,
	}
}

// Gate exposes the approval gate for the API layer.
func (s *Service) Gate() *gate.Gate { return s.gate }

// Cancellations exposes the cancellation filter for the API layer.
func (s *Service) Cancellations() *gate.Cancellations { return s.cancelled }

// Memory exposes the event memory for the API layer.
func (s *Service) Memory() *memory.Memory { return s.memory }

// ApplyToUnifi reports whether passes write to the controller.
func (s *Service) ApplyToUnifi() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applyToUnifi
}

// SetApplyToUnifi flips the runtime apply toggle.
func (s *Service) SetApplyToUnifi(apply bool) {
	s.mu.Lock()
	s.applyToUnifi = apply
	s.mu.Unlock()
	log.Printf("Apply-to-controller set to %v", apply)
}

// Snapshot returns the current service status.
func (s *Service) Snapshot(ctx context.Context) Status {
	s.mu.RLock()
	st := Status{
		Running:       s.running,
		ApplyToUnifi:  s.applyToUnifi,
		LastRunAt:     s.lastRunAt,
		LastSuccessAt: s.lastSuccess,
		LastError:     s.lastError,
		RecentErrors:  append([]RunError(nil), s.recentErrors...),
		LastResult:    s.lastResult,
	}
	s.mu.RUnlock()

	// The two probes are independent reads; run them concurrently so a
	// slow controller does not delay the calendar check.
	var pcoOK, unifiOK bool
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pcoOK = s.pco.CheckConnectivity(ctx)
	}()
	go func() {
		defer wg.Done()
		unifiOK = s.unifi.CheckConnectivity(ctx)
	}()
	wg.Wait()

	st.PCOConnected = &pcoOK
	st.UnifiConnected = &unifiOK
	st.PCOStats = s.pco.Stats()
	return st
}

// RunOnce performs one full reconciliation pass. Only one pass runs at a
// time; a second caller blocks until the first finishes.
func (s *Service) RunOnce(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := time.Now().UTC()
	s.mu.Lock()
	s.running = true
	s.lastRunAt = &started
	s.mu.Unlock()

	result, err := s.runPass(ctx, started)

	s.mu.Lock()
	s.running = false
	if err != nil {
		s.lastError = err.Error()
		s.recentErrors = append(s.recentErrors, RunError{At: started, Message: err.Error()})
		if len(s.recentErrors) > maxRecentErrors {
			s.recentErrors = s.recentErrors[len(s.recentErrors)-maxRecentErrors:]
		}
	} else {
		done := time.Now().UTC()
		s.lastSuccess = &done
		s.lastError = ""
		s.lastResult = result
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("Sync pass failed: %v", err)
		s.notifier.NotifySyncError(ctx, err.Error())
		if s.broadcaster != nil {
			s.broadcaster.BroadcastSyncError(started, err)
		}
		return err
	}

	log.Printf("Sync pass completed in %dms: %d events fetched, %d kept, %d door windows, applied=%v",
		result.DurationMS, result.EventsFetched, result.EventsKept, result.DoorWindows, result.Applied)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastSyncCompleted(started, time.Duration(result.DurationMS)*time.Millisecond,
			result.EventsFetched, result.EventsKept, result.DoorWindows, result.PendingCount, result.Applied)
	}
	return nil
}

func (s *Service) runPass(ctx context.Context, started time.Time) (*Result, error) {
	mappingBody, err := s.store.Get(ctx, schedule.MappingDocument)
	if err != nil {
		return nil, fmt.Errorf("loading room-door mapping: %w", err)
	}
	mapping := schedule.ParseMapping(mappingBody)
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("room-door mapping invalid: %w", err)
	}

	overridesBody, err := s.store.Get(ctx, schedule.OverridesDocument)
	if err != nil {
		return nil, fmt.Errorf("loading event overrides: %w", err)
	}
	overrides := schedule.ParseOverrides(overridesBody)

	officeBody, err := s.store.Get(ctx, schedule.OfficeHoursDocument)
	if err != nil {
		return nil, fmt.Errorf("loading office hours: %w", err)
	}
	officeHours := schedule.ParseOfficeHours(officeBody)

	from := started.Add(-time.Duration(s.cfg.Sync.LookbehindHours) * time.Hour)
	to := started.Add(time.Duration(s.cfg.Sync.LookaheadHours) * time.Hour)

	events, err := s.pco.Events(ctx, from, to, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar events: %w", err)
	}
	fetched := len(events)

	events, err = s.cancelled.Filter(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("applying cancellations: %w", err)
	}

	events, flagged, err := s.gate.Filter(ctx, events,
		mapping.Defaults.UnlockLeadMinutes, mapping.Defaults.UnlockLagMinutes)
	if err != nil {
		return nil, fmt.Errorf("applying safe-hours gate: %w", err)
	}
	if len(flagged) > 0 {
		s.notifier.NotifyFlagged(ctx, flagged)
		if s.broadcaster != nil {
			names := make([]string, 0, len(flagged))
			for _, f := range flagged {
				names = append(names, f.Name)
			}
			s.broadcaster.BroadcastApprovalsFlagged(names)
		}
	}

	if err := s.memory.Update(ctx, events); err != nil {
		return nil, fmt.Errorf("updating event memory: %w", err)
	}

	desired := schedule.Build(schedule.BuildInput{
		Events:      events,
		Mapping:     mapping,
		Overrides:   overrides,
		OfficeHours: officeHours,
		From:        from,
		To:          to,
		Location:    s.loc,
		Now:         started,
	})

	applied := false
	if s.ApplyToUnifi() {
		if err := s.reconciler.Apply(ctx, desired); err != nil {
			return nil, fmt.Errorf("reconciling controller schedules: %w", err)
		}
		applied = true
	} else {
		log.Printf("Dry run: %d door windows computed, controller untouched", len(desired.DoorWindows))
	}

	pending, err := s.gate.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting pending approvals: %w", err)
	}
	pendingCount := 0
	for _, p := range pending {
		if p.Status == gate.StatusPending {
			pendingCount++
		}
	}

	return &Result{
		RanAt:         started,
		DurationMS:    time.Since(started).Milliseconds(),
		EventsFetched: fetched,
		EventsKept:    len(events),
		DoorWindows:   len(desired.DoorWindows),
		Items:         len(desired.Items),
		NewlyFlagged:  len(flagged),
		PendingCount:  pendingCount,
		Applied:       applied,
	}, nil
}

// PreviewWindow computes the desired schedule for [from, to) without
// writing anything: no approval flagging, no memory update, no apply.
func (s *Service) PreviewWindow(ctx context.Context, from, to time.Time, limit int) (*Preview, error) {
	mappingBody, err := s.store.Get(ctx, schedule.MappingDocument)
	if err != nil {
		return nil, fmt.Errorf("loading room-door mapping: %w", err)
	}
	mapping := schedule.ParseMapping(mappingBody)
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("room-door mapping invalid: %w", err)
	}

	overridesBody, err := s.store.Get(ctx, schedule.OverridesDocument)
	if err != nil {
		return nil, err
	}
	officeBody, err := s.store.Get(ctx, schedule.OfficeHoursDocument)
	if err != nil {
		return nil, err
	}

	events, err := s.pco.Events(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar events: %w", err)
	}
	fetched := len(events)

	events, err = s.cancelled.Filter(ctx, events)
	if err != nil {
		return nil, err
	}

	histogram := make(map[string]int)
	for _, e := range events {
		for _, room := range e.RoomNames() {
			histogram[room]++
		}
	}

	desired := schedule.Build(schedule.BuildInput{
		Events:      events,
		Mapping:     mapping,
		Overrides:   schedule.ParseOverrides(overridesBody),
		OfficeHours: schedule.ParseOfficeHours(officeBody),
		From:        from,
		To:          to,
		Location:    s.loc,
		Now:         time.Now().UTC(),
	})

	return &Preview{
		From:          from,
		To:            to,
		EventsFetched: fetched,
		EventsKept:    len(events),
		RoomHistogram: histogram,
		Desired:       desired,
	}, nil
}
