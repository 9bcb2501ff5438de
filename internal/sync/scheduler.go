package sync

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the sync pass on the configured cron expression.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	spec    string
	entryID cron.EntryID
}

// NewScheduler creates a scheduler for the service. The spec is a
// standard five-field cron expression.
func NewScheduler(service *Service, spec string) *Scheduler {
	if spec == "" {
		spec = "*/5 * * * *"
	}
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		spec:    spec,
	}
}

// Start schedules the periodic pass and kicks off an immediate first run
// in the background.
func (s *Scheduler) Start() error {
	entryID, err := s.cron.AddFunc(s.spec, func() {
		s.runScheduled()
	})
	if err != nil {
		return err
	}
	s.entryID = entryID

	s.cron.Start()
	log.Printf("Sync scheduler started (spec %q)", s.spec)

	go s.runScheduled()
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running pass.
func (s *Scheduler) Stop() {
	log.Println("Stopping sync scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Sync scheduler stopped")
}

// NextRun returns the next scheduled pass time, if any.
func (s *Scheduler) NextRun() *time.Time {
	entry := s.cron.Entry(s.entryID)
	if entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// RunOnce serializes passes internally; errors are already logged
	// and broadcast by the service.
	_ = s.service.RunOnce(ctx)
}
