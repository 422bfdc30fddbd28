package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Scheduler owns the periodic accounting tick. The tick has no cancellation
// semantics beyond being cleared and recreated whenever the user changes the
// interval or disables the feature.
type Scheduler struct {
	scheduler gocron.Scheduler
	tick      func()

	mu      sync.Mutex
	jobID   uuid.UUID
	haveJob bool
	started bool
}

// New creates a scheduler in the given timezone, driven by the given clock.
// tick runs once per interval.
func New(tz *time.Location, clock clockwork.Clock, tick func()) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(tz),
		gocron.WithClock(clock),
	)
	if err != nil {
		return nil, err
	}
	return &Scheduler{scheduler: s, tick: tick}, nil
}

// Start schedules the tick and starts the scheduler.
func (s *Scheduler) Start(intervalMinutes int) error {
	if err := s.Reschedule(intervalMinutes); err != nil {
		return err
	}
	log.Printf("Scheduler started, tick period(min) = %d", clampMinutes(intervalMinutes))
	return nil
}

// Reschedule clears the existing tick job and recreates it with the new
// interval. The underlying scheduler is started lazily on the first job, so a
// tick enabled after a disabled boot still runs.
func (s *Scheduler) Reschedule(intervalMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked()

	period := time.Duration(clampMinutes(intervalMinutes)) * time.Minute
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(s.tick),
		gocron.WithName("working-mode-tick"),
	)
	if err != nil {
		return err
	}
	s.jobID = job.ID()
	s.haveJob = true
	if !s.started {
		s.scheduler.Start()
		s.started = true
	}
	return nil
}

// StopTick removes the tick job without shutting the scheduler down.
func (s *Scheduler) StopTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked()
}

func (s *Scheduler) removeLocked() {
	if !s.haveJob {
		return
	}
	if err := s.scheduler.RemoveJob(s.jobID); err != nil {
		log.Printf("removing tick job: %v", err)
	}
	s.haveJob = false
}

// Shutdown stops the scheduler entirely.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func clampMinutes(m int) int {
	if m < 1 {
		return 1
	}
	return m
}
