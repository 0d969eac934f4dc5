// Package scheduler drives periodic monitor updates. Jobs never touch
// monitors; they only post the monitor id to a channel owned by the main
// loop.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
)

const tickBuffer = 64

// Scheduler wraps a cron runner whose jobs post monitor ids to C.
type Scheduler struct {
	cron  *cron.Cron
	ticks chan string
	log   logr.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a stopped scheduler.
func New(log logr.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(log.WithName("cron"))),
		ticks:   make(chan string, tickBuffer),
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// C delivers the id of each monitor whose update is due.
func (s *Scheduler) C() <-chan string { return s.ticks }

// Every schedules id at a fixed period. A non-positive period is a no-op.
func (s *Scheduler) Every(id string, period time.Duration) {
	if period <= 0 {
		return
	}
	s.add(id, cron.Every(period))
}

// Cron schedules id with a standard five-field cron expression.
func (s *Scheduler) Cron(id, spec string) error {
	sched, err := ParseSpec(spec)
	if err != nil {
		return err
	}
	s.add(id, sched)
	return nil
}

// ParseSpec validates a standard five-field cron expression.
func ParseSpec(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return sched, nil
}

func (s *Scheduler) add(id string, sched cron.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
	}
	s.entries[id] = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id) }))
}

// Remove unschedules id.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		s.cron.Remove(e)
		delete(s.entries, id)
	}
}

// Next returns the next activation time for id, or zero if unscheduled or
// not yet started.
func (s *Scheduler) Next(id string) time.Time {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(e).Next
}

// Len returns the number of scheduled monitors.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fire posts id without blocking. A full channel means the loop is behind;
// the dropped tick is subsumed by the next update.
func (s *Scheduler) fire(id string) {
	select {
	case s.ticks <- id:
	default:
		s.log.V(1).Info("tick dropped, loop busy", "monitor", id)
	}
}

// Start runs the cron scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
