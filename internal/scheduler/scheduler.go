// Package scheduler provides the repeating timers driving the monitors: a
// low-frequency main scheduler for ATM/PTM and a high-frequency active
// scheduler for OTA.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs a job at a fixed interval, once immediately on start and
// then on every tick. Start while running and Stop while stopped are
// no-ops. A tick firing while the previous job is still in flight is
// skipped, so slow runs never pile up behind the timer.
type Scheduler struct {
	name     string
	interval time.Duration
	job      func(ctx context.Context) error
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inFlight atomic.Bool
}

// New creates a stopped scheduler.
func New(name string, interval time.Duration, job func(ctx context.Context) error, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger,
	}
}

// Start launches the timer loop. Calling Start on a running scheduler does
// nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.logger.Info("Scheduler started", "scheduler", s.name, "interval", s.interval)

	go s.loop(ctx, s.done)
}

// Stop cancels the timer loop and waits for it to exit. Running jobs finish
// on their own. Calling Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("Scheduler stopped", "scheduler", s.name)
}

// Running reports whether the timer loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire runs the job unless the previous run is still in flight.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("previous run still in flight, skipping tick", "scheduler", s.name)
		return
	}

	go func() {
		defer s.inFlight.Store(false)
		if err := s.job(ctx); err != nil {
			s.logger.Error("Scheduled job failed", "scheduler", s.name, "error", err)
		}
	}()
}
