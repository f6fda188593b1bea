// Package scheduler runs the eviction sweep on a recurring schedule. The
// timer is re-armed after each sweep completes, so a slow sweep delays the
// next run rather than stacking runs; interval and sweep options can be
// changed at runtime without restarting the task.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stefanzvkvc/chord/internal/ops"
)

// SweepFunc performs one eviction sweep.
type SweepFunc func(ctx context.Context, input ops.CleanupInput) (*ops.CleanupOutput, error)

type commandKind int

const (
	cmdSetInterval commandKind = iota
	cmdSetOptions
)

type command struct {
	kind     commandKind
	interval time.Duration
	options  ops.CleanupInput
}

// Scheduler is a cancellable periodic sweep task.
type Scheduler struct {
	sweep  SweepFunc
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	commands chan command
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a stopped scheduler. A nil logger discards output.
func New(sweep SweepFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{sweep: sweep, logger: logger}
}

// Start launches the background task. Starting an already-running scheduler
// is a no-op.
func (s *Scheduler) Start(interval time.Duration, options ops.CleanupInput) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.commands = make(chan command, 4)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(interval, options)
}

// Stop halts the task and waits for it to finish. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.running = false
}

// UpdateInterval changes the re-arm interval of a running scheduler.
// Ignored when stopped.
func (s *Scheduler) UpdateInterval(interval time.Duration) {
	s.send(command{kind: cmdSetInterval, interval: interval})
}

// UpdateOptions changes the sweep options of a running scheduler.
// Ignored when stopped.
func (s *Scheduler) UpdateOptions(options ops.CleanupInput) {
	s.send(command{kind: cmdSetOptions, options: options})
}

func (s *Scheduler) send(cmd command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	select {
	case s.commands <- cmd:
	case <-s.stopCh:
	}
}

func (s *Scheduler) run(interval time.Duration, options ops.CleanupInput) {
	defer close(s.doneCh)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return

		case cmd := <-s.commands:
			switch cmd.kind {
			case cmdSetInterval:
				if cmd.interval > 0 {
					interval = cmd.interval
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(interval)
				}
			case cmdSetOptions:
				options = cmd.options
			default:
				// Unknown commands are ignored, not fatal.
			}

		case <-timer.C:
			start := time.Now()
			out, err := s.sweep(context.Background(), options)
			if err != nil {
				s.logger.Error("scheduled sweep failed", "error", err)
			} else {
				s.logger.Debug("scheduled sweep completed",
					"elapsed", time.Since(start),
					"contexts_deleted", out.ContextsDeleted,
					"deltas_expired", out.DeltasExpired,
					"deltas_trimmed", out.DeltasTrimmed)
			}
			timer.Reset(interval)
		}
	}
}
