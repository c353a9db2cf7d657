package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner is one collection pass. The scheduler assumes a run finishes
// well inside one interval; overlapping runs are not supported.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) RunOnce(ctx context.Context) error { return f(ctx) }

// Scheduler invokes a runner eagerly at start and then on a fixed
// cadence. Run errors are logged and retried at the next tick.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      *slog.Logger
}

// New creates a scheduler.
func New(r Runner, interval time.Duration) *Scheduler {
	if interval == 0 {
		interval = time.Hour
	}
	return &Scheduler{
		runner:   r,
		interval: interval,
		log:      slog.With(slog.String("component", "scheduler")),
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("initial collection", slog.Duration("interval", s.interval))
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.runner.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("collection run failed, retrying at next tick",
			slog.String("error", err.Error()))
	}
}
