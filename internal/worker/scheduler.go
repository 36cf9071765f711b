package worker

import (
	"context"
	"log/slog"
	"time"
)

// ScheduledTask is a named recurring job.
type ScheduledTask struct {
	Name string
	Fn   JobFunc
}

// Scheduler enqueues its tasks into a pool on a fixed interval.
type Scheduler struct {
	pool     *Pool
	interval time.Duration
	logger   *slog.Logger
	tasks    []ScheduledTask
}

// NewScheduler creates a scheduler over the given pool.
func NewScheduler(pool *Pool, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Add registers a recurring task. Not safe to call after Run has started.
func (s *Scheduler) Add(name string, fn JobFunc) {
	s.tasks = append(s.tasks, ScheduledTask{Name: name, Fn: fn})
}

// Run ticks until ctx is canceled, enqueueing every task on each tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueAll(ctx)
		}
	}
}

func (s *Scheduler) enqueueAll(ctx context.Context) {
	for _, task := range s.tasks {
		id, err := s.pool.Enqueue(task.Name, task.Fn)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping scheduled task",
				slog.String("job", task.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.InfoContext(ctx, "scheduled task enqueued",
			slog.String("job", task.Name),
			slog.String("job_id", id.String()),
		)
	}
}
