// Package worker provides an in-process job queue with a retry envelope for
// sync operations.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// ErrQueueFull is returned by Enqueue when the job queue is at capacity.
var ErrQueueFull = errors.New("job queue full")

// JobFunc is the unit of work a job executes.
type JobFunc func(ctx context.Context) error

// Job is the externally visible state of an enqueued task.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Status     JobStatus  `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Config holds worker pool settings.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultConfig returns sensible defaults for the pool.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   64,
		MaxAttempts: 3,
		RetryDelay:  60 * time.Second,
	}
}

type queuedJob struct {
	id uuid.UUID
	fn JobFunc
}

// Pool runs enqueued jobs on a fixed set of workers. A failing job is retried
// up to MaxAttempts times with a fixed delay between attempts.
type Pool struct {
	cfg    Config
	queue  chan queuedJob
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job

	wg sync.WaitGroup

	// wait is swapped out in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewPool creates a worker pool. Zero config fields fall back to defaults.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}

	return &Pool{
		cfg:    cfg,
		queue:  make(chan queuedJob, cfg.QueueSize),
		logger: logger,
		jobs:   make(map[uuid.UUID]*Job),
		wait:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the workers. They drain the queue until ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case qj := <-p.queue:
					p.execute(ctx, qj)
				}
			}
		}()
	}
}

// Stop blocks until all workers have exited. Cancel the Start context first.
func (p *Pool) Stop() {
	p.wg.Wait()
}

// Enqueue adds a job to the queue and returns its handle.
func (p *Pool) Enqueue(name string, fn JobFunc) (uuid.UUID, error) {
	id := uuid.New()
	job := &Job{
		ID:         id,
		Name:       name,
		Status:     StatusPending,
		EnqueuedAt: time.Now().UTC(),
	}

	p.mu.Lock()
	p.jobs[id] = job
	p.mu.Unlock()

	select {
	case p.queue <- queuedJob{id: id, fn: fn}:
		queueDepth.Set(float64(len(p.queue)))
		return id, nil
	default:
		p.mu.Lock()
		delete(p.jobs, id)
		p.mu.Unlock()
		return uuid.Nil, ErrQueueFull
	}
}

// Status returns a copy of the job state for the given handle.
func (p *Pool) Status(id uuid.UUID) (*Job, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	job, ok := p.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

func (p *Pool) execute(ctx context.Context, qj queuedJob) {
	queueDepth.Set(float64(len(p.queue)))

	name := p.transition(qj.id, func(job *Job) {
		now := time.Now().UTC()
		job.Status = StatusRunning
		job.StartedAt = &now
	})

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		p.transition(qj.id, func(job *Job) { job.Attempts = attempt })

		lastErr = runGuarded(ctx, qj.fn)
		if lastErr == nil {
			p.transition(qj.id, func(job *Job) {
				now := time.Now().UTC()
				job.Status = StatusSucceeded
				job.FinishedAt = &now
			})
			jobsTotal.WithLabelValues(name, string(StatusSucceeded)).Inc()
			jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			return
		}

		p.logger.WarnContext(ctx, "job attempt failed",
			slog.String("job_id", qj.id.String()),
			slog.String("job", name),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)

		if attempt < p.cfg.MaxAttempts {
			if err := p.wait(ctx, p.cfg.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}
	}

	p.transition(qj.id, func(job *Job) {
		now := time.Now().UTC()
		job.Status = StatusFailed
		job.FinishedAt = &now
		job.Error = lastErr.Error()
	})
	jobsTotal.WithLabelValues(name, string(StatusFailed)).Inc()
	jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// transition applies a mutation to a job under the lock and returns its name.
func (p *Pool) transition(id uuid.UUID, mutate func(*Job)) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.jobs[id]
	if !ok {
		return ""
	}
	mutate(job)
	return job.Name
}

// runGuarded executes a job function, converting a panic into an error so a
// bad job cannot take a worker down.
func runGuarded(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return fn(ctx)
}
