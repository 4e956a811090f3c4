package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrQueueFull = errors.New("job queue is full")
)

// Run is the body of a job. It reports progress through update and should
// return promptly once ctx is cancelled.
type Run func(ctx context.Context, update func(progress any)) (any, error)

// Interrupted is implemented by results that record whether their run was cut
// short. When a result implements it, it decides between cancelled and
// completed instead of the job context.
type Interrupted interface {
	WasCancelled() bool
}

// Job is a point-in-time snapshot of a tracked job.
type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     Status    `json:"status"`
	Progress   any       `json:"progress,omitempty"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

func (j Job) Finished() bool {
	switch j.Status {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

type entry struct {
	job    Job
	run    Run
	ctx    context.Context
	cancel context.CancelFunc
}

// Service runs jobs one at a time on a single worker and keeps their state in
// memory until the retention period has passed.
type Service struct {
	mu        sync.Mutex
	jobs      map[string]*entry
	queue     chan *entry
	base      context.Context
	retention time.Duration
	now       func() time.Time
}

func New(queueSize int, retention time.Duration) *Service {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Service{
		jobs:      map[string]*entry{},
		queue:     make(chan *entry, queueSize),
		base:      context.Background(),
		retention: retention,
		now:       time.Now,
	}
}

// Start launches the worker. Jobs inherit cancellation from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	go s.worker(ctx)
}

func (s *Service) Enqueue(jobType string, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(s.base)
	e := &entry{
		job:    Job{ID: uuid.NewString(), Type: jobType, Status: StatusQueued, CreatedAt: s.now()},
		run:    run,
		ctx:    ctx,
		cancel: cancel,
	}
	select {
	case s.queue <- e:
	default:
		cancel()
		slog.Warn("job queue full", "jobType", jobType)
		return "", ErrQueueFull
	}
	s.jobs[e.job.ID] = e
	return e.job.ID, nil
}

// RunNow runs a job synchronously on the caller's goroutine and tracks it like
// a queued one.
func (s *Service) RunNow(ctx context.Context, jobType string, run Run) (Job, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e := &entry{
		job:    Job{ID: uuid.NewString(), Type: jobType, Status: StatusQueued, CreatedAt: s.now()},
		run:    run,
		ctx:    ctx,
		cancel: cancel,
	}
	s.mu.Lock()
	s.jobs[e.job.ID] = e
	s.mu.Unlock()

	err := s.runJob(e)
	job, _ := s.Get(e.job.ID)
	return job, err
}

func (s *Service) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return e.job, nil
}

// Cancel stops a queued job before it starts or signals a running one. It is a
// no-op for finished jobs.
func (s *Service) Cancel(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if e.job.Status == StatusQueued {
		e.job.Status = StatusCancelled
		e.job.FinishedAt = s.now()
	}
	e.cancel()
	return e.job, nil
}

// Sweep drops finished jobs older than the retention period.
func (s *Service) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.jobs {
		if e.job.Finished() && now.Sub(e.job.FinishedAt) >= s.retention {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Schedule calls fn every interval until ctx is done.
func Schedule(ctx context.Context, interval time.Duration, name string, fn func(now time.Time)) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				slog.Debug("scheduled task", "task", name)
				fn(now)
			}
		}
	}()
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			if err := s.runJob(e); err != nil {
				slog.Warn("job run failed", "jobType", e.job.Type, "jobId", e.job.ID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(e *entry) error {
	s.mu.Lock()
	if e.job.Status != StatusQueued {
		s.mu.Unlock()
		return nil
	}
	e.job.Status = StatusRunning
	e.job.StartedAt = s.now()
	s.mu.Unlock()

	update := func(progress any) {
		s.mu.Lock()
		e.job.Progress = progress
		s.mu.Unlock()
	}
	result, err := e.run(e.ctx, update)

	s.mu.Lock()
	defer s.mu.Unlock()
	e.job.Result = result
	e.job.FinishedAt = s.now()
	cancelled := e.ctx.Err() != nil
	if r, ok := result.(Interrupted); ok {
		cancelled = r.WasCancelled()
	}
	switch {
	case cancelled:
		e.job.Status = StatusCancelled
	case err != nil:
		e.job.Status = StatusFailed
	default:
		e.job.Status = StatusCompleted
	}
	if err != nil {
		e.job.Error = err.Error()
	}
	e.cancel()
	return err
}
