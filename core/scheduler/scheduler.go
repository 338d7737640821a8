package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ml-orchestrator/core/monitoring"

	"go.uber.org/zap"
)

// Runner executes one training job to a terminal status
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Recoverer closes jobs left unfinished by a previous process
type Recoverer interface {
	FailInterrupted(ctx context.Context) (int, error)
}

// Scheduler feeds queued training jobs to a bounded pool of workers
type Scheduler struct {
	jobs     Recoverer
	runner   Runner
	queue    *JobQueue
	workers  int
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	notify   chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a new scheduler running at most workers jobs at once
func NewScheduler(jobs Recoverer, runner Runner, workers int, metrics *monitoring.Metrics, logger *zap.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:     jobs,
		runner:   runner,
		queue:    NewJobQueue(),
		workers:  workers,
		metrics:  metrics,
		logger:   logger,
		notify:   make(chan struct{}, workers),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Recover fails every job a previous process left queued or in_progress.
// It must run before new jobs are accepted.
func (s *Scheduler) Recover(ctx context.Context) error {
	n, err := s.jobs.FailInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if n > 0 {
		s.logger.Warn("Failed jobs interrupted by restart", zap.Int("count", n))
	}
	return nil
}

// Start runs the worker pool until ctx is cancelled or Stop is called.
// Jobs already running are allowed to reach a terminal status.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("Scheduler started", zap.Int("workers", s.workers))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.work(ctx, worker)
		}(i)
	}
	wg.Wait()

	s.logger.Info("Scheduler stopped", zap.Int("pending", s.queue.Size()))
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Done is closed once every worker has exited
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Enqueue adds a job to the queue and wakes an idle worker
func (s *Scheduler) Enqueue(jobID string, submittedAt time.Time) {
	s.queue.Enqueue(jobID, submittedAt)
	s.metrics.SetQueueDepth(s.queue.Size())

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of jobs waiting for a worker
func (s *Scheduler) Pending() int {
	return s.queue.Size()
}

func (s *Scheduler) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		default:
		}

		jobID, ok := s.queue.PopJob()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-s.notify:
			}
			continue
		}

		s.metrics.SetQueueDepth(s.queue.Size())
		s.runJob(ctx, worker, jobID)
	}
}

// runJob shields the pool from a panicking run
func (s *Scheduler) runJob(ctx context.Context, worker int, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Training worker panicked",
				zap.Int("worker", worker),
				zap.String("job_id", jobID),
				zap.Any("panic", r),
			)
		}
	}()

	// a started run is never cancelled; it always reaches a terminal status
	runCtx := context.WithoutCancel(ctx)
	if err := s.runner.Run(runCtx, jobID); err != nil {
		s.logger.Error("Training job did not complete",
			zap.Int("worker", worker),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}
