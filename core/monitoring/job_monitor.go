package monitoring

import (
	"context"
	"time"

	"ml-orchestrator/core/models"

	"go.uber.org/zap"
)

// StatusCounter reports how many ledger jobs sit in each status
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.JobStatus]int, error)
}

// JobMonitor periodically samples the job ledger into the status gauge
type JobMonitor struct {
	jobs     StatusCounter
	metrics  *Metrics
	interval time.Duration
	logger   *zap.Logger
}

// NewJobMonitor creates a new job monitor
func NewJobMonitor(jobs StatusCounter, metrics *Metrics, interval time.Duration, logger *zap.Logger) *JobMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &JobMonitor{
		jobs:     jobs,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the job monitoring loop
func (jm *JobMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(jm.interval)
	defer ticker.Stop()

	jm.Sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jm.Sample(ctx)
		}
	}
}

// Sample reads the current status counts once and publishes them
func (jm *JobMonitor) Sample(ctx context.Context) {
	if jm.metrics == nil {
		return
	}
	counts, err := jm.jobs.CountByStatus(ctx)
	if err != nil {
		jm.logger.Warn("Failed to count training jobs", zap.Error(err))
		return
	}

	for _, status := range []models.JobStatus{
		models.JobStatusQueued,
		models.JobStatusInProgress,
		models.JobStatusCompleted,
		models.JobStatusFailed,
	} {
		jm.metrics.JobsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
