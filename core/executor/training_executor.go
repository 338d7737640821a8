package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/models"
	"ml-orchestrator/core/monitoring"
	"ml-orchestrator/core/spec"
	"ml-orchestrator/training/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobLedger is the subset of the job repository the executor mutates
type JobLedger interface {
	Get(ctx context.Context, id string) (*models.TrainingJob, error)
	Start(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, progress float64) error
	Complete(ctx context.Context, id, modelID string, metrics map[string]float64) error
	Fail(ctx context.Context, id, message, reason string) error
}

// ArtifactStore is the subset of the artifact store a training run reads and writes
type ArtifactStore interface {
	DatasetExists(ctx context.Context, tenant, id string) (bool, error)
	GetDataset(ctx context.Context, tenant, id string) (*frame.Frame, error)
	PutModel(ctx context.Context, tenant, id string, blob []byte, info *models.ModelInfo) error
}

// TrainingExecutor runs training jobs from the ledger to a terminal status
type TrainingExecutor struct {
	jobs    JobLedger
	store   ArtifactStore
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewTrainingExecutor creates a new training executor
func NewTrainingExecutor(jobs JobLedger, store ArtifactStore, metrics *monitoring.Metrics, logger *zap.Logger) *TrainingExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingExecutor{
		jobs:    jobs,
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a queued job. Training failures are recorded on the job and are not
// returned; the error result only reports ledger failures.
func (e *TrainingExecutor) Run(ctx context.Context, jobID string) (err error) {
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := e.jobs.Start(ctx, jobID); err != nil {
		return err
	}

	log := e.logger.With(
		zap.String("job_id", job.ID),
		zap.String("tenant_id", job.TenantID),
		zap.String("model_type", string(job.ModelType)),
	)
	log.Info("Training started", zap.String("dataset_id", job.DatasetID))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Training panicked", zap.Any("panic", r))
			err = e.fail(ctx, job, fmt.Errorf("%w: training aborted: %v", models.ErrInternal, r), started, log)
		}
	}()

	modelID, metrics, trainErr := e.train(ctx, job, log)
	if trainErr != nil {
		return e.fail(ctx, job, trainErr, started, log)
	}

	if err := e.jobs.Complete(ctx, job.ID, modelID, metrics); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	e.metrics.RecordJobFinished(string(job.ModelType), string(models.JobStatusCompleted), time.Since(started))
	log.Info("Training completed",
		zap.String("model_id", modelID),
		zap.Duration("elapsed", time.Since(started)),
		zap.Any("metrics", metrics),
	)
	return nil
}

func (e *TrainingExecutor) fail(ctx context.Context, job *models.TrainingJob, cause error, started time.Time, log *zap.Logger) error {
	log.Warn("Training failed", zap.Error(cause))
	if err := e.jobs.Fail(ctx, job.ID, cause.Error(), models.ReasonTrainingFailed); err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	e.metrics.RecordJobFinished(string(job.ModelType), string(models.JobStatusFailed), time.Since(started))
	return nil
}

// train walks the progress checkpoints and returns the id of the published model
func (e *TrainingExecutor) train(ctx context.Context, job *models.TrainingJob, log *zap.Logger) (string, map[string]float64, error) {
	req := job.Request

	// preconditions, checked before the dataset is read
	exists, err := e.store.DatasetExists(ctx, job.TenantID, job.DatasetID)
	if err != nil {
		return "", nil, err
	}
	if !exists {
		return "", nil, fmt.Errorf("dataset %s not found for tenant %s: %w", job.DatasetID, job.TenantID, models.ErrNotFound)
	}
	target, features, err := models.TargetAndFeatures(req.Columns)
	if err != nil {
		return "", nil, err
	}
	cfg, err := spec.ParseTrainingConfig(job.ModelType, req.TrainingConfig)
	if err != nil {
		return "", nil, err
	}

	data, err := e.store.GetDataset(ctx, job.TenantID, job.DatasetID)
	if err != nil {
		return "", nil, err
	}
	if err := requireColumns(data, target, features); err != nil {
		return "", nil, err
	}
	e.checkpoint(ctx, job.ID, models.ProgressDatasetLoaded, log)

	train, test, err := pipeline.Split(data, pipeline.TestFraction, pipeline.SplitSeed)
	if err != nil {
		return "", nil, err
	}
	e.checkpoint(ctx, job.ID, models.ProgressSplit, log)

	p, err := pipeline.Build(req.Columns, job.ModelType, cfg)
	if err != nil {
		return "", nil, err
	}
	if len(p.Dropped) > 0 {
		log.Info("Features without a transformer are dropped", zap.Strings("columns", p.Dropped))
	}
	e.checkpoint(ctx, job.ID, models.ProgressPipelineBuilt, log)

	fitStart := time.Now()
	if err := p.Fit(train); err != nil {
		return "", nil, err
	}
	trainingTime := time.Since(fitStart)
	e.checkpoint(ctx, job.ID, models.ProgressFitted, log)

	metrics, err := p.Evaluate(test)
	if err != nil {
		return "", nil, err
	}
	e.checkpoint(ctx, job.ID, models.ProgressEvaluated, log)

	blob, err := p.Encode()
	if err != nil {
		return "", nil, err
	}

	modelID := uuid.NewString()
	now := e.now()
	info := &models.ModelInfo{
		ModelID:             modelID,
		TenantID:            job.TenantID,
		ModelName:           job.ModelName,
		ModelType:           job.ModelType,
		Description:         req.Description,
		Tags:                req.Tags,
		CreatedAt:           now,
		UpdatedAt:           now,
		Metrics:             metrics,
		FeatureImportance:   p.FeatureImportance(),
		Status:              models.ModelStatusActive,
		Version:             1,
		DatasetID:           job.DatasetID,
		ColumnSchema:        req.Columns,
		TrainingConfig:      cfg.Describe(),
		FeatureColumns:      p.FeatureColumns(),
		TargetColumn:        target,
		TrainingTimeSeconds: trainingTime.Seconds(),
	}
	if info.Tags == nil {
		info.Tags = []string{}
	}
	if err := e.store.PutModel(ctx, job.TenantID, modelID, blob, info); err != nil {
		return "", nil, err
	}
	return modelID, metrics, nil
}

// checkpoint records progress. A failed progress write does not abort the run.
func (e *TrainingExecutor) checkpoint(ctx context.Context, jobID string, progress float64, log *zap.Logger) {
	if err := e.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
		log.Warn("Failed to record progress", zap.Float64("progress", progress), zap.Error(err))
	}
}

func requireColumns(data *frame.Frame, target string, features []models.ColumnDefinition) error {
	var missing []string
	if _, ok := data.Column(target); !ok {
		missing = append(missing, target)
	}
	for _, c := range features {
		if _, ok := data.Column(c.Name); !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return models.Invalid("columns", "not found in dataset: %s", strings.Join(missing, ", "))
	}
	return nil
}
