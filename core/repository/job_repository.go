package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ml-orchestrator/core/models"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a status change is not allowed from the job's
// current status, including any change to a terminal job
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobRepository handles database operations for training jobs
type JobRepository struct {
	db  *DB
	now func() time.Time
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const jobColumns = `id, tenant_id, model_name, model_type, dataset_id, status, progress,
	model_id, metrics_json, error_message, request_json, start_time, end_time, updated_at`

// Create inserts a queued job and its job_created event
func (r *JobRepository) Create(ctx context.Context, job *models.TrainingJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := r.now()
	if job.StartTime.IsZero() {
		job.StartTime = now
	}
	job.Status = models.JobStatusQueued
	job.Progress = 0
	job.UpdatedAt = now

	requestJSON, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("encode training request: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO jobs (
			id, tenant_id, model_name, model_type, dataset_id, status, progress,
			request_json, start_time, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, r.db.rebind(query),
		job.ID,
		job.TenantID,
		job.ModelName,
		string(job.ModelType),
		job.DatasetID,
		string(job.Status),
		job.Progress,
		string(requestJSON),
		job.StartTime,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	if err := r.createJobEventTx(ctx, tx, job.ID, nil, job.Status, models.ReasonJobCreated, now); err != nil {
		return err
	}
	return tx.Commit()
}

// Get retrieves a job by ID
func (r *JobRepository) Get(ctx context.Context, id string) (*models.TrainingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, r.db.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("training job %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListByTenant returns the tenant's jobs, newest first
func (r *JobRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.TrainingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE tenant_id = $1 ORDER BY start_time DESC, id`
	return r.list(ctx, query, tenantID)
}

// ListUnfinished returns every job that has not reached a terminal status
func (r *JobRepository) ListUnfinished(ctx context.Context) ([]*models.TrainingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN ('queued', 'in_progress') ORDER BY start_time, id`
	return r.list(ctx, query)
}

func (r *JobRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.TrainingJob, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*models.TrainingJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByStatus returns the number of jobs per status across all tenants
func (r *JobRepository) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.JobStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// Start moves a queued job to in_progress at the first checkpoint
func (r *JobRepository) Start(ctx context.Context, id string) error {
	return r.transition(ctx, id, models.JobStatusInProgress, models.ReasonExecutionStarted,
		`progress = $1`, models.ProgressStarted)
}

// Complete records the published model and metrics and closes the job
func (r *JobRepository) Complete(ctx context.Context, id, modelID string, metrics map[string]float64) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return r.transition(ctx, id, models.JobStatusCompleted, models.ReasonTrainingCompleted,
		`progress = $1, model_id = $2, metrics_json = $3, end_time = $4`,
		models.ProgressPersisted, modelID, string(metricsJSON), r.now())
}

// Fail closes the job with an error message. Progress is left where the run stopped.
func (r *JobRepository) Fail(ctx context.Context, id, message, reason string) error {
	return r.transition(ctx, id, models.JobStatusFailed, reason,
		`error_message = $1, end_time = $2`, message, r.now())
}

// FailInterrupted fails every job a previous process left unfinished and returns how
// many were closed
func (r *JobRepository) FailInterrupted(ctx context.Context) (int, error) {
	jobs, err := r.ListUnfinished(ctx)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, job := range jobs {
		err := r.Fail(ctx, job.ID, "training interrupted by service restart", models.ReasonInterruptedByRestart)
		if errors.Is(err, ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return failed, err
		}
		failed++
	}
	return failed, nil
}

// UpdateProgress raises the progress of a running job. Lower values and updates to
// jobs that are not in_progress are ignored.
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress float64) error {
	query := `UPDATE jobs SET progress = $1, updated_at = $2 WHERE id = $3 AND status = 'in_progress' AND progress <= $1`
	_, err := r.db.ExecContext(ctx, r.db.rebind(query), progress, r.now(), id)
	return err
}

// transition updates job status atomically with event logging. The update only applies
// while the row still holds the status it was read with.
func (r *JobRepository) transition(ctx context.Context, id string, to models.JobStatus, reason, set string, args ...interface{}) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, r.db.rebind(`SELECT status FROM jobs WHERE id = $1`), id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("training job %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return err
	}

	from := models.JobStatus(current)
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := r.now()
	n := len(args)
	query := fmt.Sprintf(`UPDATE jobs SET %s, status = $%d, updated_at = $%d WHERE id = $%d AND status = $%d`,
		set, n+1, n+2, n+3, n+4)
	args = append(args, string(to), now, id, string(from))

	res, err := tx.ExecContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
	}

	if err := r.createJobEventTx(ctx, tx, id, &from, to, reason, now); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *JobRepository) createJobEventTx(ctx context.Context, tx *sql.Tx, jobID string, fromStatus *models.JobStatus, toStatus models.JobStatus, reason string, at time.Time) error {
	query := `
		INSERT INTO job_events (job_id, at, from_status, to_status, reason)
		VALUES ($1, $2, $3, $4, $5)
	`

	var fromStatusStr *string
	if fromStatus != nil {
		s := string(*fromStatus)
		fromStatusStr = &s
	}

	_, err := tx.ExecContext(ctx, r.db.rebind(query), jobID, at, fromStatusStr, string(toStatus), reason)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.TrainingJob, error) {
	var job models.TrainingJob
	var modelType, status string
	var modelID, metricsJSON, errorMessage sql.NullString
	var requestJSON string
	var endTime sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&job.ModelName,
		&modelType,
		&job.DatasetID,
		&status,
		&job.Progress,
		&modelID,
		&metricsJSON,
		&errorMessage,
		&requestJSON,
		&job.StartTime,
		&endTime,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ModelType = models.ModelType(modelType)
	job.Status = models.JobStatus(status)
	job.Metrics = map[string]float64{}
	if modelID.Valid {
		job.ModelID = &modelID.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if endTime.Valid {
		t := endTime.Time
		job.EndTime = &t
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &job.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics of job %s: %w", job.ID, err)
		}
	}
	dec := json.NewDecoder(strings.NewReader(requestJSON))
	dec.UseNumber()
	if err := dec.Decode(&job.Request); err != nil {
		return nil, fmt.Errorf("decode request of job %s: %w", job.ID, err)
	}
	return &job, nil
}
