package handlers

import (
	"context"
	"net/http"
	"time"

	"ml-orchestrator/api/rest/apierr"
	"ml-orchestrator/core/logging"
	"ml-orchestrator/core/models"
	"ml-orchestrator/core/monitoring"
	"ml-orchestrator/core/spec"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// JobStore is the job ledger as seen by request handlers
type JobStore interface {
	Create(ctx context.Context, job *models.TrainingJob) error
	Get(ctx context.Context, id string) (*models.TrainingJob, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.TrainingJob, error)
}

// EventStore lists the transitions of a job
type EventStore interface {
	ListByJob(ctx context.Context, jobID string) ([]models.JobEvent, error)
}

// Enqueuer hands a created job to the training workers
type Enqueuer interface {
	Enqueue(jobID string, submittedAt time.Time)
}

// JobHandler handles training job HTTP requests
type JobHandler struct {
	jobs      JobStore
	events    EventStore
	scheduler Enqueuer
	metrics   *monitoring.Metrics
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobStore, events EventStore, sched Enqueuer, metrics *monitoring.Metrics) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		events:    events,
		scheduler: sched,
		metrics:   metrics,
	}
}

// TrainingResponse is returned when a training job is accepted
type TrainingResponse struct {
	ModelID       string `json:"model_id"`
	TenantID      string `json:"tenant_id"`
	Status        string `json:"status"`
	TrainingJobID string `json:"training_job_id"`
	Message       string `json:"message"`
}

// SubmitTraining handles POST /train
func (h *JobHandler) SubmitTraining(w http.ResponseWriter, r *http.Request) {
	var req models.TrainingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tenant, err := bodyTenant(r, req.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := spec.ParseTrainingConfig(req.ModelType, req.TrainingConfig); err != nil {
		writeError(w, r, err)
		return
	}

	job := &models.TrainingJob{
		TenantID:  tenant,
		ModelName: req.ModelName,
		ModelType: req.ModelType,
		DatasetID: req.DatasetID,
		Request:   req,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		writeError(w, r, err)
		return
	}
	h.scheduler.Enqueue(job.ID, job.StartTime)
	h.metrics.RecordJobSubmitted(string(job.ModelType))

	logging.FromContext(r.Context()).Info("Training job queued",
		zap.String("job_id", job.ID),
		zap.String("model_name", job.ModelName),
		zap.String("dataset_id", job.DatasetID),
	)

	writeJSON(w, http.StatusAccepted, TrainingResponse{
		ModelID:       "pending",
		TenantID:      tenant,
		Status:        string(job.Status),
		TrainingJobID: job.ID,
		Message:       "Training job queued successfully",
	})
}

// ownedJob loads a job and checks that the caller's tenant owns it
func (h *JobHandler) ownedJob(w http.ResponseWriter, r *http.Request) (*models.TrainingJob, bool) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	job, err := h.jobs.Get(r.Context(), mux.Vars(r)["job_id"])
	if err != nil {
		writeLookupError(w, r, err, "Training job not found")
		return nil, false
	}
	if job.TenantID != tenant {
		apierr.WriteMessage(w, http.StatusForbidden, "Access denied to this training job")
		return nil, false
	}
	return job, true
}

// GetTrainingStatus handles GET /training-status/{job_id}
func (h *JobHandler) GetTrainingStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetJobEvents handles GET /training-status/{job_id}/events
func (h *JobHandler) GetJobEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	events, err := h.events.ListByJob(r.Context(), job.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": events,
	})
}

// ListTrainingJobs handles GET /training-jobs
func (h *JobHandler) ListTrainingJobs(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jobs, err := h.jobs.ListByTenant(r.Context(), tenant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
