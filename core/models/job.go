package models

import "time"

// TrainingJob is the mutable record tracking one asynchronous training run
type TrainingJob struct {
	ID           string             `json:"training_job_id"`
	TenantID     string             `json:"tenant_id"`
	ModelName    string             `json:"model_name"`
	ModelType    ModelType          `json:"model_type"`
	DatasetID    string             `json:"dataset_id"`
	ModelID      *string            `json:"model_id"`
	Status       JobStatus          `json:"status"`
	StartTime    time.Time          `json:"start_time"`
	EndTime      *time.Time         `json:"end_time"`
	Progress     float64            `json:"progress"`
	Metrics      map[string]float64 `json:"metrics"`
	ErrorMessage *string            `json:"error_message"`
	UpdatedAt    time.Time          `json:"updated_at"`

	// Request is the submitted training request, replayed by the executor
	Request TrainingRequest `json:"-"`
}

// JobStatus represents the current status of a training job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// jobTransitions lists the allowed successors of each non-terminal status
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusInProgress, JobStatusFailed},
	JobStatusInProgress: {JobStatusCompleted, JobStatusFailed},
}

// IsTerminal reports whether no further transition is possible
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether s -> to is an edge of the job state machine
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Progress checkpoints reached by a training run, in order
const (
	ProgressStarted       = 0.1
	ProgressDatasetLoaded = 0.2
	ProgressSplit         = 0.3
	ProgressPipelineBuilt = 0.4
	ProgressFitted        = 0.7
	ProgressEvaluated     = 0.8
	ProgressPersisted     = 1.0
)
