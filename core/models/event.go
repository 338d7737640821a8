package models

import "time"

// JobEvent represents a state transition event for a training job
type JobEvent struct {
	ID         int64      `json:"id"`
	JobID      string     `json:"job_id"`
	At         time.Time  `json:"at"`
	FromStatus *JobStatus `json:"from_status"`
	ToStatus   JobStatus  `json:"to_status"`
	Reason     string     `json:"reason"`
}

// Reasons recorded on job events
const (
	ReasonJobCreated           = "job_created"
	ReasonExecutionStarted     = "execution_started"
	ReasonTrainingCompleted    = "training_completed"
	ReasonTrainingFailed       = "training_failed"
	ReasonInterruptedByRestart = "interrupted_by_restart"
)
