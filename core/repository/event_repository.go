package repository

import (
	"context"
	"database/sql"

	"ml-orchestrator/core/models"
)

// EventRepository handles database operations for job events
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// ListByJob retrieves the events of a job in the order they were recorded
func (r *EventRepository) ListByJob(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	query := `
		SELECT id, job_id, at, from_status, to_status, reason
		FROM job_events
		WHERE job_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.JobEvent{}
	for rows.Next() {
		var event models.JobEvent
		var fromStatus sql.NullString
		var toStatus string

		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.At,
			&fromStatus,
			&toStatus,
			&event.Reason,
		)
		if err != nil {
			return nil, err
		}

		event.ToStatus = models.JobStatus(toStatus)
		if fromStatus.Valid {
			status := models.JobStatus(fromStatus.String)
			event.FromStatus = &status
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
