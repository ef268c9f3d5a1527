package messaging

import (
	"time"

	"github.com/google/uuid"
)

// TaskTypeDispatch is the asynq task type that wakes the dispatcher.
const TaskTypeDispatch = "augment:dispatch"

// JobQueuedMessage is the broker payload announcing a newly queued job. It is
// only a wake-up hint; the dispatcher always claims from the database.
type JobQueuedMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"message_id"`
}

// NewJobQueuedMessage stamps a message for jobID.
func NewJobQueuedMessage(jobID uuid.UUID) JobQueuedMessage {
	return JobQueuedMessage{
		JobID:     jobID,
		Timestamp: time.Now(),
		MessageID: uuid.NewString(),
	}
}
