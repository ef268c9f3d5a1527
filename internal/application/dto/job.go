package dto

import (
	"time"

	"github.com/google/uuid"
)

// JobOptions carries per-job switches.
type JobOptions struct {
	DryRun bool `json:"dry_run"`
}

// SubmitJobRequest represents the request to queue an augmentation job.
type SubmitJobRequest struct {
	OperationType string     `json:"operation_type" validate:"required"`
	ItemIDs       []string   `json:"item_ids"       validate:"required,min=1"`
	Options       JobOptions `json:"options"`
}

// SubmitJobResponse is returned once the job row exists.
type SubmitJobResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// ItemOutcome is the recorded result of one item.
type ItemOutcome struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JobResponse represents the full job row served to pollers.
type JobResponse struct {
	ID              uuid.UUID     `json:"id"`
	OperationType   string        `json:"operation_type"`
	ItemIDs         []string      `json:"item_ids"`
	Options         JobOptions    `json:"options"`
	Status          string        `json:"status"`
	TotalItems      int           `json:"total_items"`
	ProcessedItems  int           `json:"processed_items"`
	SuccessfulItems int           `json:"successful_items"`
	FailedItems     int           `json:"failed_items"`
	SkippedItems    int           `json:"skipped_items"`
	Results         []ItemOutcome `json:"results"`
	ErrorMessage    *string       `json:"error_message"`
	RequeueCount    int           `json:"requeue_count"`
	CreatedAt       time.Time     `json:"created_at"`
	StartedAt       *time.Time    `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Duration        *string       `json:"duration,omitempty"` // Human-readable duration
}

// JobListResponse represents the response for listing jobs
type JobListResponse struct {
	Jobs       []JobResponse      `json:"jobs"`
	Pagination PaginationResponse `json:"pagination"`
}

// JobListQuery represents query parameters for listing jobs
type JobListQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=queued processing completed failed"`
	Limit  int    `form:"limit"  validate:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// DefaultJobListQuery returns default values for job list query
func DefaultJobListQuery() JobListQuery {
	return JobListQuery{
		Limit:  20,
		Offset: 0,
	}
}

// PaginationResponse represents pagination metadata.
type PaginationResponse struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}
