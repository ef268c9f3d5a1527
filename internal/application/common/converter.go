package common

import (
	"contentaugment/internal/application/dto"
	"contentaugment/internal/domain/entity"
)

// EntityToJobResponse converts an augmentation job entity to response DTO.
func EntityToJobResponse(job *entity.AugmentationJob) *dto.JobResponse {
	response := &dto.JobResponse{
		ID:              job.ID(),
		OperationType:   job.OperationType(),
		ItemIDs:         job.ItemIDs(),
		Options:         dto.JobOptions{DryRun: job.DryRun()},
		Status:          job.Status().String(),
		TotalItems:      job.TotalItems(),
		ProcessedItems:  job.ProcessedItems(),
		SuccessfulItems: job.SuccessfulItems(),
		FailedItems:     job.FailedItems(),
		SkippedItems:    job.SkippedItems(),
		Results:         OutcomesToDTO(job.Results()),
		ErrorMessage:    job.ErrorMessage(),
		RequeueCount:    job.RequeueCount(),
		CreatedAt:       job.CreatedAt(),
		StartedAt:       job.StartedAt(),
		CompletedAt:     job.CompletedAt(),
		UpdatedAt:       job.UpdatedAt(),
	}

	// Calculate duration if job has started and completed
	if job.StartedAt() != nil && job.CompletedAt() != nil {
		duration := job.CompletedAt().Sub(*job.StartedAt())
		durationStr := duration.String()
		response.Duration = &durationStr
	}

	return response
}

// OutcomesToDTO converts recorded outcomes to response DTOs.
func OutcomesToDTO(outcomes []entity.ItemOutcome) []dto.ItemOutcome {
	out := make([]dto.ItemOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, dto.ItemOutcome{ItemID: o.ItemID, Status: o.Status.String(), Detail: o.Detail})
	}
	return out
}

// SummaryToSyncDTO converts a job summary to the synchronous response summary.
func SummaryToSyncDTO(summary entity.JobSummary) dto.SyncSummary {
	return dto.SyncSummary{
		Total:     summary.Total,
		Processed: summary.Processed,
		Updated:   summary.Updated,
		Previewed: summary.Previewed,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
	}
}
