// Package inbound defines the inbound ports (interfaces) for the application layer.
// These ports represent the entry points into the application's core business logic.
package inbound

import (
	"context"

	"contentaugment/internal/application/dto"

	"github.com/google/uuid"
)

// JobService defines the inbound port for submitting and polling augmentation jobs.
type JobService interface {
	SubmitJob(ctx context.Context, request dto.SubmitJobRequest) (*dto.SubmitJobResponse, error)
	GetJob(ctx context.Context, id uuid.UUID) (*dto.JobResponse, error)
	ListJobs(ctx context.Context, query dto.JobListQuery) (*dto.JobListResponse, error)
}

// SyncAugmentService runs a small batch inline and returns every outcome.
type SyncAugmentService interface {
	AugmentSync(ctx context.Context, request dto.SyncAugmentRequest) (*dto.SyncAugmentResponse, error)
}

// HealthService defines the inbound port for health check operations.
type HealthService interface {
	GetHealth(ctx context.Context) (*dto.HealthResponse, error)
}

// DispatchTrigger wakes the dispatch loop. Broker consumers call it on every
// job-queued message.
type DispatchTrigger interface {
	Wake()
}
