package api_test

import (
	"context"

	"contentaugment/internal/application/dto"

	"github.com/google/uuid"
)

type stubHealthService struct {
	response *dto.HealthResponse
	err      error
}

func (s *stubHealthService) GetHealth(_ context.Context) (*dto.HealthResponse, error) {
	return s.response, s.err
}

type stubJobService struct {
	submitFn func(dto.SubmitJobRequest) (*dto.SubmitJobResponse, error)
	getFn    func(uuid.UUID) (*dto.JobResponse, error)
	listFn   func(dto.JobListQuery) (*dto.JobListResponse, error)
}

func (s *stubJobService) SubmitJob(_ context.Context, request dto.SubmitJobRequest) (*dto.SubmitJobResponse, error) {
	return s.submitFn(request)
}

func (s *stubJobService) GetJob(_ context.Context, id uuid.UUID) (*dto.JobResponse, error) {
	return s.getFn(id)
}

func (s *stubJobService) ListJobs(_ context.Context, query dto.JobListQuery) (*dto.JobListResponse, error) {
	return s.listFn(query)
}

type stubSyncService struct {
	augmentFn func(dto.SyncAugmentRequest) (*dto.SyncAugmentResponse, error)
}

func (s *stubSyncService) AugmentSync(_ context.Context, request dto.SyncAugmentRequest) (*dto.SyncAugmentResponse, error) {
	return s.augmentFn(request)
}
