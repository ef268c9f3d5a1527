package service

import (
	"context"
	"errors"
	"fmt"

	"contentaugment/internal/application/common"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/dto"
	"contentaugment/internal/application/worker"
	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
)

const maxListLimit = 100

// JobService handles submission and polling of asynchronous augmentation jobs.
type JobService struct {
	jobs     outbound.AugmentationJobRepository // Repository for job persistence
	notifier outbound.JobNotifier               // Best-effort dispatch wake-up
}

// NewJobService creates a new instance of JobService.
func NewJobService(jobs outbound.AugmentationJobRepository, notifier outbound.JobNotifier) *JobService {
	if jobs == nil {
		panic("jobs cannot be nil")
	}
	if notifier == nil {
		panic("notifier cannot be nil")
	}
	return &JobService{jobs: jobs, notifier: notifier}
}

// SubmitJob validates the request, persists a queued job, and notifies the
// worker. The job id is returned once the row exists; a failed notification
// is only logged because the dispatch poll picks the job up regardless.
func (s *JobService) SubmitJob(ctx context.Context, request dto.SubmitJobRequest) (*dto.SubmitJobResponse, error) {
	if err := common.ValidateOperationType(request.OperationType); err != nil {
		return nil, err
	}
	if err := common.ValidateItemIDs(request.ItemIDs); err != nil {
		return nil, err
	}

	job, err := entity.NewAugmentationJob(request.OperationType, request.ItemIDs, entity.JobOptions{
		DryRun: request.Options.DryRun,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, common.WrapServiceError(common.OpSubmitJob, err)
	}

	if err := s.notifier.NotifyJobQueued(ctx, job.ID()); err != nil {
		slogger.Warn(ctx, "Failed to notify worker of queued job", slogger.Fields2(
			"job_id", job.ID().String(),
			"error", err.Error(),
		))
	}

	slogger.Info(ctx, "Augmentation job queued", slogger.Fields{
		"job_id":         job.ID().String(),
		"operation_type": job.OperationType(),
		"total_items":    job.TotalItems(),
		"dry_run":        job.DryRun(),
	})
	return &dto.SubmitJobResponse{JobID: job.ID()}, nil
}

// GetJob returns the full job row.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*dto.JobResponse, error) {
	if err := common.ValidateUUID(id, "job_id"); err != nil {
		return nil, err
	}

	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, common.WrapServiceError(common.OpRetrieveJob, err)
	}
	if job == nil {
		return nil, domain.ErrJobNotFound
	}
	return common.EntityToJobResponse(job), nil
}

// ListJobs returns a page of jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context, query dto.JobListQuery) (*dto.JobListResponse, error) {
	if query.Limit == 0 {
		query.Limit = dto.DefaultJobListQuery().Limit
	}
	if err := common.ValidatePaginationLimit(query.Limit, maxListLimit, "limit"); err != nil {
		return nil, err
	}
	if query.Offset < 0 {
		return nil, common.NewValidationError("offset", "offset must not be negative")
	}

	filters := outbound.AugmentationJobFilters{Limit: query.Limit, Offset: query.Offset}
	if query.Status != "" {
		status, err := common.ValidateJobStatus(query.Status)
		if err != nil {
			return nil, err
		}
		filters.Status = &status
	}

	jobs, total, err := s.jobs.FindAll(ctx, filters)
	if err != nil {
		return nil, common.WrapServiceError(common.OpListJobs, err)
	}

	response := &dto.JobListResponse{
		Jobs: make([]dto.JobResponse, 0, len(jobs)),
		Pagination: dto.PaginationResponse{
			Limit:   query.Limit,
			Offset:  query.Offset,
			Total:   total,
			HasMore: query.Offset+len(jobs) < total,
		},
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, *common.EntityToJobResponse(job))
	}
	return response, nil
}

// BatchRunner runs a plan inline and reports its item cap.
type BatchRunner interface {
	worker.Runner
	BatchSize() int
}

// SyncAugmentService runs up to one batch of items inline, without a job row.
type SyncAugmentService struct {
	catalog          worker.OperationLookup
	runner           BatchRunner
	defaultOperation string
}

// NewSyncAugmentService creates the synchronous path.
func NewSyncAugmentService(catalog worker.OperationLookup, runner BatchRunner, defaultOperation string) *SyncAugmentService {
	if catalog == nil {
		panic("catalog cannot be nil")
	}
	if runner == nil {
		panic("runner cannot be nil")
	}
	return &SyncAugmentService{catalog: catalog, runner: runner, defaultOperation: defaultOperation}
}

// AugmentSync rejects requests above the batch cap before touching any item,
// then runs the executor against an in-memory sink.
func (s *SyncAugmentService) AugmentSync(ctx context.Context, request dto.SyncAugmentRequest) (*dto.SyncAugmentResponse, error) {
	if limit := s.runner.BatchSize(); len(request.ItemIDs) > limit {
		return nil, &common.BatchTooLargeError{Cap: limit, Received: len(request.ItemIDs)}
	}
	if err := common.ValidateItemIDs(request.ItemIDs); err != nil {
		return nil, err
	}

	opType := request.OperationType
	if opType == "" {
		opType = s.defaultOperation
	}
	op, ok := s.catalog.Lookup(opType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOperation, opType)
	}

	sink, err := worker.NewMemoryProgressSink(opType, request.ItemIDs, request.DryRun)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	plan := worker.Plan{
		JobID:     uuid.New(),
		ItemIDs:   request.ItemIDs,
		Operation: op,
		DryRun:    request.DryRun,
	}
	if err := s.runner.Run(ctx, plan, sink); err != nil {
		if errors.Is(err, domain.ErrProviderThrottled) {
			return nil, err
		}
		return nil, common.WrapServiceError(common.OpAugmentSync, err)
	}

	return &dto.SyncAugmentResponse{
		Success: true,
		Summary: common.SummaryToSyncDTO(sink.Summary()),
		Results: common.OutcomesToDTO(sink.Results()),
		DryRun:  request.DryRun,
	}, nil
}
