package worker

import (
	"context"
	"sync"

	"contentaugment/internal/domain/entity"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
)

// JobProgressSink records outcomes on a persisted job under a claim token.
type JobProgressSink struct {
	repo  outbound.AugmentationJobRepository
	jobID uuid.UUID
	token uuid.UUID
}

// NewJobProgressSink creates a sink for the job claimed with token.
func NewJobProgressSink(repo outbound.AugmentationJobRepository, jobID, token uuid.UUID) *JobProgressSink {
	return &JobProgressSink{repo: repo, jobID: jobID, token: token}
}

// Record appends the outcome and bumps counters in one statement.
func (s *JobProgressSink) Record(ctx context.Context, outcome entity.ItemOutcome) error {
	return s.repo.AppendOutcome(ctx, s.jobID, s.token, outcome)
}

// MemoryProgressSink accumulates outcomes on a transient, never persisted job.
// The synchronous path uses it so both paths share the same counter rules.
type MemoryProgressSink struct {
	mu  sync.Mutex
	job *entity.AugmentationJob
}

// NewMemoryProgressSink creates a sink over a transient processing job.
func NewMemoryProgressSink(operationType string, itemIDs []string, dryRun bool) (*MemoryProgressSink, error) {
	job, err := entity.NewAugmentationJob(operationType, itemIDs, entity.JobOptions{DryRun: dryRun})
	if err != nil {
		return nil, err
	}
	if err := job.Start(uuid.New()); err != nil {
		return nil, err
	}
	return &MemoryProgressSink{job: job}, nil
}

// Record appends the outcome to the transient job.
func (s *MemoryProgressSink) Record(_ context.Context, outcome entity.ItemOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.RecordOutcome(outcome)
}

// Results returns a copy of the recorded outcomes.
func (s *MemoryProgressSink) Results() []entity.ItemOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.Results()
}

// Summary returns the aggregate counters.
func (s *MemoryProgressSink) Summary() entity.JobSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.Summary()
}
