package outbound

import (
	"context"
	"time"

	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/valueobject"

	"github.com/google/uuid"
)

// AugmentationJobRepository defines the outbound port for augmentation job persistence.
//
// Every write made on behalf of a running worker is fenced by the claim token the
// worker received from ClaimNextQueued. A write whose token no longer matches
// returns domain.ErrJobClaimLost and changes nothing.
type AugmentationJobRepository interface {
	Save(ctx context.Context, job *entity.AugmentationJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.AugmentationJob, error)
	FindAll(ctx context.Context, filters AugmentationJobFilters) ([]*entity.AugmentationJob, int, error)

	// ClaimNextQueued atomically moves the oldest claimable queued job to processing
	// under token. It returns nil, nil when nothing is claimable.
	ClaimNextQueued(ctx context.Context, token uuid.UUID) (*entity.AugmentationJob, error)

	// AppendOutcome appends one result and bumps the matching counter in a single update.
	AppendOutcome(ctx context.Context, jobID, token uuid.UUID, outcome entity.ItemOutcome) error

	MarkCompleted(ctx context.Context, jobID, token uuid.UUID) error
	MarkFailed(ctx context.Context, jobID, token uuid.UUID, message string) error
	// Requeue returns the job to the queue from notBefore and counts one requeue.
	Requeue(ctx context.Context, jobID, token uuid.UUID, notBefore time.Time, reason string) error

	// Release returns a job interrupted by shutdown to the queue, claimable at
	// once. It does not count toward the requeue limit.
	Release(ctx context.Context, jobID, token uuid.UUID) error

	// FindStale returns processing jobs with no progress since staleBefore.
	FindStale(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.AugmentationJob, error)

	// ReclaimStale requeues or fails a stale job. It only applies while the job is
	// still held by token and still has no progress since staleBefore.
	ReclaimStale(ctx context.Context, req ReclaimRequest) (bool, error)
}

// ReclaimRequest describes how the reconciler resolves a stale job.
type ReclaimRequest struct {
	JobID       uuid.UUID
	Token       uuid.UUID
	StaleBefore time.Time
	Requeue     bool
	NotBefore   time.Time
	Reason      string
}

// AugmentationJobFilters represents filters for augmentation job queries.
type AugmentationJobFilters struct {
	Status *valueobject.JobStatus
	Limit  int
	Offset int
}

// ContentItemRepository defines the outbound port for the content being augmented.
type ContentItemRepository interface {
	// FindByID returns nil, nil when the item does not exist.
	FindByID(ctx context.Context, id string) (*entity.ContentItem, error)
	UpdateContent(ctx context.Context, item *entity.ContentItem) error
	Save(ctx context.Context, item *entity.ContentItem) error
}

// Transactor runs fn so that every repository call made with the ctx it
// receives commits or rolls back together.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
