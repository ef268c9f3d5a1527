package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentaugment/internal/application/common"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/domain/operation"
	"contentaugment/internal/domain/valueobject"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
)

// Dispatcher defaults.
const (
	DefaultThrottleCooldown = time.Minute
	DefaultMaxRequeues      = 5

	shutdownRequeueTimeout = 10 * time.Second
)

// DispatcherConfig controls requeue behavior.
type DispatcherConfig struct {
	ThrottleCooldown time.Duration
	MaxRequeues      int
}

// OperationLookup resolves an operation type to its definition.
type OperationLookup interface {
	Lookup(opType string) (*operation.Operation, bool)
}

// DispatchResult describes one Dispatch call.
type DispatchResult struct {
	Claimed   bool
	JobID     uuid.UUID
	Status    valueobject.JobStatus
	Requeued  bool
	Abandoned bool
}

// Dispatcher claims the oldest queued job and runs it to a terminal or requeued state.
type Dispatcher struct {
	jobs    outbound.AugmentationJobRepository
	catalog OperationLookup
	runner  Runner
	config  DispatcherConfig
	metrics *PipelineMetrics
	now     func() time.Time
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherMetrics records job finalization metrics.
func WithDispatcherMetrics(m *PipelineMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	jobs outbound.AugmentationJobRepository,
	catalog OperationLookup,
	runner Runner,
	config DispatcherConfig,
	opts ...DispatcherOption,
) *Dispatcher {
	if config.ThrottleCooldown <= 0 {
		config.ThrottleCooldown = DefaultThrottleCooldown
	}
	if config.MaxRequeues <= 0 {
		config.MaxRequeues = DefaultMaxRequeues
	}
	d := &Dispatcher{
		jobs:    jobs,
		catalog: catalog,
		runner:  runner,
		config:  config,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch claims at most one job. It returns a zero result when the queue is empty.
func (d *Dispatcher) Dispatch(ctx context.Context) (DispatchResult, error) {
	token := uuid.New()
	job, err := d.jobs.ClaimNextQueued(ctx, token)
	if err != nil {
		return DispatchResult{}, common.WrapServiceError(common.OpClaimJob, err)
	}
	if job == nil {
		return DispatchResult{}, nil
	}

	result := DispatchResult{Claimed: true, JobID: job.ID()}
	fields := slogger.Fields{
		"job_id":         job.ID().String(),
		"operation_type": job.OperationType(),
		"total_items":    job.TotalItems(),
		"start_index":    job.NextItemIndex(),
		"requeue_count":  job.RequeueCount(),
	}
	slogger.Info(ctx, "Claimed augmentation job", fields)

	op, ok := d.catalog.Lookup(job.OperationType())
	if !ok {
		msg := fmt.Sprintf("%s: %s", domain.ErrUnknownOperation.Error(), job.OperationType())
		return d.fail(ctx, result, job, token, msg)
	}

	plan := Plan{
		JobID:      job.ID(),
		ItemIDs:    job.ItemIDs(),
		Operation:  op,
		DryRun:     job.DryRun(),
		StartIndex: job.NextItemIndex(),
	}
	runErr := d.runner.Run(ctx, plan, NewJobProgressSink(d.jobs, job.ID(), token))
	return d.finalize(ctx, result, job, token, runErr)
}

func (d *Dispatcher) finalize(
	ctx context.Context,
	result DispatchResult,
	job *entity.AugmentationJob,
	token uuid.UUID,
	runErr error,
) (DispatchResult, error) {
	var throttled *ThrottledError

	switch {
	case runErr == nil:
		if err := d.jobs.MarkCompleted(ctx, job.ID(), token); err != nil {
			return d.writeFailed(ctx, result, job, err)
		}
		result.Status = valueobject.JobStatusCompleted
		d.metrics.RecordJobFinalized(ctx, result.Status.String())
		slogger.Info(ctx, "Augmentation job completed", slogger.Field("job_id", job.ID().String()))
		return result, nil

	case errors.Is(runErr, domain.ErrJobClaimLost):
		return d.abandon(ctx, result, job)

	case errors.As(runErr, &throttled):
		if job.RequeueCount() >= d.config.MaxRequeues {
			msg := fmt.Sprintf("provider throttled after %d requeues: %v", job.RequeueCount(), throttled.Cause)
			return d.fail(ctx, result, job, token, msg)
		}
		delay := max(d.config.ThrottleCooldown, throttled.RetryAfter)
		return d.requeue(ctx, result, job, token, d.now().Add(delay), "provider throttled: requeued")

	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownRequeueTimeout)
		defer cancel()
		return d.release(releaseCtx, result, job, token)

	default:
		return d.fail(ctx, result, job, token, runErr.Error())
	}
}

func (d *Dispatcher) fail(
	ctx context.Context,
	result DispatchResult,
	job *entity.AugmentationJob,
	token uuid.UUID,
	message string,
) (DispatchResult, error) {
	if err := d.jobs.MarkFailed(ctx, job.ID(), token, message); err != nil {
		return d.writeFailed(ctx, result, job, err)
	}
	result.Status = valueobject.JobStatusFailed
	d.metrics.RecordJobFinalized(ctx, result.Status.String())
	slogger.Warn(ctx, "Augmentation job failed", slogger.Fields2("job_id", job.ID().String(), "error", message))
	return result, nil
}

func (d *Dispatcher) requeue(
	ctx context.Context,
	result DispatchResult,
	job *entity.AugmentationJob,
	token uuid.UUID,
	notBefore time.Time,
	reason string,
) (DispatchResult, error) {
	if err := d.jobs.Requeue(ctx, job.ID(), token, notBefore, reason); err != nil {
		if errors.Is(err, domain.ErrJobClaimLost) {
			return d.abandon(ctx, result, job)
		}
		return result, common.WrapServiceError(common.OpRequeueJob, err)
	}
	result.Status = valueobject.JobStatusQueued
	result.Requeued = true
	d.metrics.RecordJobFinalized(ctx, result.Status.String())
	slogger.Info(ctx, "Augmentation job requeued", slogger.Fields3(
		"job_id", job.ID().String(),
		"available_at", notBefore.UTC().Format(time.RFC3339),
		"reason", reason,
	))
	return result, nil
}

// release hands an interrupted job back without spending one of its requeues.
func (d *Dispatcher) release(
	ctx context.Context,
	result DispatchResult,
	job *entity.AugmentationJob,
	token uuid.UUID,
) (DispatchResult, error) {
	if err := d.jobs.Release(ctx, job.ID(), token); err != nil {
		if errors.Is(err, domain.ErrJobClaimLost) {
			return d.abandon(ctx, result, job)
		}
		return result, common.WrapServiceError(common.OpRequeueJob, err)
	}
	result.Status = valueobject.JobStatusQueued
	result.Requeued = true
	d.metrics.RecordJobFinalized(ctx, result.Status.String())
	slogger.Info(ctx, "Augmentation job released on shutdown", slogger.Field("job_id", job.ID().String()))
	return result, nil
}

func (d *Dispatcher) abandon(ctx context.Context, result DispatchResult, job *entity.AugmentationJob) (DispatchResult, error) {
	result.Abandoned = true
	slogger.Warn(ctx, "Claim lost, abandoning augmentation job", slogger.Field("job_id", job.ID().String()))
	return result, nil
}

func (d *Dispatcher) writeFailed(ctx context.Context, result DispatchResult, job *entity.AugmentationJob, err error) (DispatchResult, error) {
	if errors.Is(err, domain.ErrJobClaimLost) {
		return d.abandon(ctx, result, job)
	}
	return result, common.WrapServiceError(common.OpFinalizeJob, err)
}
