package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"contentaugment/internal/application/common"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/domain/operation"
	"contentaugment/internal/domain/valueobject"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
)

// Executor defaults.
const (
	DefaultBatchSize     = 50
	DefaultItemDelay     = 300 * time.Millisecond
	DefaultBatchDelay    = time.Second
	DefaultPreviewLength = 200
	DefaultProgressEvery = 10

	previewEllipsis = "…"
)

// ExecutorConfig controls batching and pacing.
type ExecutorConfig struct {
	BatchSize     int
	ItemDelay     time.Duration
	BatchDelay    time.Duration
	PreviewLength int
	ProgressEvery int
}

// DefaultExecutorConfig returns the production pacing.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		BatchSize:     DefaultBatchSize,
		ItemDelay:     DefaultItemDelay,
		BatchDelay:    DefaultBatchDelay,
		PreviewLength: DefaultPreviewLength,
		ProgressEvery: DefaultProgressEvery,
	}
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PreviewLength <= 0 {
		c.PreviewLength = DefaultPreviewLength
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	return c
}

// GuardVerdict is the idempotency check result for one item.
type GuardVerdict struct {
	Satisfied bool
	Reason    string
	Item      *entity.ContentItem
}

// ItemGuard decides whether an item already satisfies an operation. It returns
// domain.ErrItemNotFound when the item does not exist.
type ItemGuard interface {
	AlreadySatisfied(ctx context.Context, itemID string, op *operation.Operation) (GuardVerdict, error)
}

// ItemTransformer produces the augmented text for one item. Failures that only
// affect this item are returned as *ItemError; throttling matches
// domain.ErrProviderThrottled.
type ItemTransformer interface {
	Augment(ctx context.Context, item *entity.ContentItem, op *operation.Operation) (string, error)
}

// ProgressSink persists one outcome together with its counter increments.
type ProgressSink interface {
	Record(ctx context.Context, outcome entity.ItemOutcome) error
}

// Runner executes a plan against a sink.
type Runner interface {
	Run(ctx context.Context, plan Plan, sink ProgressSink) error
}

// Plan is one execution request. StartIndex skips items that already have
// outcomes from an earlier, requeued run.
type Plan struct {
	JobID      uuid.UUID
	ItemIDs    []string
	Operation  *operation.Operation
	DryRun     bool
	StartIndex int
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BatchExecutor runs items strictly one after another in fixed-size batches.
type BatchExecutor struct {
	guard       ItemGuard
	transformer ItemTransformer
	items       outbound.ContentItemRepository
	transactor  outbound.Transactor
	config      ExecutorConfig
	sleep       Sleeper
	metrics     *PipelineMetrics
}

// ExecutorOption customizes a BatchExecutor.
type ExecutorOption func(*BatchExecutor)

// WithSleeper replaces the pacing sleep.
func WithSleeper(s Sleeper) ExecutorOption {
	return func(e *BatchExecutor) { e.sleep = s }
}

// WithTransactor commits each item write and its progress record together.
func WithTransactor(t outbound.Transactor) ExecutorOption {
	return func(e *BatchExecutor) { e.transactor = t }
}

// WithMetrics records per-item metrics.
func WithMetrics(m *PipelineMetrics) ExecutorOption {
	return func(e *BatchExecutor) { e.metrics = m }
}

// NewBatchExecutor creates an executor.
func NewBatchExecutor(
	guard ItemGuard,
	transformer ItemTransformer,
	items outbound.ContentItemRepository,
	config ExecutorConfig,
	opts ...ExecutorOption,
) *BatchExecutor {
	if guard == nil {
		panic("guard cannot be nil")
	}
	if transformer == nil {
		panic("transformer cannot be nil")
	}
	if items == nil {
		panic("items cannot be nil")
	}
	e := &BatchExecutor{
		guard:       guard,
		transformer: transformer,
		items:       items,
		config:      config.withDefaults(),
		sleep:       ContextSleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BatchSize returns the effective batch cap.
func (e *BatchExecutor) BatchSize() int {
	return e.config.BatchSize
}

// SplitBatches cuts ids into consecutive chunks of at most size.
func SplitBatches(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// Run processes plan.ItemIDs[plan.StartIndex:]. It returns nil when every item
// has an outcome, a *ThrottledError when the provider throttles, the context
// error on cancellation, or a *FatalJobError.
func (e *BatchExecutor) Run(ctx context.Context, plan Plan, sink ProgressSink) error {
	if plan.Operation == nil {
		return &FatalJobError{Operation: "run plan", Cause: domain.ErrUnknownOperation}
	}
	if plan.StartIndex < 0 || plan.StartIndex > len(plan.ItemIDs) {
		return &FatalJobError{
			Operation: "run plan",
			Cause:     fmt.Errorf("start index %d out of range for %d items", plan.StartIndex, len(plan.ItemIDs)),
		}
	}

	remaining := plan.ItemIDs[plan.StartIndex:]
	batches := SplitBatches(remaining, e.config.BatchSize)
	start := time.Now()

	slogger.Info(ctx, "Executing augmentation plan", slogger.Fields{
		"job_id":      plan.JobID.String(),
		"operation":   plan.Operation.Name,
		"total_items": len(plan.ItemIDs),
		"start_index": plan.StartIndex,
		"batches":     len(batches),
		"dry_run":     plan.DryRun,
	})

	done := 0
	for batchIndex, batch := range batches {
		if batchIndex > 0 {
			if err := e.sleep(ctx, e.config.BatchDelay); err != nil {
				return err
			}
		}

		slogger.Debug(ctx, "Starting batch", slogger.Fields{
			"job_id":      plan.JobID.String(),
			"batch_index": batchIndex,
			"batch_size":  len(batch),
		})

		for itemIndex, itemID := range batch {
			if itemIndex > 0 {
				if err := e.sleep(ctx, e.config.ItemDelay); err != nil {
					return err
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := e.processItem(ctx, plan, itemID, sink); err != nil {
				return err
			}

			done++
			if done%e.config.ProgressEvery == 0 {
				slogger.Info(ctx, "Augmentation progress", slogger.Fields{
					"job_id":    plan.JobID.String(),
					"processed": plan.StartIndex + done,
					"total":     len(plan.ItemIDs),
				})
			}
		}
	}

	slogger.Info(ctx, "Augmentation plan finished", slogger.Fields{
		"job_id":      plan.JobID.String(),
		"processed":   done,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (e *BatchExecutor) processItem(ctx context.Context, plan Plan, itemID string, sink ProgressSink) error {
	itemStart := time.Now()

	verdict, err := e.guard.AlreadySatisfied(ctx, itemID, plan.Operation)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return e.record(ctx, sink, entity.FailedOutcome(itemID, "item not found"), itemStart)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &FatalJobError{ItemID: itemID, Operation: common.OpLoadItem, Cause: err}
	}
	if verdict.Satisfied {
		return e.record(ctx, sink, entity.SkippedOutcome(itemID, verdict.Reason), itemStart)
	}

	text, err := e.transformer.Augment(ctx, verdict.Item, plan.Operation)
	if err != nil {
		var itemErr *ItemError
		switch {
		case errors.Is(err, domain.ErrProviderThrottled):
			e.metrics.RecordThrottle(ctx)
			return newThrottledError(itemID, err)
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.As(err, &itemErr):
			return e.record(ctx, sink, entity.FailedOutcome(itemID, itemErr.Reason), itemStart)
		default:
			return &FatalJobError{ItemID: itemID, Operation: "augment item", Cause: err}
		}
	}

	if plan.DryRun {
		return e.record(ctx, sink, entity.PreviewOutcome(itemID, TruncatePreview(text, e.config.PreviewLength)), itemStart)
	}

	verdict.Item.ReplaceContent(text)
	err = e.inTransaction(ctx, func(txCtx context.Context) error {
		if err := e.items.UpdateContent(txCtx, verdict.Item); err != nil {
			return err
		}
		return sink.Record(txCtx, entity.UpdatedOutcome(itemID))
	})
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return e.record(ctx, sink, entity.FailedOutcome(itemID, "item not found"), itemStart)
		}
		return &FatalJobError{ItemID: itemID, Operation: common.OpUpdateItem, Cause: err}
	}
	e.metrics.RecordItem(ctx, valueobject.OutcomeUpdated.String(), time.Since(itemStart))
	return nil
}

func (e *BatchExecutor) record(ctx context.Context, sink ProgressSink, outcome entity.ItemOutcome, itemStart time.Time) error {
	if err := sink.Record(ctx, outcome); err != nil {
		return &FatalJobError{ItemID: outcome.ItemID, Operation: common.OpRecordOutcome, Cause: err}
	}
	e.metrics.RecordItem(ctx, outcome.Status.String(), time.Since(itemStart))
	return nil
}

func (e *BatchExecutor) inTransaction(ctx context.Context, fn func(context.Context) error) error {
	if e.transactor == nil {
		return fn(ctx)
	}
	return e.transactor.WithTransaction(ctx, fn)
}

// TruncatePreview keeps the first limit runes of text.
func TruncatePreview(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + previewEllipsis
}
