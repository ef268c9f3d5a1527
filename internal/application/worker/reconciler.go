package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentaugment/internal/application/common"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/port/outbound"
)

// Reconciler actions.
const (
	ReconcileActionRequeue = "requeue"
	ReconcileActionFail    = "fail"
)

// Reconciler defaults.
const (
	DefaultReconcileInterval   = time.Minute
	DefaultStaleAfter          = 15 * time.Minute
	DefaultReconcileBatchLimit = 100
)

// ReconcilerConfig controls stuck-job recovery.
type ReconcilerConfig struct {
	Interval    time.Duration
	StaleAfter  time.Duration
	Action      string
	MaxRequeues int
	BatchLimit  int
}

// ReconcileReport summarizes one pass.
type ReconcileReport struct {
	Examined int
	Requeued int
	Failed   int
	Skipped  int
}

// Reconciler reclaims jobs left in processing with no recent progress.
type Reconciler struct {
	jobs    outbound.AugmentationJobRepository
	config  ReconcilerConfig
	metrics *PipelineMetrics
	now     func() time.Time
}

// NewReconciler creates a reconciler. metrics may be nil.
func NewReconciler(jobs outbound.AugmentationJobRepository, config ReconcilerConfig, metrics *PipelineMetrics) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcileInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultStaleAfter
	}
	if config.Action != ReconcileActionFail {
		config.Action = ReconcileActionRequeue
	}
	if config.MaxRequeues <= 0 {
		config.MaxRequeues = DefaultMaxRequeues
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = DefaultReconcileBatchLimit
	}
	return &Reconciler{jobs: jobs, config: config, metrics: metrics, now: time.Now}
}

// ReconcileOnce runs a single pass. A job whose claim moved on between the
// scan and the write is counted as skipped.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	now := r.now()
	staleBefore := now.Add(-r.config.StaleAfter)
	stale, err := r.jobs.FindStale(ctx, staleBefore, r.config.BatchLimit)
	if err != nil {
		return report, common.WrapServiceError(common.OpReclaimStaleJobs, err)
	}

	for _, job := range stale {
		report.Examined++
		if job.ClaimToken() == nil {
			report.Skipped++
			continue
		}

		requeue := r.config.Action == ReconcileActionRequeue && job.RequeueCount() < r.config.MaxRequeues
		req := outbound.ReclaimRequest{
			JobID:       job.ID(),
			Token:       *job.ClaimToken(),
			StaleBefore: staleBefore,
			Requeue:     requeue,
			NotBefore:   now,
			Reason:      TimeoutMessage(job.UpdatedAt()),
		}

		reclaimed, err := r.jobs.ReclaimStale(ctx, req)
		if err != nil {
			return report, common.WrapServiceError(common.OpReclaimStaleJobs, err)
		}
		if !reclaimed {
			report.Skipped++
			continue
		}

		action := ReconcileActionFail
		if requeue {
			action = ReconcileActionRequeue
			report.Requeued++
		} else {
			report.Failed++
		}
		r.metrics.RecordReclaim(ctx, action)
		slogger.Warn(ctx, "Reclaimed stale augmentation job", slogger.Fields{
			"job_id":          job.ID().String(),
			"action":          action,
			"processed_items": job.ProcessedItems(),
			"total_items":     job.TotalItems(),
			"last_progress":   job.UpdatedAt().UTC().Format(time.RFC3339),
		})
	}

	return report, nil
}

// Run reconciles every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	slogger.Info(ctx, "Reconciler started", slogger.Fields2(
		"interval", r.config.Interval.String(),
		"stale_after", r.config.StaleAfter.String(),
	))
	for {
		select {
		case <-ctx.Done():
			slogger.Info(ctx, "Reconciler stopped", nil)
			return nil
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slogger.ErrorWithError(ctx, err, "Reconcile pass failed", nil)
			}
		}
	}
}

// TimeoutMessage is the error_message of a job failed by the reconciler.
func TimeoutMessage(lastProgress time.Time) string {
	return fmt.Sprintf("job timed out: no progress since %s", lastProgress.UTC().Format(time.RFC3339))
}
