package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricItemsProcessed = "augment_items_processed_total"
	MetricItemDuration   = "augment_item_duration_seconds"
	MetricJobsFinalized  = "augment_jobs_finalized_total"
	MetricJobsReclaimed  = "augment_jobs_reclaimed_total"
	MetricThrottleEvents = "augment_throttle_events_total"
)

// Attribute keys.
const (
	AttrStatus = "status"
	AttrAction = "action"
)

const meterName = "contentaugment/worker"

// PipelineMetrics records executor and dispatcher activity. A nil
// *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	itemsProcessed metric.Int64Counter
	itemDuration   metric.Float64Histogram
	jobsFinalized  metric.Int64Counter
	jobsReclaimed  metric.Int64Counter
	throttleEvents metric.Int64Counter
}

// NewPipelineMetrics creates instruments on the global meter provider.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	itemsProcessed, err := meter.Int64Counter(
		MetricItemsProcessed,
		metric.WithDescription("Items that received an outcome"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricItemsProcessed, err)
	}

	itemDuration, err := meter.Float64Histogram(
		MetricItemDuration,
		metric.WithDescription("Time spent producing one item outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", MetricItemDuration, err)
	}

	jobsFinalized, err := meter.Int64Counter(
		MetricJobsFinalized,
		metric.WithDescription("Jobs moved out of processing"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricJobsFinalized, err)
	}

	jobsReclaimed, err := meter.Int64Counter(
		MetricJobsReclaimed,
		metric.WithDescription("Stale processing jobs reclaimed by the reconciler"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricJobsReclaimed, err)
	}

	throttleEvents, err := meter.Int64Counter(
		MetricThrottleEvents,
		metric.WithDescription("Provider throttle signals"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricThrottleEvents, err)
	}

	return &PipelineMetrics{
		itemsProcessed: itemsProcessed,
		itemDuration:   itemDuration,
		jobsFinalized:  jobsFinalized,
		jobsReclaimed:  jobsReclaimed,
		throttleEvents: throttleEvents,
	}, nil
}

// RecordItem counts one outcome and its duration.
func (m *PipelineMetrics) RecordItem(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrStatus, status))
	m.itemsProcessed.Add(ctx, 1, attrs)
	m.itemDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordJobFinalized counts a job leaving processing with the given status.
func (m *PipelineMetrics) RecordJobFinalized(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.jobsFinalized.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, status)))
}

// RecordReclaim counts a reconciler action.
func (m *PipelineMetrics) RecordReclaim(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.jobsReclaimed.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAction, action)))
}

// RecordThrottle counts a throttle signal.
func (m *PipelineMetrics) RecordThrottle(ctx context.Context) {
	if m == nil {
		return
	}
	m.throttleEvents.Add(ctx, 1)
}
