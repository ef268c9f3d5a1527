package entity

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"contentaugment/internal/domain/valueobject"

	"github.com/google/uuid"
)

var (
	ErrEmptyOperationType = errors.New("operation type is required")
	ErrEmptyItemIDs       = errors.New("item ids must not be empty")
	ErrBlankItemID        = errors.New("item ids must not contain blank entries")
)

// JobOptions carries per-job execution switches.
type JobOptions struct {
	DryRun bool `json:"dry_run"`
}

// JobSummary is the aggregate view of a job's recorded outcomes.
type JobSummary struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Updated    int `json:"updated"`
	Previewed  int `json:"previewed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// AugmentationJob is a unit of bulk augmentation work over an ordered list of items.
type AugmentationJob struct {
	id              uuid.UUID
	operationType   string
	itemIDs         []string
	options         JobOptions
	status          valueobject.JobStatus
	totalItems      int
	processedItems  int
	successfulItems int
	failedItems     int
	skippedItems    int
	results         []ItemOutcome
	errorMessage    *string
	claimToken      *uuid.UUID
	requeueCount    int
	availableAt     time.Time
	createdAt       time.Time
	startedAt       *time.Time
	completedAt     *time.Time
	updatedAt       time.Time
}

// AugmentationJobState is the stored representation used to rebuild a job.
type AugmentationJobState struct {
	ID              uuid.UUID
	OperationType   string
	ItemIDs         []string
	Options         JobOptions
	Status          valueobject.JobStatus
	TotalItems      int
	ProcessedItems  int
	SuccessfulItems int
	FailedItems     int
	SkippedItems    int
	Results         []ItemOutcome
	ErrorMessage    *string
	ClaimToken      *uuid.UUID
	RequeueCount    int
	AvailableAt     time.Time
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// NewAugmentationJob creates a queued job. The item list is copied and fixed for the job's lifetime.
func NewAugmentationJob(operationType string, itemIDs []string, options JobOptions) (*AugmentationJob, error) {
	if strings.TrimSpace(operationType) == "" {
		return nil, ErrEmptyOperationType
	}
	if len(itemIDs) == 0 {
		return nil, ErrEmptyItemIDs
	}
	for _, id := range itemIDs {
		if strings.TrimSpace(id) == "" {
			return nil, ErrBlankItemID
		}
	}

	now := time.Now()
	return &AugmentationJob{
		id:            uuid.New(),
		operationType: operationType,
		itemIDs:       slices.Clone(itemIDs),
		options:       options,
		status:        valueobject.JobStatusQueued,
		totalItems:    len(itemIDs),
		results:       make([]ItemOutcome, 0, len(itemIDs)),
		availableAt:   now,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// RestoreAugmentationJob creates an AugmentationJob entity from stored data.
func RestoreAugmentationJob(state AugmentationJobState) *AugmentationJob {
	results := state.Results
	if results == nil {
		results = []ItemOutcome{}
	}
	return &AugmentationJob{
		id:              state.ID,
		operationType:   state.OperationType,
		itemIDs:         state.ItemIDs,
		options:         state.Options,
		status:          state.Status,
		totalItems:      state.TotalItems,
		processedItems:  state.ProcessedItems,
		successfulItems: state.SuccessfulItems,
		failedItems:     state.FailedItems,
		skippedItems:    state.SkippedItems,
		results:         results,
		errorMessage:    state.ErrorMessage,
		claimToken:      state.ClaimToken,
		requeueCount:    state.RequeueCount,
		availableAt:     state.AvailableAt,
		createdAt:       state.CreatedAt,
		startedAt:       state.StartedAt,
		completedAt:     state.CompletedAt,
		updatedAt:       state.UpdatedAt,
	}
}

// ID returns the job ID
func (j *AugmentationJob) ID() uuid.UUID {
	return j.id
}

// OperationType returns the tag selecting the predicate and instruction.
func (j *AugmentationJob) OperationType() string {
	return j.operationType
}

// ItemIDs returns a copy of the ordered item list.
func (j *AugmentationJob) ItemIDs() []string {
	return slices.Clone(j.itemIDs)
}

// Options returns the job options.
func (j *AugmentationJob) Options() JobOptions {
	return j.options
}

// DryRun reports whether item writes are suppressed.
func (j *AugmentationJob) DryRun() bool {
	return j.options.DryRun
}

// Status returns the current job status
func (j *AugmentationJob) Status() valueobject.JobStatus {
	return j.status
}

func (j *AugmentationJob) TotalItems() int {
	return j.totalItems
}

func (j *AugmentationJob) ProcessedItems() int {
	return j.processedItems
}

func (j *AugmentationJob) SuccessfulItems() int {
	return j.successfulItems
}

func (j *AugmentationJob) FailedItems() int {
	return j.failedItems
}

func (j *AugmentationJob) SkippedItems() int {
	return j.skippedItems
}

// Results returns a copy of the recorded outcomes in item order.
func (j *AugmentationJob) Results() []ItemOutcome {
	return slices.Clone(j.results)
}

// ErrorMessage returns the error message if the job failed
func (j *AugmentationJob) ErrorMessage() *string {
	return j.errorMessage
}

// ClaimToken returns the token of the worker currently holding the job, if any.
func (j *AugmentationJob) ClaimToken() *uuid.UUID {
	return j.claimToken
}

func (j *AugmentationJob) RequeueCount() int {
	return j.requeueCount
}

// AvailableAt returns the earliest time the job may be claimed.
func (j *AugmentationJob) AvailableAt() time.Time {
	return j.availableAt
}

func (j *AugmentationJob) CreatedAt() time.Time {
	return j.createdAt
}

func (j *AugmentationJob) StartedAt() *time.Time {
	return j.startedAt
}

func (j *AugmentationJob) CompletedAt() *time.Time {
	return j.completedAt
}

func (j *AugmentationJob) UpdatedAt() time.Time {
	return j.updatedAt
}

// IsTerminal returns true if the job is in a terminal state
func (j *AugmentationJob) IsTerminal() bool {
	return j.status.IsTerminal()
}

// NextItemIndex is the position in ItemIDs of the next item to process.
func (j *AugmentationJob) NextItemIndex() int {
	return j.processedItems
}

// Start marks the job as claimed by the holder of token.
// started_at is only set on the first claim.
func (j *AugmentationJob) Start(token uuid.UUID) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusProcessing) {
		return NewDomainError("cannot start job in current status", CodeInvalidStatusTransition)
	}

	now := time.Now()
	j.status = valueobject.JobStatusProcessing
	if j.startedAt == nil {
		j.startedAt = &now
	}
	j.claimToken = &token
	j.updatedAt = now
	return nil
}

// RecordOutcome appends the outcome of the next item and bumps the matching counter.
func (j *AugmentationJob) RecordOutcome(outcome ItemOutcome) error {
	if j.status != valueobject.JobStatusProcessing {
		return NewDomainError("cannot record outcome for job that is not processing", CodeInvalidStatusTransition)
	}
	if j.processedItems >= j.totalItems {
		return NewDomainError("all items already have outcomes", CodeOutcomeOverflow)
	}
	if expected := j.itemIDs[j.processedItems]; outcome.ItemID != expected {
		return NewDomainError(
			fmt.Sprintf("outcome for item %q recorded out of order, expected %q", outcome.ItemID, expected),
			CodeOutcomeOutOfOrder,
		)
	}

	switch {
	case outcome.Status == valueobject.OutcomeSkipped:
		j.skippedItems++
	case outcome.Status == valueobject.OutcomeFailed:
		j.failedItems++
	case outcome.Status.IsSuccess():
		j.successfulItems++
	default:
		return NewDomainError("invalid outcome status: "+outcome.Status.String(), CodeInvalidOutcome)
	}

	j.results = append(j.results, outcome)
	j.processedItems++
	j.updatedAt = time.Now()
	return nil
}

// Complete marks the job as completed successfully
func (j *AugmentationJob) Complete() error {
	if !j.status.CanTransitionTo(valueobject.JobStatusCompleted) {
		return NewDomainError("cannot complete job in current status", CodeInvalidStatusTransition)
	}

	now := time.Now()
	j.status = valueobject.JobStatusCompleted
	j.completedAt = &now
	j.errorMessage = nil
	j.claimToken = nil
	j.updatedAt = now
	return nil
}

// Fail marks the job as failed with an error message. Recorded outcomes are kept.
func (j *AugmentationJob) Fail(errorMessage string) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusFailed) {
		return NewDomainError("cannot fail job in current status", CodeInvalidStatusTransition)
	}

	now := time.Now()
	j.status = valueobject.JobStatusFailed
	j.completedAt = &now
	j.errorMessage = &errorMessage
	j.claimToken = nil
	j.updatedAt = now
	return nil
}

// Requeue returns a processing job to the queue, claimable from notBefore,
// and counts it against the requeue limit.
func (j *AugmentationJob) Requeue(notBefore time.Time, reason string) error {
	if err := j.backToQueue(notBefore); err != nil {
		return err
	}
	j.requeueCount++
	if reason != "" {
		j.errorMessage = &reason
	}
	return nil
}

// Release returns a job interrupted by shutdown to the queue. The requeue
// count is unchanged.
func (j *AugmentationJob) Release() error {
	return j.backToQueue(time.Now())
}

func (j *AugmentationJob) backToQueue(notBefore time.Time) error {
	if j.status != valueobject.JobStatusProcessing {
		return NewDomainError("cannot requeue job in current status", CodeInvalidStatusTransition)
	}

	j.status = valueobject.JobStatusQueued
	j.claimToken = nil
	j.availableAt = notBefore
	j.updatedAt = time.Now()
	return nil
}

// Summary aggregates the recorded outcomes.
func (j *AugmentationJob) Summary() JobSummary {
	summary := JobSummary{
		Total:      j.totalItems,
		Processed:  j.processedItems,
		Successful: j.successfulItems,
		Failed:     j.failedItems,
		Skipped:    j.skippedItems,
	}
	for _, r := range j.results {
		switch r.Status {
		case valueobject.OutcomeUpdated:
			summary.Updated++
		case valueobject.OutcomePreview:
			summary.Previewed++
		}
	}
	return summary
}

// CheckInvariants verifies the counter and results relationships hold.
func (j *AugmentationJob) CheckInvariants() error {
	if j.processedItems != j.successfulItems+j.failedItems+j.skippedItems {
		return fmt.Errorf("processed %d != successful %d + failed %d + skipped %d",
			j.processedItems, j.successfulItems, j.failedItems, j.skippedItems)
	}
	if j.processedItems > j.totalItems {
		return fmt.Errorf("processed %d exceeds total %d", j.processedItems, j.totalItems)
	}
	if len(j.results) != j.processedItems {
		return fmt.Errorf("results length %d != processed %d", len(j.results), j.processedItems)
	}
	for i, r := range j.results {
		if r.ItemID != j.itemIDs[i] {
			return fmt.Errorf("result %d is for item %q, expected %q", i, r.ItemID, j.itemIDs[i])
		}
	}
	return nil
}

// Equal compares two AugmentationJob entities
func (j *AugmentationJob) Equal(other *AugmentationJob) bool {
	if other == nil {
		return false
	}
	return j.id == other.id
}
