package worker

import (
	"errors"
	"fmt"
	"time"

	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/port/outbound"
)

// ItemError is a per-item failure. The executor records it as a failed outcome
// and moves on to the next item.
type ItemError struct {
	ItemID string
	Reason string
	Cause  error
}

// NewItemError creates an ItemError whose Reason becomes the outcome detail.
func NewItemError(itemID, reason string, cause error) *ItemError {
	return &ItemError{ItemID: itemID, Reason: reason, Cause: cause}
}

func (e *ItemError) Error() string {
	return e.Reason
}

func (e *ItemError) Unwrap() error {
	return e.Cause
}

// FatalJobError escapes the per-item boundary and ends the job as failed.
type FatalJobError struct {
	ItemID    string
	Operation string
	Cause     error
}

func (e *FatalJobError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("failed to %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("failed to %s for item %s: %v", e.Operation, e.ItemID, e.Cause)
}

func (e *FatalJobError) Unwrap() error {
	return e.Cause
}

// ThrottledError stops a run when the provider signals rate limiting. The
// throttled item has no recorded outcome.
type ThrottledError struct {
	ItemID     string
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("provider throttled on item %s: %v", e.ItemID, e.Cause)
}

func (e *ThrottledError) Unwrap() error {
	return e.Cause
}

// Is matches domain.ErrProviderThrottled.
func (e *ThrottledError) Is(target error) bool {
	return target == domain.ErrProviderThrottled
}

func newThrottledError(itemID string, cause error) *ThrottledError {
	throttled := &ThrottledError{ItemID: itemID, Cause: cause}
	var augErr *outbound.AugmentationError
	if errors.As(cause, &augErr) {
		throttled.RetryAfter = augErr.RetryAfter
	}
	return throttled
}
