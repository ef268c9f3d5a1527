package common

import (
	"fmt"

	"contentaugment/internal/domain/errors/domain"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Operation string
	Cause     error
}

// Error implements the error interface
func (e ServiceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// WrapServiceError wraps an error with service operation context
func WrapServiceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return ServiceError{
		Operation: operation,
		Cause:     err,
	}
}

// Common error operations for consistent messaging
const (
	OpSubmitJob        = "submit augmentation job"
	OpRetrieveJob      = "retrieve augmentation job"
	OpListJobs         = "retrieve augmentation jobs"
	OpAugmentSync      = "augment items"
	OpNotifyJob        = "notify job queued"
	OpLoadItem         = "load content item"
	OpUpdateItem       = "update content item"
	OpRecordOutcome    = "record item outcome"
	OpClaimJob         = "claim augmentation job"
	OpFinalizeJob      = "finalize augmentation job"
	OpRequeueJob       = "requeue augmentation job"
	OpReclaimStaleJobs = "reclaim stale jobs"
)

// BatchTooLargeError rejects a synchronous request above the item cap.
type BatchTooLargeError struct {
	Cap      int
	Received int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("batch of %d items exceeds the synchronous cap of %d", e.Received, e.Cap)
}

// Is matches domain.ErrBatchTooLarge.
func (e *BatchTooLargeError) Is(target error) bool {
	return target == domain.ErrBatchTooLarge
}
