package common

import (
	"fmt"
	"strings"

	"contentaugment/internal/domain/valueobject"

	"github.com/google/uuid"
)

// ValidationError represents a validation error with field details
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation error on field '%s': %s (value: %s)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValidationErrorWithValue creates a new ValidationError with a value
func NewValidationErrorWithValue(field, message, value string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ValidateOperationType validates that an operation type tag is present.
// Whether the tag names a known operation is decided at dispatch time.
func ValidateOperationType(operationType string) error {
	if strings.TrimSpace(operationType) == "" {
		return NewValidationError("operation_type", "operation_type is required")
	}
	if len(operationType) > 64 {
		return NewValidationError("operation_type", "exceeds maximum length of 64")
	}
	return nil
}

// ValidateItemIDs validates a submitted item id list.
func ValidateItemIDs(itemIDs []string) error {
	if len(itemIDs) == 0 {
		return NewValidationError("item_ids", "item_ids must not be empty")
	}
	for i, id := range itemIDs {
		if strings.TrimSpace(id) == "" {
			return NewValidationErrorWithValue("item_ids", "item id must not be blank", fmt.Sprintf("index %d", i))
		}
	}
	return nil
}

// ValidateJobStatus parses a job status filter.
func ValidateJobStatus(status string) (valueobject.JobStatus, error) {
	parsed, err := valueobject.NewJobStatus(status)
	if err != nil {
		return "", NewValidationError("status", fmt.Sprintf("invalid status: %s", status))
	}
	return parsed, nil
}

// ValidateUUID validates that a UUID is not nil/empty.
func ValidateUUID(id uuid.UUID, fieldName string) error {
	if id == uuid.Nil {
		return NewValidationError(fieldName, fmt.Sprintf("%s is required", fieldName))
	}
	return nil
}

// ValidatePaginationLimit validates pagination limit constraints.
func ValidatePaginationLimit(limit int, maxLimit int, fieldName string) error {
	if limit < 0 {
		return NewValidationError(fieldName, "limit must not be negative")
	}
	if limit > maxLimit {
		return NewValidationError(fieldName, fmt.Sprintf("limit exceeds maximum of %d", maxLimit))
	}
	return nil
}
