// Package domain provides domain-specific error definitions and utilities.
package domain

import "errors"

// Job-related errors.
var (
	ErrJobNotFound      = errors.New("augmentation job not found")
	ErrJobClaimLost     = errors.New("augmentation job claim lost")
	ErrUnknownOperation = errors.New("unknown operation type")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum item count")
)

// Item-related errors.
var (
	ErrItemNotFound = errors.New("content item not found")
)

// Provider-related errors.
var (
	ErrProviderThrottled = errors.New("augmentation provider throttled")
)

// General domain errors.
var (
	ErrInvalidInput = errors.New("invalid input")
)
