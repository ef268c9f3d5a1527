package entity

import "errors"

// Codes carried by DomainError for job state machine violations.
const (
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeOutcomeOverflow         = "OUTCOME_OVERFLOW"
	CodeInvalidOutcome          = "INVALID_OUTCOME"
	CodeOutcomeOutOfOrder       = "OUTCOME_OUT_OF_ORDER"
)

// DomainError is returned when an entity rejects a state change.
type DomainError struct {
	message string
	code    string
}

// NewDomainError creates a new domain error.
func NewDomainError(message, code string) *DomainError {
	return &DomainError{
		message: message,
		code:    code,
	}
}

func (e *DomainError) Error() string {
	return e.message
}

// Code returns the error code.
func (e *DomainError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *DomainError) Message() string {
	return e.message
}

// Is matches another DomainError with the same code, so callers can test
// errors.Is(err, NewDomainError("", CodeOutcomeOverflow)).
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.code != "" && other.code == e.code
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.code == code
}
