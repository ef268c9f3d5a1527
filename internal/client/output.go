// Package client is the HTTP client and JSON output envelope used by the
// contentaugment-client CLI.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

// Error codes written in the envelope when a command fails.
const (
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeInvalidConfig   = "INVALID_CONFIG"
	ErrCodeConnection      = "CONNECTION_ERROR"
	ErrCodeTimeout         = "TIMEOUT_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeThrottled       = "THROTTLED"
	ErrCodeServer          = "SERVER_ERROR"
	ErrCodeAPI             = "API_ERROR"
	ErrCodeJobFailed       = "JOB_FAILED"
)

// Response is the JSON envelope for all CLI output. Data and Error are
// mutually exclusive.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *Error      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Error is the failure half of the envelope.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteSuccess writes a success envelope wrapping data.
func WriteSuccess(w io.Writer, data interface{}) error {
	return json.NewEncoder(w).Encode(Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes a failure envelope.
func WriteError(w io.Writer, code, message string, details interface{}) error {
	return json.NewEncoder(w).Encode(Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

// WriteFailure classifies err and writes it as a failure envelope. Server
// error codes and Retry-After hints are carried in details.
func WriteFailure(w io.Writer, err error) error {
	code, details := Classify(err)
	return WriteError(w, code, err.Error(), details)
}

// Classify maps an error returned by Client to an envelope code.
func Classify(err error) (string, interface{}) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		details := map[string]string{}
		if apiErr.Code != "" {
			details["server_code"] = apiErr.Code
		}
		if apiErr.RetryAfter != "" {
			details["retry_after"] = apiErr.RetryAfter
		}
		var d interface{}
		if len(details) > 0 {
			d = details
		}

		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return ErrCodeNotFound, d
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return ErrCodeThrottled, d
		case apiErr.StatusCode == http.StatusBadRequest:
			return ErrCodeInvalidArgument, d
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return ErrCodeServer, d
		default:
			return ErrCodeAPI, d
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrCodeTimeout, nil
		}
		return ErrCodeConnection, nil
	}
	return ErrCodeAPI, nil
}
