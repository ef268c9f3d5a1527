// Package api provides the HTTP surface for job submission, the synchronous
// augment call, job polling, health and metrics.
package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"contentaugment/internal/application/common"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/dto"
	"contentaugment/internal/application/worker"
	"contentaugment/internal/domain/errors/domain"
)

// DefaultThrottleRetryAfter is sent when the provider gave no Retry-After hint.
const DefaultThrottleRetryAfter = 60

// ErrorHandler defines methods for handling HTTP errors.
type ErrorHandler interface {
	HandleValidationError(w http.ResponseWriter, r *http.Request, err error)
	HandleServiceError(w http.ResponseWriter, r *http.Request, err error)
}

// ErrorHandlingConfig defines the response for one domain error.
type ErrorHandlingConfig struct {
	LogMessage      string
	ErrorType       string
	HTTPStatus      int
	ErrorCode       dto.ErrorCode
	ResponseMessage string
	UseDetailedMsg  bool
}

type errorMapping struct {
	target error
	config ErrorHandlingConfig
}

// DefaultErrorHandler implements ErrorHandler with standard HTTP error responses.
type DefaultErrorHandler struct {
	mappings []errorMapping
}

// NewDefaultErrorHandler creates a new DefaultErrorHandler with predefined error configurations.
func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{
		mappings: []errorMapping{
			{domain.ErrJobNotFound, ErrorHandlingConfig{
				LogMessage:      "Augmentation job not found",
				ErrorType:       "job_not_found",
				HTTPStatus:      http.StatusNotFound,
				ErrorCode:       dto.ErrorCodeJobNotFound,
				ResponseMessage: "Augmentation job not found",
			}},
			{domain.ErrUnknownOperation, ErrorHandlingConfig{
				LogMessage:     "Unknown operation type",
				ErrorType:      "unknown_operation",
				HTTPStatus:     http.StatusBadRequest,
				ErrorCode:      dto.ErrorCodeUnknownOperation,
				UseDetailedMsg: true,
			}},
			{domain.ErrInvalidInput, ErrorHandlingConfig{
				LogMessage:     "Invalid input",
				ErrorType:      "validation",
				HTTPStatus:     http.StatusBadRequest,
				ErrorCode:      dto.ErrorCodeInvalidRequest,
				UseDetailedMsg: true,
			}},
		},
	}
}

func (h *DefaultErrorHandler) logError(r *http.Request, message, errorType string, err error) {
	slogger.Error(r.Context(), message, slogger.Fields{
		"error": err.Error(),
		"path":  r.URL.Path,
		"type":  errorType,
	})
}

func (h *DefaultErrorHandler) handleErrorWithConfig(w http.ResponseWriter, r *http.Request, err error, config ErrorHandlingConfig) {
	h.logError(r, config.LogMessage, config.ErrorType, err)

	message := config.ResponseMessage
	if config.UseDetailedMsg {
		message = err.Error()
	}
	h.writeErrorResponse(w, r, config.HTTPStatus, dto.NewErrorResponse(config.ErrorCode, message, nil))
}

// HandleValidationError handles validation errors by returning 400 Bad Request.
func (h *DefaultErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, "Validation error occurred", "validation", err)

	var validationErr common.ValidationError
	if errors.As(err, &validationErr) {
		response := dto.NewErrorResponse(
			dto.ErrorCodeInvalidRequest,
			"Validation failed",
			dto.ValidationErrorDetails{Errors: []dto.ValidationError{{
				Field:   validationErr.Field,
				Message: validationErr.Message,
				Value:   validationErr.Value,
			}}},
		)
		h.writeErrorResponse(w, r, http.StatusBadRequest, response)
		return
	}

	h.writeErrorResponse(w, r, http.StatusBadRequest, dto.NewErrorResponse(dto.ErrorCodeInvalidRequest, err.Error(), nil))
}

// HandleServiceError maps service errors to HTTP status codes.
func (h *DefaultErrorHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr common.ValidationError
	if errors.As(err, &validationErr) {
		h.HandleValidationError(w, r, err)
		return
	}

	var tooLarge *common.BatchTooLargeError
	if errors.As(err, &tooLarge) {
		h.logError(r, "Synchronous batch too large", "batch_too_large", err)
		h.preserveCorrelationID(w, r)
		writeJSONOrFail(w, http.StatusBadRequest, dto.BatchTooLargeResponse{
			Error:         string(dto.ErrorCodeBatchTooLarge),
			Message:       err.Error(),
			Cap:           tooLarge.Cap,
			ReceivedCount: tooLarge.Received,
		})
		return
	}

	if errors.Is(err, domain.ErrProviderThrottled) {
		h.logError(r, "Augmentation provider throttled", "throttled", err)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(err)))
		h.writeErrorResponse(w, r, http.StatusTooManyRequests, dto.NewErrorResponse(
			dto.ErrorCodeProviderThrottled,
			"Augmentation provider is rate limited, retry later",
			nil,
		))
		return
	}

	for _, m := range h.mappings {
		if errors.Is(err, m.target) {
			h.handleErrorWithConfig(w, r, err, m.config)
			return
		}
	}

	h.handleErrorWithConfig(w, r, err, ErrorHandlingConfig{
		LogMessage:      "Internal server error",
		ErrorType:       "internal",
		HTTPStatus:      http.StatusInternalServerError,
		ErrorCode:       dto.ErrorCodeInternalError,
		ResponseMessage: "An internal error occurred",
	})
}

func retryAfterSeconds(err error) int {
	var throttled *worker.ThrottledError
	if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
		return int(math.Ceil(throttled.RetryAfter.Seconds()))
	}
	return DefaultThrottleRetryAfter
}

func (h *DefaultErrorHandler) preserveCorrelationID(w http.ResponseWriter, r *http.Request) {
	if correlationID := r.Header.Get(HeaderCorrelationID); correlationID != "" {
		w.Header().Set(HeaderCorrelationID, correlationID)
	}
}

func (h *DefaultErrorHandler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, response dto.ErrorResponse) {
	h.preserveCorrelationID(w, r)
	writeJSONOrFail(w, statusCode, response)
}
