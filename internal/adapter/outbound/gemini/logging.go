package gemini

import (
	"context"
	"time"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
)

// Error severity levels.
const (
	ErrorSeverityLow    = "low"
	ErrorSeverityMedium = "medium"
	ErrorSeverityHigh   = "high"
)

// LogTransformRequest logs an outgoing generate call and returns its request ID.
func (c *Client) LogTransformRequest(ctx context.Context, request outbound.TransformRequest) string {
	requestID := uuid.NewString()

	slogger.Debug(ctx, "Gemini generate request initiated", slogger.Fields{
		"request_id":         requestID,
		"item_id":            request.ItemID,
		"model":              c.config.Model,
		"content_length":     len(request.Content),
		"instruction_length": len(request.Instruction),
		"client_config": slogger.Fields2(
			"temperature", c.config.Temperature,
			"timeout_seconds", c.config.Timeout.Seconds(),
		),
	})
	return requestID
}

// LogTransformResponse logs a successful generate call.
func (c *Client) LogTransformResponse(
	ctx context.Context,
	requestID string,
	result *outbound.TransformResult,
	duration time.Duration,
) {
	slogger.Debug(ctx, "Gemini generate request completed", slogger.Fields{
		"request_id":    requestID,
		"model":         result.Model,
		"duration_ms":   duration.Milliseconds(),
		"output_length": len(result.Text),
		"finish_reason": result.FinishReason,
		"tokens": slogger.Fields2(
			"input", result.InputTokens,
			"output", result.OutputTokens,
		),
	})
}

// LogTransformError logs a failed generate call with its severity.
func (c *Client) LogTransformError(
	ctx context.Context,
	requestID string,
	augErr *outbound.AugmentationError,
	duration time.Duration,
) {
	fields := slogger.Fields{
		"request_id":    requestID,
		"error_type":    augErr.Type,
		"error_code":    augErr.Code,
		"error_message": augErr.Message,
		"status_code":   augErr.StatusCode,
		"duration_ms":   duration.Milliseconds(),
		"severity":      determineErrorSeverity(augErr),
	}
	if augErr.Cause != nil {
		fields["underlying_error"] = augErr.Cause.Error()
	}
	if augErr.RetryAfter > 0 {
		fields["retry_after_seconds"] = augErr.RetryAfter.Seconds()
	}
	if augErr.RequestID != "" {
		fields["api_request_id"] = augErr.RequestID
	}

	if augErr.IsThrottled() {
		slogger.Warn(ctx, "Gemini generate request throttled", fields)
		return
	}
	slogger.Error(ctx, "Gemini generate request failed", fields)
}

func determineErrorSeverity(err *outbound.AugmentationError) string {
	switch err.Type {
	case outbound.ErrorTypeAuth, outbound.ErrorTypeServer:
		return ErrorSeverityHigh
	case outbound.ErrorTypeValidation, outbound.ErrorTypeContent:
		return ErrorSeverityLow
	default:
		return ErrorSeverityMedium
	}
}
