package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/port/outbound"
)

const statusResourceExhausted = "RESOURCE_EXHAUSTED"

// HandleHTTPError converts a non-2xx response into an AugmentationError.
// 429 and RESOURCE_EXHAUSTED are classified as quota so callers can back off.
func (c *Client) HandleHTTPError(ctx context.Context, response *http.Response) *outbound.AugmentationError {
	body, readErr := io.ReadAll(response.Body)
	defer closeBody(ctx, response.Body)

	var errorResp ErrorResponse
	var apiMessage, apiStatus string
	if readErr == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &errorResp); err == nil {
			apiMessage = errorResp.Error.Message
			apiStatus = errorResp.Error.Status
		}
	}
	if apiMessage == "" {
		apiMessage = http.StatusText(response.StatusCode)
	}

	slogger.Error(ctx, "HTTP error received from Gemini API", slogger.Fields{
		"status_code":     response.StatusCode,
		"api_status":      apiStatus,
		"response_length": len(body),
		"api_message":     apiMessage,
	})

	augErr := &outbound.AugmentationError{
		StatusCode: response.StatusCode,
		Message:    apiMessage,
		RequestID:  response.Header.Get("X-Request-Id"),
	}

	switch {
	case response.StatusCode == http.StatusTooManyRequests || apiStatus == statusResourceExhausted:
		augErr.Code = "rate_limit_exceeded"
		augErr.Type = outbound.ErrorTypeQuota
		augErr.RetryAfter = outbound.ParseRetryAfter(response.Header.Get("Retry-After"), time.Now())
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		augErr.Code = "invalid_api_key"
		augErr.Type = outbound.ErrorTypeAuth
	case response.StatusCode == http.StatusBadRequest:
		augErr.Code = "invalid_request"
		augErr.Type = outbound.ErrorTypeValidation
	case response.StatusCode >= http.StatusInternalServerError:
		augErr.Code = "server_error"
		augErr.Type = outbound.ErrorTypeServer
	default:
		augErr.Code = "http_error"
		augErr.Type = outbound.ErrorTypeHTTP
	}
	return augErr
}

// HandleNetworkError classifies transport failures.
func (c *Client) HandleNetworkError(ctx context.Context, err error) *outbound.AugmentationError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &outbound.AugmentationError{
			Code:    "request_canceled",
			Type:    outbound.ErrorTypeNetwork,
			Message: "request was canceled",
			Cause:   err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &outbound.AugmentationError{
			Code:    "connection_timeout",
			Type:    outbound.ErrorTypeNetwork,
			Message: "connection timeout",
			Cause:   err,
		}
	}

	if strings.Contains(err.Error(), "connection refused") {
		return &outbound.AugmentationError{
			Code:    "connection_refused",
			Type:    outbound.ErrorTypeNetwork,
			Message: "connection refused",
			Cause:   err,
		}
	}

	return &outbound.AugmentationError{
		Code:    "network_error",
		Type:    outbound.ErrorTypeNetwork,
		Message: fmt.Sprintf("request to %s failed", c.config.BaseURL),
		Cause:   err,
	}
}
