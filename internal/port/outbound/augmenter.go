package outbound

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contentaugment/internal/domain/errors/domain"
)

// Augmenter calls the external generation service for a single item.
// Implementations never retry.
type Augmenter interface {
	Transform(ctx context.Context, req TransformRequest) (*TransformResult, error)
	Provider() string
}

// TransformRequest carries the item text and the operation instruction.
type TransformRequest struct {
	ItemID      string
	Content     string
	Instruction string
}

// TransformResult is the raw provider output for one item.
type TransformResult struct {
	Text         string
	Model        string
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// Augmentation error types.
const (
	ErrorTypeQuota      = "quota"
	ErrorTypeAuth       = "auth"
	ErrorTypeValidation = "validation"
	ErrorTypeServer     = "server"
	ErrorTypeNetwork    = "network"
	ErrorTypeContent    = "content"
	ErrorTypeHTTP       = "http"
)

// AugmentationError represents a classified provider failure.
type AugmentationError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Type       string        `json:"type"`
	StatusCode int           `json:"status_code,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Cause      error         `json:"-"`
}

// Error implements the error interface.
func (e *AugmentationError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *AugmentationError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, domain.ErrProviderThrottled) identify rate limit and quota failures.
func (e *AugmentationError) Is(target error) bool {
	return target == domain.ErrProviderThrottled && e.IsThrottled()
}

// IsThrottled returns whether the provider signalled rate limiting or quota exhaustion.
func (e *AugmentationError) IsThrottled() bool {
	return e.Type == ErrorTypeQuota
}

// ParseRetryAfter reads a Retry-After header given either as delay seconds or
// as an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
