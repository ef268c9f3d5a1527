package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/port/outbound"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 60 * time.Second

	// ProviderName identifies this adapter in logs and metrics.
	ProviderName = "openai"

	finishReasonContentFilter = "content_filter"
)

// ErrAPIKeyNotSet is returned when no API key is configured.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// ClientConfig holds the OpenAI adapter settings.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// Client is an outbound.Augmenter backed by the chat completions API.
// The SDK's own retry loop is disabled.
type Client struct {
	client      openai.Client
	model       string
	timeout     time.Duration
	temperature float64
}

// NewClient creates a chat completions client.
func NewClient(config ClientConfig) (*Client, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrAPIKeyNotSet
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(config.APIKey)),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Client{
		client:      openai.NewClient(opts...),
		model:       model,
		timeout:     timeout,
		temperature: config.Temperature,
	}, nil
}

// ModelName returns the configured model.
func (c *Client) ModelName() string {
	return c.model
}

// Provider implements outbound.Augmenter.
func (c *Client) Provider() string {
	return ProviderName
}

// Transform sends one item through the chat completions endpoint.
func (c *Client) Transform(ctx context.Context, req outbound.TransformRequest) (*outbound.TransformResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, &outbound.AugmentationError{
			Code:    "empty_content",
			Type:    outbound.ErrorTypeValidation,
			Message: "item content cannot be empty",
		}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.Instruction != "" {
		messages = append(messages, openai.SystemMessage(req.Instruction))
	}
	messages = append(messages, openai.UserMessage(req.Content))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		augErr := classifyError(err)
		logFailure(ctx, req.ItemID, augErr, time.Since(start))
		return nil, augErr
	}

	if len(completion.Choices) == 0 {
		return nil, &outbound.AugmentationError{Code: "no_choices", Type: outbound.ErrorTypeContent, Message: "no content generated"}
	}
	choice := completion.Choices[0]
	if choice.FinishReason == finishReasonContentFilter {
		return nil, &outbound.AugmentationError{
			Code:    "content_filtered",
			Type:    outbound.ErrorTypeContent,
			Message: "no content generated: finish reason content_filter",
		}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, &outbound.AugmentationError{Code: "empty_output", Type: outbound.ErrorTypeContent, Message: "no content generated"}
	}

	slogger.Debug(ctx, "OpenAI completion finished", slogger.Fields{
		"item_id":       req.ItemID,
		"model":         completion.Model,
		"duration_ms":   time.Since(start).Milliseconds(),
		"finish_reason": choice.FinishReason,
	})

	return &outbound.TransformResult{
		Text:         choice.Message.Content,
		Model:        completion.Model,
		FinishReason: choice.FinishReason,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

// classifyError maps SDK errors onto AugmentationError. Every 429, including
// insufficient_quota, is a quota error.
func classifyError(err error) *outbound.AugmentationError {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return &outbound.AugmentationError{
			Code:    "network_error",
			Type:    outbound.ErrorTypeNetwork,
			Message: "OpenAI request failed",
			Cause:   err,
		}
	}

	augErr := &outbound.AugmentationError{
		Code:       apiErr.Code,
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Message,
	}
	if augErr.Message == "" {
		augErr.Message = fmt.Sprintf("OpenAI API error (%s)", apiErr.Type)
	}
	if apiErr.Response != nil {
		augErr.RequestID = apiErr.Response.Header.Get("X-Request-Id")
	}

	switch {
	case apiErr.StatusCode == 429:
		augErr.Type = outbound.ErrorTypeQuota
		if apiErr.Response != nil {
			augErr.RetryAfter = outbound.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"), time.Now())
		}
	case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
		augErr.Type = outbound.ErrorTypeAuth
	case apiErr.StatusCode == 400 || apiErr.StatusCode == 422:
		augErr.Type = outbound.ErrorTypeValidation
	case apiErr.StatusCode >= 500:
		augErr.Type = outbound.ErrorTypeServer
	default:
		augErr.Type = outbound.ErrorTypeHTTP
	}
	if augErr.Code == "" {
		augErr.Code = augErr.Type
	}
	return augErr
}

func logFailure(ctx context.Context, itemID string, augErr *outbound.AugmentationError, duration time.Duration) {
	fields := slogger.Fields{
		"item_id":     itemID,
		"error_type":  augErr.Type,
		"error_code":  augErr.Code,
		"status_code": augErr.StatusCode,
		"duration_ms": duration.Milliseconds(),
	}
	if augErr.IsThrottled() {
		slogger.Warn(ctx, "OpenAI completion throttled", fields)
		return
	}
	slogger.ErrorWithError(ctx, augErr, "OpenAI completion failed", fields)
}

var _ outbound.Augmenter = (*Client)(nil)
