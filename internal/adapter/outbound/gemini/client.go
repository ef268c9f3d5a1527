package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/port/outbound"
)

const (
	// DefaultModel is the default Gemini generation model.
	DefaultModel = "gemini-2.0-flash"

	// DefaultBaseURL is the public Generative Language API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// ProviderName identifies this adapter in logs and metrics.
	ProviderName = "gemini"

	finishReasonStop = "STOP"
)

// ClientConfig holds the configuration for the Gemini API client.
type ClientConfig struct {
	APIKey          string        `json:"api_key"`
	BaseURL         string        `json:"base_url"`
	Model           string        `json:"model"`
	Timeout         time.Duration `json:"timeout"`
	Temperature     float64       `json:"temperature"`
	MaxOutputTokens int           `json:"max_output_tokens"`
	UserAgent       string        `json:"user_agent"`
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("API key cannot be empty or whitespace")
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil || !strings.HasPrefix(c.BaseURL, "http") {
			return errors.New("invalid base URL")
		}
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	if c.MaxOutputTokens < 0 {
		return errors.New("max output tokens cannot be negative")
	}
	return nil
}

// Client calls the Gemini generateContent endpoint. It never retries; a
// throttled response is surfaced to the caller as a quota error.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new Gemini API client with the provided configuration.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	finalConfig := applyConfigDefaults(config)
	return &Client{
		config:     finalConfig,
		httpClient: createHTTPClient(finalConfig.Timeout),
	}, nil
}

func applyConfigDefaults(config *ClientConfig) *ClientConfig {
	finalConfig := *config
	finalConfig.APIKey = strings.TrimSpace(config.APIKey)

	if finalConfig.BaseURL == "" {
		finalConfig.BaseURL = DefaultBaseURL
	}
	if finalConfig.Model == "" {
		finalConfig.Model = DefaultModel
	}
	if finalConfig.Timeout == 0 {
		finalConfig.Timeout = 60 * time.Second
	}
	if finalConfig.UserAgent == "" {
		finalConfig.UserAgent = "ContentAugment-Gemini-Client/1.0.0"
	}
	return &finalConfig
}

// createHTTPClient creates an HTTP client with transport pooling and timeouts.
func createHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// GetConfig returns a copy of the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	configCopy := *c.config
	return &configCopy
}

// Provider implements outbound.Augmenter.
func (c *Client) Provider() string {
	return ProviderName
}

// CreateRequest creates an HTTP request with auth and JSON headers.
func (c *Client) CreateRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	if method == "" {
		return nil, errors.New("HTTP method cannot be empty")
	}
	if endpoint == "" {
		return nil, errors.New("endpoint cannot be empty")
	}

	fullURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	if _, err := url.Parse(fullURL); err != nil {
		return nil, fmt.Errorf("invalid URL constructed: %s, error: %w", fullURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("X-Goog-Api-Key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	return req, nil
}

// Transform sends the item content with the operation instruction as system
// instruction and returns the first candidate's text.
func (c *Client) Transform(ctx context.Context, request outbound.TransformRequest) (*outbound.TransformResult, error) {
	if strings.TrimSpace(request.Content) == "" {
		return nil, &outbound.AugmentationError{
			Code:    "empty_content",
			Type:    outbound.ErrorTypeValidation,
			Message: "item content cannot be empty",
		}
	}

	body, err := json.Marshal(c.buildRequest(request))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	requestID := c.LogTransformRequest(ctx, request)
	start := time.Now()

	endpoint := fmt.Sprintf("models/%s:generateContent", c.config.Model)
	req, err := c.CreateRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		augErr := c.HandleNetworkError(ctx, err)
		c.LogTransformError(ctx, requestID, augErr, time.Since(start))
		return nil, augErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		augErr := c.HandleHTTPError(ctx, resp)
		c.LogTransformError(ctx, requestID, augErr, time.Since(start))
		return nil, augErr
	}

	result, err := c.decodeResponse(resp)
	if err != nil {
		var augErr *outbound.AugmentationError
		if errors.As(err, &augErr) {
			c.LogTransformError(ctx, requestID, augErr, time.Since(start))
		}
		return nil, err
	}

	c.LogTransformResponse(ctx, requestID, result, time.Since(start))
	return result, nil
}

func (c *Client) buildRequest(request outbound.TransformRequest) *GenerateContentRequest {
	genReq := &GenerateContentRequest{
		Contents: []Content{{
			Role:  "user",
			Parts: []Part{{Text: request.Content}},
		}},
		GenerationConfig: &GenerationConfig{
			MaxOutputTokens: c.config.MaxOutputTokens,
		},
	}
	if request.Instruction != "" {
		genReq.SystemInstruction = &Content{Parts: []Part{{Text: request.Instruction}}}
	}
	if c.config.Temperature > 0 {
		temperature := c.config.Temperature
		genReq.GenerationConfig.Temperature = &temperature
	}
	return genReq
}

func (c *Client) decodeResponse(resp *http.Response) (*outbound.TransformResult, error) {
	defer func() { _ = resp.Body.Close() }()

	var genResp GenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, &outbound.AugmentationError{
			Code:    "invalid_response",
			Type:    outbound.ErrorTypeServer,
			Message: "failed to decode generate response",
			Cause:   err,
		}
	}

	if len(genResp.Candidates) == 0 {
		message := "no content generated"
		if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
			message = fmt.Sprintf("no content generated: prompt blocked (%s)", genResp.PromptFeedback.BlockReason)
		}
		return nil, &outbound.AugmentationError{Code: "no_candidates", Type: outbound.ErrorTypeContent, Message: message}
	}

	candidate := genResp.Candidates[0]
	if candidate.FinishReason != "" && candidate.FinishReason != finishReasonStop {
		return nil, &outbound.AugmentationError{
			Code:    "unfinished_candidate",
			Type:    outbound.ErrorTypeContent,
			Message: fmt.Sprintf("no content generated: finish reason %s", candidate.FinishReason),
		}
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &outbound.AugmentationError{
			Code:    "empty_output",
			Type:    outbound.ErrorTypeContent,
			Message: "no content generated",
		}
	}

	result := &outbound.TransformResult{
		Text:         text.String(),
		Model:        c.config.Model,
		FinishReason: candidate.FinishReason,
	}
	if genResp.ModelVersion != "" {
		result.Model = genResp.ModelVersion
	}
	if genResp.UsageMetadata != nil {
		result.InputTokens = genResp.UsageMetadata.PromptTokenCount
		result.OutputTokens = genResp.UsageMetadata.CandidatesTokenCount
	}
	return result, nil
}

var _ outbound.Augmenter = (*Client)(nil)

func closeBody(ctx context.Context, body io.Closer) {
	if err := body.Close(); err != nil {
		slogger.Error(ctx, "Failed to close response body", slogger.Fields{
			"error": err.Error(),
		})
	}
}
