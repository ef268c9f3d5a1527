package client

import (
	"bytes"
	"contentaugment/internal/application/dto"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

const (
	// userAgent is the User-Agent header value sent with all API requests.
	userAgent = "contentaugment-client/1.0"

	// contentTypeJSON is the Content-Type header value for JSON requests.
	contentTypeJSON = "application/json"

	// API endpoint paths.
	pathHealth  = "/health"
	pathJobs    = "/api/v1/jobs"
	pathAugment = "/api/v1/augment"
)

// APIError is returned for any non-2xx response. Code and Message are taken
// from the server's error body when it carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
}

func (e *APIError) Error() string {
	base := fmt.Sprintf("API request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		return base + ": " + e.Message
	}
	return base
}

// Client provides methods for interacting with the content augmentation API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with the given configuration.
// Returns an error if the configuration is nil or invalid.
func NewClient(config *Config) (*Client, error) {
	return NewClientWithHTTPClient(config, nil)
}

// NewClientWithHTTPClient creates a new API client with the given configuration and HTTP client.
// If httpClient is nil, a default HTTP client with the configured timeout will be used.
func NewClientWithHTTPClient(config *Config, httpClient *http.Client) (*Client, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		baseURL:    config.APIURL,
		httpClient: httpClient,
	}, nil
}

// doRequest performs an HTTP request with the given parameters and decodes the response.
// If body is non-nil, it will be JSON-encoded and sent with Content-Type: application/json.
// If result is non-nil, the response body will be JSON-decoded into it.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
	}

	var body dto.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}

// Health performs a health check against the API server.
func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	var result dto.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, pathHealth, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitJob creates an asynchronous augmentation job and returns its id.
func (c *Client) SubmitJob(ctx context.Context, req dto.SubmitJobRequest) (*dto.SubmitJobResponse, error) {
	var result dto.SubmitJobResponse
	if err := c.doRequest(ctx, http.MethodPost, pathJobs, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob retrieves a job with its counters and per-item results.
func (c *Client) GetJob(ctx context.Context, id uuid.UUID) (*dto.JobResponse, error) {
	var result dto.JobResponse
	if err := c.doRequest(ctx, http.MethodGet, pathJobs+"/"+id.String(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListJobs retrieves jobs with optional status filter and pagination.
func (c *Client) ListJobs(ctx context.Context, query dto.JobListQuery) (*dto.JobListResponse, error) {
	params := url.Values{}
	if query.Limit > 0 {
		params.Add("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		params.Add("offset", strconv.Itoa(query.Offset))
	}
	if query.Status != "" {
		params.Add("status", query.Status)
	}

	path := pathJobs
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result dto.JobListResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AugmentSync runs a small batch inline and returns the per-item outcomes.
func (c *Client) AugmentSync(ctx context.Context, req dto.SyncAugmentRequest) (*dto.SyncAugmentResponse, error) {
	var result dto.SyncAugmentResponse
	if err := c.doRequest(ctx, http.MethodPost, pathAugment, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
