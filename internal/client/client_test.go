package client_test

import (
	"contentaugment/internal/application/dto"
	"contentaugment/internal/client"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *client.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := client.NewClient(&client.Config{APIURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	c, err := client.NewClient(nil)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "config cannot be nil")

	_, err = client.NewClient(&client.Config{APIURL: "ftp://localhost", Timeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http:// or https:// scheme")
}

func TestClient_Health(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, "contentaugment-client/1.0", r.Header.Get("User-Agent"))
		writeJSON(t, w, http.StatusOK, dto.HealthResponse{Status: "healthy", Version: "1.2.3"})
	})

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.2.3", health.Version)
}

func TestClient_SubmitJob(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/jobs", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req dto.SubmitJobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "add_links", req.OperationType)
		assert.Equal(t, []string{"a", "b"}, req.ItemIDs)
		assert.True(t, req.Options.DryRun)

		writeJSON(t, w, http.StatusCreated, dto.SubmitJobResponse{JobID: jobID})
	})

	resp, err := c.SubmitJob(context.Background(), dto.SubmitJobRequest{
		OperationType: "add_links",
		ItemIDs:       []string{"a", "b"},
		Options:       dto.JobOptions{DryRun: true},
	})
	require.NoError(t, err)
	assert.Equal(t, jobID, resp.JobID)
}

func TestClient_GetJob_NotFound(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs/"+jobID.String(), r.URL.Path)
		writeJSON(t, w, http.StatusNotFound, dto.ErrorResponse{Error: "JOB_NOT_FOUND", Message: "job not found"})
	})

	job, err := c.GetJob(context.Background(), jobID)
	require.Error(t, err)
	assert.Nil(t, job)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "JOB_NOT_FOUND", apiErr.Code)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_ListJobs_EncodesQuery(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs", r.URL.Path)
		assert.Equal(t, "failed", r.URL.Query().Get("status"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		writeJSON(t, w, http.StatusOK, dto.JobListResponse{
			Jobs:       []dto.JobResponse{{ID: uuid.New(), Status: "failed"}},
			Pagination: dto.PaginationResponse{Limit: 5, Offset: 10, Total: 11},
		})
	})

	list, err := c.ListJobs(context.Background(), dto.JobListQuery{Status: "failed", Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, 11, list.Pagination.Total)
}

func TestClient_AugmentSync_Throttled(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		writeJSON(t, w, http.StatusTooManyRequests, dto.ErrorResponse{Error: "PROVIDER_THROTTLED", Message: "slow down"})
	})

	_, err := c.AugmentSync(context.Background(), dto.SyncAugmentRequest{ItemIDs: []string{"x"}})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "30", apiErr.RetryAfter)

	code, details := client.Classify(err)
	assert.Equal(t, client.ErrCodeThrottled, code)
	assert.Equal(t, map[string]string{"server_code": "PROVIDER_THROTTLED", "retry_after": "30"}, details)
}

func TestClient_AugmentSync_Success(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/augment", r.URL.Path)
		writeJSON(t, w, http.StatusOK, dto.SyncAugmentResponse{
			Success: true,
			Summary: dto.SyncSummary{Total: 1, Processed: 1, Updated: 1},
			Results: []dto.ItemOutcome{{ItemID: "x", Status: "updated"}},
		})
	})

	resp, err := c.AugmentSync(context.Background(), dto.SyncAugmentRequest{ItemIDs: []string{"x"}})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Summary.Updated)
}
