package commands_test

import (
	"bytes"
	"contentaugment/internal/application/dto"
	"contentaugment/internal/client"
	"contentaugment/internal/client/commands"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *client.Error   `json:"error"`
}

func runCommand(t *testing.T, serverURL string, args ...string) (envelope, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := commands.NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--api-url", serverURL}, args...))
	require.NoError(t, cmd.Execute())

	var env envelope
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &env), stdout.String())
	return env, stderr.String()
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := commands.NewRootCmd()
	names := make([]string, 0)
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"health", "jobs", "augment"})
	assert.NotNil(t, root.PersistentFlags().Lookup("api-url"))
	assert.NotNil(t, root.PersistentFlags().Lookup("timeout"))
}

func TestHealthCmd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, dto.HealthResponse{Status: "healthy", Version: "dev"})
	}))
	defer server.Close()

	env, _ := runCommand(t, server.URL, "health")
	require.True(t, env.Success)

	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "healthy", health.Status)
}

func TestHealthCmd_InvalidURL(t *testing.T) {
	t.Parallel()

	env, _ := runCommand(t, "localhost:8080", "health")
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, client.ErrCodeInvalidConfig, env.Error.Code)
}

func TestJobsSubmitCmd_Validation(t *testing.T) {
	t.Parallel()

	env, _ := runCommand(t, "http://127.0.0.1:1", "jobs", "submit", "--op", "add_links")
	require.NotNil(t, env.Error)
	assert.Equal(t, client.ErrCodeInvalidArgument, env.Error.Code)

	env, _ = runCommand(t, "http://127.0.0.1:1", "jobs", "submit", "item-1")
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "--op")
}

func TestJobsSubmitCmd_Wait(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/jobs":
			var req dto.SubmitJobRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, "add_links", req.OperationType)
			assert.Equal(t, []string{"a", "b"}, req.ItemIDs)
			respond(w, http.StatusCreated, dto.SubmitJobResponse{JobID: jobID})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/jobs/"+jobID.String():
			status := "processing"
			if polls.Add(1) >= 2 {
				status = "completed"
			}
			respond(w, http.StatusOK, dto.JobResponse{ID: jobID, Status: status, TotalItems: 2, ProcessedItems: 2})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	env, progress := runCommand(t, server.URL,
		"jobs", "submit", "--op", "add_links", "a", "b", "--wait", "--poll-interval", "1ms")
	require.True(t, env.Success, string(env.Data))

	var job dto.JobResponse
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, 1, strings.Count(progress, "\n"))
}

func TestJobsSubmitCmd_WaitJobFailed(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	reason := "job timed out: no progress since 2026-01-01T00:00:00Z"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			respond(w, http.StatusCreated, dto.SubmitJobResponse{JobID: jobID})
			return
		}
		respond(w, http.StatusOK, dto.JobResponse{ID: jobID, Status: "failed", ErrorMessage: &reason})
	}))
	defer server.Close()

	env, _ := runCommand(t, server.URL, "jobs", "submit", "--op", "add_links", "a", "--wait")
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, client.ErrCodeJobFailed, env.Error.Code)
	assert.Contains(t, env.Error.Message, reason)
}

func TestJobsGetCmd(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/jobs/"+jobID.String() {
			respond(w, http.StatusOK, dto.JobResponse{ID: jobID, Status: "queued"})
			return
		}
		respond(w, http.StatusNotFound, dto.ErrorResponse{Error: "JOB_NOT_FOUND", Message: "job not found"})
	}))
	defer server.Close()

	env, _ := runCommand(t, server.URL, "jobs", "get", jobID.String())
	require.True(t, env.Success)

	env, _ = runCommand(t, server.URL, "jobs", "get", uuid.NewString())
	require.NotNil(t, env.Error)
	assert.Equal(t, client.ErrCodeNotFound, env.Error.Code)

	env, _ = runCommand(t, server.URL, "jobs", "get", "not-a-uuid")
	require.NotNil(t, env.Error)
	assert.Equal(t, client.ErrCodeInvalidArgument, env.Error.Code)
}

func TestJobsListCmd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "failed", r.URL.Query().Get("status"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		respond(w, http.StatusOK, dto.JobListResponse{Pagination: dto.PaginationResponse{Limit: 5}})
	}))
	defer server.Close()

	env, _ := runCommand(t, server.URL, "jobs", "list", "--status", "failed", "--limit", "5")
	require.True(t, env.Success)

	env, _ = runCommand(t, server.URL, "jobs", "list", "--limit", "500")
	require.NotNil(t, env.Error)
	assert.Equal(t, client.ErrCodeInvalidArgument, env.Error.Code)
}

func TestAugmentCmd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.SyncAugmentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.ItemIDs) > 1 {
			w.Header().Set("Retry-After", "60")
			respond(w, http.StatusTooManyRequests, dto.ErrorResponse{Error: "PROVIDER_THROTTLED", Message: "throttled"})
			return
		}
		assert.True(t, req.DryRun)
		respond(w, http.StatusOK, dto.SyncAugmentResponse{
			Success: true,
			DryRun:  true,
			Summary: dto.SyncSummary{Total: 1, Processed: 1, Previewed: 1},
		})
	}))
	defer server.Close()

	env, _ := runCommand(t, server.URL, "augment", "--dry-run", "only-one")
	require.True(t, env.Success)

	env, _ = runCommand(t, server.URL, "augment", "--dry-run", "a", "b")
	require.NotNil(t, env.Error)
	assert.Equal(t, client.ErrCodeThrottled, env.Error.Code)
}
