package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"contentaugment/internal/application/common"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/dto"
	"contentaugment/internal/port/inbound"

	"github.com/google/uuid"
)

// maxSyncBodyBytes bounds POST /api/v1/augment bodies. Synchronous batches
// are capped in items, so anything larger is rejected before decoding.
// Async submissions are not size-limited.
const maxSyncBodyBytes = 8 << 20

// JobHandler handles HTTP requests for augmentation jobs and the synchronous path.
type JobHandler struct {
	jobService   inbound.JobService
	syncService  inbound.SyncAugmentService
	errorHandler ErrorHandler
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService inbound.JobService, syncService inbound.SyncAugmentService, errorHandler ErrorHandler) *JobHandler {
	return &JobHandler{
		jobService:   jobService,
		syncService:  syncService,
		errorHandler: errorHandler,
	}
}

// SubmitJob handles POST /api/v1/jobs.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var request dto.SubmitJobRequest
	if err := decodeJSON(r.Body, &request); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	response, err := h.jobService.SubmitJob(r.Context(), request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	writeJSONOrFail(w, http.StatusCreated, response)
}

// AugmentSync handles POST /api/v1/augment.
func (h *JobHandler) AugmentSync(w http.ResponseWriter, r *http.Request) {
	var request dto.SyncAugmentRequest
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxSyncBodyBytes), &request); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	slogger.Info(r.Context(), "Synchronous augmentation requested", slogger.Fields2(
		"item_count", len(request.ItemIDs),
		"dry_run", request.DryRun,
	))

	response, err := h.syncService.AugmentSync(r.Context(), request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	writeJSONOrFail(w, http.StatusOK, response)
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, common.NewValidationErrorWithValue("id", "invalid UUID format", r.PathValue("id")))
		return
	}

	response, err := h.jobService.GetJob(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	writeJSONOrFail(w, http.StatusOK, response)
}

// ListJobs handles GET /api/v1/jobs.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query, err := parseJobListQuery(r)
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	response, err := h.jobService.ListJobs(r.Context(), query)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	writeJSONOrFail(w, http.StatusOK, response)
}

func parseJobListQuery(r *http.Request) (dto.JobListQuery, error) {
	query := dto.DefaultJobListQuery()
	values := r.URL.Query()

	query.Status = values.Get("status")
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return query, common.NewValidationErrorWithValue("limit", "limit must be a positive integer", raw)
		}
		query.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return query, common.NewValidationErrorWithValue("offset", "offset must be a non-negative integer", raw)
		}
		query.Offset = offset
	}
	return query, nil
}

func decodeJSON(body io.Reader, dst interface{}) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON request body: %w", err)
	}
	return nil
}
