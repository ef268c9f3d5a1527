package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/domain/valueobject"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, operation_type, item_ids, options, status,
	total_items, processed_items, successful_items, failed_items, skipped_items,
	results, error_message, claim_token, requeue_count, available_at,
	created_at, started_at, completed_at, updated_at`

// PostgreSQLAugmentationJobRepository implements the AugmentationJobRepository interface
type PostgreSQLAugmentationJobRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLAugmentationJobRepository creates a new PostgreSQL augmentation job repository
func NewPostgreSQLAugmentationJobRepository(pool *pgxpool.Pool) *PostgreSQLAugmentationJobRepository {
	return &PostgreSQLAugmentationJobRepository{
		pool: pool,
	}
}

// Save inserts a new job row.
func (r *PostgreSQLAugmentationJobRepository) Save(ctx context.Context, job *entity.AugmentationJob) error {
	if job == nil {
		return ErrInvalidArgument
	}

	options, err := json.Marshal(job.Options())
	if err != nil {
		return fmt.Errorf("marshal job options: %w", err)
	}
	results, err := json.Marshal(job.Results())
	if err != nil {
		return fmt.Errorf("marshal job results: %w", err)
	}

	query := `
		INSERT INTO contentaugment.augmentation_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	qi := queryFor(ctx, r.pool)
	_, err = qi.Exec(ctx, query,
		job.ID(),
		job.OperationType(),
		job.ItemIDs(),
		string(options),
		job.Status().String(),
		job.TotalItems(),
		job.ProcessedItems(),
		job.SuccessfulItems(),
		job.FailedItems(),
		job.SkippedItems(),
		string(results),
		job.ErrorMessage(),
		job.ClaimToken(),
		job.RequeueCount(),
		job.AvailableAt(),
		job.CreatedAt(),
		job.StartedAt(),
		job.CompletedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return WrapError(err, "save augmentation job")
	}
	return nil
}

// FindByID finds a job by its ID. It returns nil, nil when no row exists.
func (r *PostgreSQLAugmentationJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.AugmentationJob, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := `SELECT ` + jobColumns + ` FROM contentaugment.augmentation_jobs WHERE id = $1`

	qi := queryFor(ctx, r.pool)
	job, err := scanJob(qi.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, nil //nolint:nilnil // absence is not an error for lookups
		}
		return nil, WrapError(err, "find augmentation job by ID")
	}
	return job, nil
}

// FindAll lists jobs newest first.
func (r *PostgreSQLAugmentationJobRepository) FindAll(
	ctx context.Context,
	filters outbound.AugmentationJobFilters,
) ([]*entity.AugmentationJob, int, error) {
	if filters.Limit <= 0 || filters.Offset < 0 {
		return nil, 0, ErrInvalidArgument
	}

	var where []string
	var args []interface{}
	if filters.Status != nil {
		args = append(args, filters.Status.String())
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	qi := queryFor(ctx, r.pool)

	var total int
	countQuery := `SELECT COUNT(*) FROM contentaugment.augmentation_jobs` + whereClause
	if err := qi.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, WrapError(err, "count augmentation jobs")
	}

	args = append(args, filters.Limit, filters.Offset)
	listQuery := fmt.Sprintf(
		`SELECT %s FROM contentaugment.augmentation_jobs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns, whereClause, len(args)-1, len(args),
	)

	rows, err := qi.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, WrapError(err, "list augmentation jobs")
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, 0, WrapError(err, "scan augmentation jobs")
	}
	return jobs, total, nil
}

// ClaimNextQueued moves the oldest claimable queued job to processing in one
// statement. SKIP LOCKED keeps concurrent claimers from ever selecting the same row.
func (r *PostgreSQLAugmentationJobRepository) ClaimNextQueued(
	ctx context.Context,
	token uuid.UUID,
) (*entity.AugmentationJob, error) {
	query := `
		UPDATE contentaugment.augmentation_jobs
		SET status = 'processing',
			claim_token = $1,
			started_at = COALESCE(started_at, now()),
			updated_at = now()
		WHERE id = (
			SELECT id FROM contentaugment.augmentation_jobs
			WHERE status = 'queued' AND available_at <= now()
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'queued'
		RETURNING ` + jobColumns

	qi := queryFor(ctx, r.pool)
	job, err := scanJob(qi.QueryRow(ctx, query, token))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, nil //nolint:nilnil // nothing claimable
		}
		return nil, WrapError(err, "claim next queued job")
	}
	return job, nil
}

// AppendOutcome appends the outcome and bumps the counters in one update, so a
// reader never sees a counter without its results entry.
func (r *PostgreSQLAugmentationJobRepository) AppendOutcome(
	ctx context.Context,
	jobID, token uuid.UUID,
	outcome entity.ItemOutcome,
) error {
	entry, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal item outcome: %w", err)
	}

	query := `
		UPDATE contentaugment.augmentation_jobs
		SET results = results || jsonb_build_array($3::jsonb),
			processed_items = processed_items + 1,
			successful_items = successful_items + CASE WHEN $4::text IN ('updated', 'preview') THEN 1 ELSE 0 END,
			failed_items = failed_items + CASE WHEN $4::text = 'failed' THEN 1 ELSE 0 END,
			skipped_items = skipped_items + CASE WHEN $4::text = 'skipped' THEN 1 ELSE 0 END,
			updated_at = now()
		WHERE id = $1
			AND claim_token = $2
			AND status = 'processing'
			AND processed_items < total_items
			AND item_ids[processed_items + 1] = $5`

	qi := queryFor(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, jobID, token, string(entry), outcome.Status.String(), outcome.ItemID)
	if err != nil {
		return WrapError(err, "append item outcome")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("append outcome for item %s on job %s: %w", outcome.ItemID, jobID, domain.ErrJobClaimLost)
	}
	return nil
}

// MarkCompleted finalizes a job held by token.
func (r *PostgreSQLAugmentationJobRepository) MarkCompleted(ctx context.Context, jobID, token uuid.UUID) error {
	query := `
		UPDATE contentaugment.augmentation_jobs
		SET status = 'completed',
			completed_at = now(),
			updated_at = now(),
			claim_token = NULL,
			error_message = NULL
		WHERE id = $1 AND claim_token = $2 AND status = 'processing'`

	return r.execFenced(ctx, "mark job completed", jobID, query, jobID, token)
}

// MarkFailed finalizes a job held by token with an error message. Recorded
// outcomes and counters are left as they are.
func (r *PostgreSQLAugmentationJobRepository) MarkFailed(ctx context.Context, jobID, token uuid.UUID, message string) error {
	query := `
		UPDATE contentaugment.augmentation_jobs
		SET status = 'failed',
			completed_at = now(),
			updated_at = now(),
			claim_token = NULL,
			error_message = $3
		WHERE id = $1 AND claim_token = $2 AND status = 'processing'`

	return r.execFenced(ctx, "mark job failed", jobID, query, jobID, token, message)
}

// Requeue releases a job held by token back to the queue.
func (r *PostgreSQLAugmentationJobRepository) Requeue(
	ctx context.Context,
	jobID, token uuid.UUID,
	notBefore time.Time,
	reason string,
) error {
	query := `
		UPDATE contentaugment.augmentation_jobs
		SET status = 'queued',
			claim_token = NULL,
			requeue_count = requeue_count + 1,
			available_at = $3,
			error_message = NULLIF($4, ''),
			updated_at = now()
		WHERE id = $1 AND claim_token = $2 AND status = 'processing'`

	return r.execFenced(ctx, "requeue job", jobID, query, jobID, token, notBefore, reason)
}

// Release hands an interrupted job back to the queue without touching requeue_count.
func (r *PostgreSQLAugmentationJobRepository) Release(ctx context.Context, jobID, token uuid.UUID) error {
	query := `
		UPDATE contentaugment.augmentation_jobs
		SET status = 'queued',
			claim_token = NULL,
			available_at = now(),
			updated_at = now()
		WHERE id = $1 AND claim_token = $2 AND status = 'processing'`

	return r.execFenced(ctx, "release job", jobID, query, jobID, token)
}

// FindStale returns processing jobs whose last progress write is older than staleBefore.
func (r *PostgreSQLAugmentationJobRepository) FindStale(
	ctx context.Context,
	staleBefore time.Time,
	limit int,
) ([]*entity.AugmentationJob, error) {
	if limit <= 0 {
		return nil, ErrInvalidArgument
	}

	query := `SELECT ` + jobColumns + `
		FROM contentaugment.augmentation_jobs
		WHERE status = 'processing' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`

	qi := queryFor(ctx, r.pool)
	rows, err := qi.Query(ctx, query, staleBefore, limit)
	if err != nil {
		return nil, WrapError(err, "find stale jobs")
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, WrapError(err, "scan stale jobs")
	}
	return jobs, nil
}

// ReclaimStale requeues or fails a stale job if it is still held by the same
// token and has made no progress since staleBefore.
func (r *PostgreSQLAugmentationJobRepository) ReclaimStale(ctx context.Context, req outbound.ReclaimRequest) (bool, error) {
	var query string
	var args []interface{}
	if req.Requeue {
		query = `
			UPDATE contentaugment.augmentation_jobs
			SET status = 'queued',
				claim_token = NULL,
				requeue_count = requeue_count + 1,
				available_at = $4,
				error_message = NULLIF($5, ''),
				updated_at = now()
			WHERE id = $1 AND claim_token = $2 AND status = 'processing' AND updated_at < $3`
		args = []interface{}{req.JobID, req.Token, req.StaleBefore, req.NotBefore, req.Reason}
	} else {
		query = `
			UPDATE contentaugment.augmentation_jobs
			SET status = 'failed',
				claim_token = NULL,
				completed_at = now(),
				error_message = $4,
				updated_at = now()
			WHERE id = $1 AND claim_token = $2 AND status = 'processing' AND updated_at < $3`
		args = []interface{}{req.JobID, req.Token, req.StaleBefore, req.Reason}
	}

	qi := queryFor(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, args...)
	if err != nil {
		return false, WrapError(err, "reclaim stale job")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgreSQLAugmentationJobRepository) execFenced(
	ctx context.Context,
	operation string,
	jobID uuid.UUID,
	query string,
	args ...interface{},
) error {
	qi := queryFor(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, args...)
	if err != nil {
		return WrapError(err, operation)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", operation, jobID, domain.ErrJobClaimLost)
	}
	return nil
}

func scanJobs(rows pgx.Rows) ([]*entity.AugmentationJob, error) {
	var jobs []*entity.AugmentationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*entity.AugmentationJob, error) {
	var state entity.AugmentationJobState
	var statusStr string
	var optionsRaw, resultsRaw []byte

	err := row.Scan(
		&state.ID, &state.OperationType, &state.ItemIDs, &optionsRaw, &statusStr,
		&state.TotalItems, &state.ProcessedItems, &state.SuccessfulItems, &state.FailedItems, &state.SkippedItems,
		&resultsRaw, &state.ErrorMessage, &state.ClaimToken, &state.RequeueCount, &state.AvailableAt,
		&state.CreatedAt, &state.StartedAt, &state.CompletedAt, &state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	status, err := valueobject.NewJobStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("invalid job status in database: %w", err)
	}
	state.Status = status

	if len(optionsRaw) > 0 {
		if err := json.Unmarshal(optionsRaw, &state.Options); err != nil {
			return nil, fmt.Errorf("decode job options: %w", err)
		}
	}
	if len(resultsRaw) > 0 {
		if err := json.Unmarshal(resultsRaw, &state.Results); err != nil {
			return nil, fmt.Errorf("decode job results: %w", err)
		}
	}

	return entity.RestoreAugmentationJob(state), nil
}
