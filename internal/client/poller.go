package client

import (
	"contentaugment/internal/application/dto"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPollInterval is the default time between job status checks.
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxWait is the default ceiling on how long to wait for a job.
	DefaultMaxWait = 30 * time.Minute
)

// Job statuses as rendered by the API.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var (
	// ErrJobFailed is returned when the job reaches the failed status.
	ErrJobFailed = errors.New("augmentation job failed")

	// ErrPollTimeout is returned when MaxWait elapses before a terminal status.
	ErrPollTimeout = errors.New("polling timeout exceeded")
)

// PollerConfig configures a Poller. Zero values fall back to the defaults.
type PollerConfig struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// JobGetter is the subset of Client the poller needs.
type JobGetter interface {
	GetJob(ctx context.Context, id uuid.UUID) (*dto.JobResponse, error)
}

// Poller waits for an augmentation job to reach a terminal status.
type Poller struct {
	jobs     JobGetter
	interval time.Duration
	maxWait  time.Duration
}

// progressLine is written to the progress writer after each non-terminal poll.
type progressLine struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	JobStatus string `json:"job_status,omitempty"`
	Processed int    `json:"processed_items"`
	Total     int    `json:"total_items"`
	Elapsed   string `json:"elapsed"`
	PollCount int    `json:"poll_count"`
	LastError string `json:"last_error,omitempty"`
}

// NewPoller creates a Poller. Returns an error if jobs is nil.
func NewPoller(jobs JobGetter, config *PollerConfig) (*Poller, error) {
	if jobs == nil {
		return nil, errors.New("client cannot be nil")
	}

	p := &Poller{
		jobs:     jobs,
		interval: DefaultPollInterval,
		maxWait:  DefaultMaxWait,
	}
	if config != nil {
		if config.Interval > 0 {
			p.interval = config.Interval
		}
		if config.MaxWait > 0 {
			p.maxWait = config.MaxWait
		}
	}
	return p, nil
}

// WaitForCompletion polls the job until it is completed or failed, the
// context ends, or MaxWait elapses. Transient fetch errors are retried.
// The last observed job is always returned, even alongside an error.
func (p *Poller) WaitForCompletion(
	ctx context.Context,
	jobID uuid.UUID,
	progressWriter io.Writer,
) (*dto.JobResponse, error) {
	start := time.Now()
	pollCount := 0
	var last *dto.JobResponse

	for {
		job, err := p.jobs.GetJob(ctx, jobID)
		line := progressLine{Status: "polling", JobID: jobID.String()}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return last, fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			line.LastError = err.Error()
		case IsTerminalStatus(job.Status):
			if job.Status == StatusFailed {
				return job, ErrJobFailed
			}
			return job, nil
		default:
			last = job
		}

		pollCount++
		elapsed := time.Since(start)
		if last != nil {
			line.JobStatus = last.Status
			line.Processed = last.ProcessedItems
			line.Total = last.TotalItems
		}
		line.Elapsed = elapsed.Round(time.Millisecond).String()
		line.PollCount = pollCount
		if progressWriter != nil {
			_ = json.NewEncoder(progressWriter).Encode(line)
		}

		if elapsed >= p.maxWait {
			return last, ErrPollTimeout
		}

		select {
		case <-ctx.Done():
			return last, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-time.After(p.interval):
		}
	}
}

// IsTerminalStatus reports whether a job status is completed or failed.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
