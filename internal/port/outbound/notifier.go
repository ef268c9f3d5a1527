package outbound

import (
	"context"

	"github.com/google/uuid"
)

// JobNotifier signals the worker that a job was queued. Delivery is best effort;
// the dispatch loop's poll picks up any job whose notification was lost.
type JobNotifier interface {
	NotifyJobQueued(ctx context.Context, jobID uuid.UUID) error
	Close() error
}

// TokenCounter estimates how many model tokens a text consumes.
type TokenCounter interface {
	CountTokens(text string) int
}

// DependencyChecker checks one external dependency for the health endpoint.
type DependencyChecker interface {
	Name() string
	Check(ctx context.Context) error
}
