package messaging

import (
	"context"

	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
)

// NoopJobNotifier is used with the poll backend: the dispatch loop's ticker
// is the only trigger.
type NoopJobNotifier struct{}

// NotifyJobQueued does nothing.
func (NoopJobNotifier) NotifyJobQueued(context.Context, uuid.UUID) error { return nil }

// Close does nothing.
func (NoopJobNotifier) Close() error { return nil }

var _ outbound.JobNotifier = NoopJobNotifier{}
