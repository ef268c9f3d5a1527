package worker

import (
	"context"
	"sync"
	"time"

	"contentaugment/internal/application/common/slogger"
)

// DefaultPollInterval is the idle wait between queue polls.
const DefaultPollInterval = 5 * time.Second

// JobDispatcher claims and runs one job per call.
type JobDispatcher interface {
	Dispatch(ctx context.Context) (DispatchResult, error)
}

// DispatchLoop is the single serialized trigger for the dispatcher. It drains
// the queue, then waits for the poll interval or a Wake signal.
type DispatchLoop struct {
	dispatcher   JobDispatcher
	pollInterval time.Duration
	wake         chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewDispatchLoop creates a loop.
func NewDispatchLoop(dispatcher JobDispatcher, pollInterval time.Duration) *DispatchLoop {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &DispatchLoop{
		dispatcher:   dispatcher,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
	}
}

// Wake asks the loop to poll now. It never blocks; signals coalesce.
func (l *DispatchLoop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (l *DispatchLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	slogger.Info(ctx, "Dispatch loop started", slogger.Field("poll_interval", l.pollInterval.String()))
	for {
		l.drain(ctx)

		select {
		case <-ctx.Done():
			slogger.Info(ctx, "Dispatch loop stopped", nil)
			return nil
		case <-ticker.C:
		case <-l.wake:
		}
	}
}

// drain dispatches until the queue is empty, an error occurs, or ctx is done.
func (l *DispatchLoop) drain(ctx context.Context) {
	for ctx.Err() == nil {
		result, err := l.dispatcher.Dispatch(ctx)
		if err != nil {
			slogger.ErrorWithError(ctx, err, "Dispatch failed", nil)
			return
		}
		if !result.Claimed {
			return
		}
	}
}

// Start runs the loop in a goroutine.
func (l *DispatchLoop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	go func() {
		defer close(l.done)
		_ = l.Run(loopCtx)
	}()
}

// Stop cancels the loop and waits for the in-flight dispatch to return.
func (l *DispatchLoop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.running = false
	l.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether Start is in effect.
func (l *DispatchLoop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
