package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"contentaugment/internal/adapter/outbound/messaging"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/config"
	"contentaugment/internal/port/inbound"

	"github.com/hibiken/asynq"
)

// AsynqDispatchServer processes augment:dispatch tasks by waking the dispatch loop.
type AsynqDispatchServer struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	trigger inbound.DispatchTrigger
}

// NewAsynqDispatchServer builds a single-concurrency asynq server on cfg.Queue.
func NewAsynqDispatchServer(cfg config.RedisConfig, trigger inbound.DispatchTrigger) (*AsynqDispatchServer, error) {
	if trigger == nil {
		return nil, errors.New("dispatch trigger cannot be nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "augment"
	}

	s := &AsynqDispatchServer{
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{queue: 1},
		}),
		mux:     asynq.NewServeMux(),
		trigger: trigger,
	}
	s.mux.HandleFunc(messaging.TaskTypeDispatch, s.HandleDispatch)
	return s, nil
}

// Run starts the server and blocks until ctx is done.
func (s *AsynqDispatchServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	slogger.Info(ctx, "Asynq dispatch server started", nil)

	<-ctx.Done()
	s.server.Shutdown()
	slogger.Info(ctx, "Asynq dispatch server stopped", nil)
	return nil
}

// HandleDispatch wakes the dispatcher. A malformed payload is dropped without retry.
func (s *AsynqDispatchServer) HandleDispatch(ctx context.Context, task *asynq.Task) error {
	var message messaging.JobQueuedMessage
	if err := json.Unmarshal(task.Payload(), &message); err != nil {
		slogger.Warn(ctx, "Discarding malformed dispatch task", slogger.Fields{"error": err.Error()})
		return fmt.Errorf("malformed dispatch task: %v: %w", err, asynq.SkipRetry)
	}

	slogger.Debug(ctx, "Dispatch task received", slogger.Fields{"job_id": message.JobID.String()})
	s.trigger.Wake()
	return nil
}
