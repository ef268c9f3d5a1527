package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contentaugment/internal/config"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// dispatchTaskRetention keeps finished task ids around long enough to reject
// a duplicate notify for the same job.
const dispatchTaskRetention = time.Hour

// AsynqJobNotifier enqueues a dispatch task on a Redis-backed asynq queue.
type AsynqJobNotifier struct {
	client *asynq.Client
	queue  string
}

// NewAsynqJobNotifier creates a notifier for cfg.URL.
func NewAsynqJobNotifier(cfg config.RedisConfig) (*AsynqJobNotifier, error) {
	opt, err := asynq.ParseRedisURI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "augment"
	}
	return &AsynqJobNotifier{client: asynq.NewClient(opt), queue: queue}, nil
}

// NotifyJobQueued enqueues one dispatch task per job. A task id conflict means
// the job was already announced and is not an error.
func (a *AsynqJobNotifier) NotifyJobQueued(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return errors.New("job ID cannot be nil")
	}

	body, err := json.Marshal(NewJobQueuedMessage(jobID))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	task := asynq.NewTask(TaskTypeDispatch, body)
	_, err = a.client.EnqueueContext(ctx, task,
		asynq.Queue(a.queue),
		asynq.TaskID("dispatch:"+jobID.String()),
		asynq.MaxRetry(0),
		asynq.Retention(dispatchTaskRetention),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("failed to enqueue dispatch task: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (a *AsynqJobNotifier) Close() error {
	return a.client.Close()
}

// RedisHealthChecker pings the Redis server behind the asynq queue.
type RedisHealthChecker struct {
	client *redis.Client
}

// NewRedisHealthChecker parses url with go-redis.
func NewRedisHealthChecker(url string) (*RedisHealthChecker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &RedisHealthChecker{client: redis.NewClient(opt)}, nil
}

// Name implements outbound.DependencyChecker.
func (r *RedisHealthChecker) Name() string {
	return "redis"
}

// Check implements outbound.DependencyChecker.
func (r *RedisHealthChecker) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the ping connection.
func (r *RedisHealthChecker) Close() error {
	return r.client.Close()
}

var (
	_ outbound.JobNotifier       = (*AsynqJobNotifier)(nil)
	_ outbound.DependencyChecker = (*RedisHealthChecker)(nil)
)
