package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"contentaugment/internal/adapter/outbound/messaging"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/worker"
	"contentaugment/internal/config"
	"contentaugment/internal/port/inbound"

	"github.com/nats-io/nats.go"
)

const (
	defaultFetchBatch   = 10
	defaultFetchWait    = 5 * time.Second
	defaultFetchBackoff = time.Second
)

// ConsumerStats counts handled messages.
type ConsumerStats struct {
	Received      int64     `json:"received"`
	Malformed     int64     `json:"malformed"`
	LastMessageAt time.Time `json:"last_message_at"`
	ActiveSince   time.Time `json:"active_since"`
}

// NATSDispatchConsumer pull-subscribes to job-queued messages and wakes the
// dispatch loop for each one.
type NATSDispatchConsumer struct {
	natsConfig config.NATSConfig
	trigger    inbound.DispatchTrigger
	fetchBatch int
	fetchWait  time.Duration
	// fetchBackoff is the pause after a fetch error other than a timeout.
	fetchBackoff time.Duration

	mu      sync.RWMutex
	running bool
	stats   ConsumerStats
}

// NewNATSDispatchConsumer validates the configuration and returns an idle consumer.
func NewNATSDispatchConsumer(cfg config.NATSConfig, trigger inbound.DispatchTrigger) (*NATSDispatchConsumer, error) {
	if err := messaging.ValidateNATSConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid consumer configuration: %w", err)
	}
	if cfg.Durable == "" {
		return nil, errors.New("invalid consumer configuration: durable name cannot be empty")
	}
	if trigger == nil {
		return nil, errors.New("dispatch trigger cannot be nil")
	}
	return &NATSDispatchConsumer{
		natsConfig: cfg,
		trigger:    trigger,
		fetchBatch:   defaultFetchBatch,
		fetchWait:    defaultFetchWait,
		fetchBackoff: defaultFetchBackoff,
	}, nil
}

// Run connects, binds the durable pull consumer and fetches until ctx is done.
func (c *NATSDispatchConsumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running for subject %s", c.natsConfig.Subject)
	}
	c.running = true
	c.stats.ActiveSince = time.Now()
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	conn, js, err := messaging.Dial(c.natsConfig, nil, func(err error) {
		slogger.Warn(ctx, "NATS consumer disconnected", slogger.Fields{"error": fmt.Sprint(err)})
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := messaging.EnsureStream(js, c.natsConfig); err != nil {
		return err
	}

	sub, err := js.PullSubscribe(c.natsConfig.Subject, c.natsConfig.Durable, nats.BindStream(c.natsConfig.Stream))
	if err != nil {
		return fmt.Errorf("failed to create pull subscription: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	slogger.Info(ctx, "NATS dispatch consumer started", slogger.Fields{
		"subject": c.natsConfig.Subject,
		"durable": c.natsConfig.Durable,
	})

	for {
		if ctx.Err() != nil {
			slogger.Info(ctx, "NATS dispatch consumer stopped", nil)
			return nil
		}

		msgs, err := sub.Fetch(c.fetchBatch, nats.MaxWait(c.fetchWait))
		if err != nil {
			if fatal := c.recoverFetch(ctx, err); fatal != nil {
				return fatal
			}
			continue
		}

		for _, msg := range msgs {
			c.settle(ctx, msg)
		}
	}
}

// recoverFetch handles a failed Fetch. Timeouts retry at once, a closed
// connection is returned, and anything else waits fetchBackoff so a
// reconnecting connection is not polled in a tight loop.
func (c *NATSDispatchConsumer) recoverFetch(ctx context.Context, err error) error {
	if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats connection closed: %w", err)
	}
	slogger.Warn(ctx, "NATS fetch failed", slogger.Fields{
		"error":   err.Error(),
		"backoff": c.fetchBackoff.String(),
	})
	_ = worker.ContextSleep(ctx, c.fetchBackoff)
	return nil
}

func (c *NATSDispatchConsumer) settle(ctx context.Context, msg *nats.Msg) {
	if err := c.HandleMessage(ctx, msg.Data); err != nil {
		if termErr := msg.Term(); termErr != nil {
			slogger.Warn(ctx, "Failed to terminate malformed message", slogger.Fields{"error": termErr.Error()})
		}
		return
	}
	if err := msg.Ack(); err != nil {
		slogger.Warn(ctx, "Failed to ack job-queued message", slogger.Fields{"error": err.Error()})
	}
}

// HandleMessage decodes one job-queued payload and wakes the dispatcher.
func (c *NATSDispatchConsumer) HandleMessage(ctx context.Context, data []byte) error {
	var message messaging.JobQueuedMessage
	if err := json.Unmarshal(data, &message); err != nil {
		c.record(false)
		slogger.Warn(ctx, "Discarding malformed job-queued message", slogger.Fields{
			"error": err.Error(),
			"size":  len(data),
		})
		return fmt.Errorf("malformed job-queued message: %w", err)
	}

	c.record(true)
	slogger.Debug(ctx, "Job-queued message received", slogger.Fields{
		"job_id":     message.JobID.String(),
		"message_id": message.MessageID,
	})
	c.trigger.Wake()
	return nil
}

// Stats returns a snapshot of consumer counters.
func (c *NATSDispatchConsumer) Stats() ConsumerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// IsRunning reports whether Run is active.
func (c *NATSDispatchConsumer) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *NATSDispatchConsumer) record(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.stats.Malformed++
		return
	}
	c.stats.Received++
	c.stats.LastMessageAt = time.Now()
}
