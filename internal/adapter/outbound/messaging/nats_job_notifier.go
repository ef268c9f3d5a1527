package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"contentaugment/internal/config"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	natsConnectionTimeoutSeconds = 5

	streamMaxAgeHours = 24
)

// ConnectionHealthStatus represents the health status of the NATS connection.
type ConnectionHealthStatus struct {
	Connected      bool      `json:"connected"`
	JetStream      bool      `json:"jetstream"`
	LastError      string    `json:"last_error,omitempty"`
	Reconnects     int       `json:"reconnects"`
	ConnectedSince time.Time `json:"connected_since"`
	PublishedCount int64     `json:"published_count"`
	FailedCount    int64     `json:"failed_count"`
}

// NATSJobNotifier publishes job-queued messages on a JetStream work-queue stream.
type NATSJobNotifier struct {
	config         config.NATSConfig
	conn           *nats.Conn
	js             nats.JetStreamContext
	mutex          sync.RWMutex
	connectedAt    time.Time
	reconnectCount int
	lastError      error
	published      int64
	failed         int64
}

// NewNATSJobNotifier validates cfg and returns an unconnected notifier.
func NewNATSJobNotifier(cfg config.NATSConfig) (*NATSJobNotifier, error) {
	if err := ValidateNATSConfig(cfg); err != nil {
		return nil, err
	}
	return &NATSJobNotifier{config: cfg}, nil
}

// ValidateNATSConfig checks the fields both the notifier and the consumer rely on.
func ValidateNATSConfig(cfg config.NATSConfig) error {
	if cfg.URL == "" {
		return errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") {
		return errors.New("invalid NATS URL scheme")
	}
	if cfg.MaxReconnects < 0 {
		return errors.New("max reconnects cannot be negative")
	}
	if cfg.ReconnectWait < 0 {
		return errors.New("reconnect wait cannot be negative")
	}
	if cfg.Stream == "" || cfg.Subject == "" {
		return errors.New("NATS stream and subject are required")
	}
	return nil
}

// Connect establishes the connection and JetStream context.
func (n *NATSJobNotifier) Connect() error {
	conn, js, err := Dial(n.config, n.onReconnect, n.onDisconnect)
	if err != nil {
		n.setError(err)
		return err
	}

	n.mutex.Lock()
	n.conn = conn
	n.js = js
	n.connectedAt = time.Now()
	n.mutex.Unlock()
	return nil
}

// Dial opens a NATS connection with reconnect handling and a JetStream context.
func Dial(cfg config.NATSConfig, onReconnect func(), onDisconnect func(error)) (*nats.Conn, nats.JetStreamContext, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(natsConnectionTimeoutSeconds * time.Second),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if onReconnect != nil {
				onReconnect()
			}
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if onDisconnect != nil {
				onDisconnect(err)
			}
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return conn, js, nil
}

// EnsureStream creates the work-queue stream if it does not exist yet.
func (n *NATSJobNotifier) EnsureStream() error {
	n.mutex.RLock()
	js := n.js
	n.mutex.RUnlock()
	if js == nil {
		return errors.New("not connected to NATS server")
	}
	return EnsureStream(js, n.config)
}

// EnsureStream creates the stream described by cfg, tolerating an existing one.
func EnsureStream(js nats.JetStreamContext, cfg config.NATSConfig) error {
	streamConfig := &nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
		MaxAge:    streamMaxAgeHours * time.Hour,
		Replicas:  1,
	}

	if _, err := js.AddStream(streamConfig); err != nil {
		if _, infoErr := js.StreamInfo(cfg.Stream); infoErr == nil {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// NotifyJobQueued publishes a job-queued message. The job id doubles as the
// JetStream message id, so a retried notify is deduplicated by the server.
func (n *NATSJobNotifier) NotifyJobQueued(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return errors.New("job ID cannot be nil")
	}

	n.mutex.RLock()
	js := n.js
	n.mutex.RUnlock()
	if js == nil {
		n.recordPublish(false)
		return errors.New("publish failed: not connected to NATS")
	}

	data, err := json.Marshal(NewJobQueuedMessage(jobID))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := js.Publish(n.config.Subject, data, nats.Context(ctx), nats.MsgId(jobID.String())); err != nil {
		n.recordPublish(false)
		n.setError(err)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	n.recordPublish(true)
	return nil
}

// Close drains and closes the connection.
func (n *NATSJobNotifier) Close() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
		n.js = nil
	}
	return nil
}

// GetConnectionHealth returns the current connection status.
func (n *NATSJobNotifier) GetConnectionHealth() ConnectionHealthStatus {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	status := ConnectionHealthStatus{
		Connected:      n.conn != nil && n.conn.IsConnected(),
		JetStream:      n.js != nil,
		Reconnects:     n.reconnectCount,
		ConnectedSince: n.connectedAt,
		PublishedCount: n.published,
		FailedCount:    n.failed,
	}
	if n.lastError != nil {
		status.LastError = n.lastError.Error()
	}
	return status
}

// Name implements outbound.DependencyChecker.
func (n *NATSJobNotifier) Name() string {
	return "nats"
}

// Check implements outbound.DependencyChecker.
func (n *NATSJobNotifier) Check(_ context.Context) error {
	status := n.GetConnectionHealth()
	if !status.Connected {
		if status.LastError != "" {
			return fmt.Errorf("nats disconnected: %s", status.LastError)
		}
		return errors.New("nats disconnected")
	}
	return nil
}

func (n *NATSJobNotifier) onReconnect() {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.reconnectCount++
}

func (n *NATSJobNotifier) onDisconnect(err error) {
	if err == nil {
		err = errors.New("connection lost")
	}
	n.setError(err)
}

func (n *NATSJobNotifier) setError(err error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.lastError = err
}

func (n *NATSJobNotifier) recordPublish(success bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if success {
		n.published++
		return
	}
	n.failed++
}

var (
	_ outbound.JobNotifier       = (*NATSJobNotifier)(nil)
	_ outbound.DependencyChecker = (*NATSJobNotifier)(nil)
)
