package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Queue backends that can wake the dispatch loop.
const (
	QueueBackendPoll  = "poll"
	QueueBackendNATS  = "nats"
	QueueBackendAsynq = "asynq"
)

// Augmentation providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Reconciler actions for stale jobs.
const (
	ReconcileActionRequeue = "requeue"
	ReconcileActionFail    = "fail"
)

// Config holds the complete application configuration.
type Config struct {
	API          APIConfig          `mapstructure:"api" yaml:"api"`
	Worker       WorkerConfig       `mapstructure:"worker" yaml:"worker"`
	Executor     ExecutorConfig     `mapstructure:"executor" yaml:"executor"`
	Dispatcher   DispatcherConfig   `mapstructure:"dispatcher" yaml:"dispatcher"`
	Reconciler   ReconcilerConfig   `mapstructure:"reconciler" yaml:"reconciler"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Queue        QueueConfig        `mapstructure:"queue" yaml:"queue"`
	Augmentation AugmentationConfig `mapstructure:"augmentation" yaml:"augmentation"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Host                    string        `mapstructure:"host" yaml:"host"`
	Port                    string        `mapstructure:"port" yaml:"port"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout         time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	EnableDefaultMiddleware *bool         `mapstructure:"enable_default_middleware" yaml:"enable_default_middleware"`
}

// WorkerConfig holds worker process configuration.
type WorkerConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MetricsAddr is the listen address of the worker's metrics endpoint.
	// Empty disables it.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// ExecutorConfig controls batch pacing. Write timeouts on the API should cover
// batch_size * item_delay plus provider latency for synchronous requests.
type ExecutorConfig struct {
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	ItemDelay     time.Duration `mapstructure:"item_delay" yaml:"item_delay"`
	BatchDelay    time.Duration `mapstructure:"batch_delay" yaml:"batch_delay"`
	PreviewLength int           `mapstructure:"preview_length" yaml:"preview_length"`
	ProgressEvery int           `mapstructure:"progress_every" yaml:"progress_every"`
}

// DispatcherConfig controls claiming and throttle handling.
type DispatcherConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ThrottleCooldown time.Duration `mapstructure:"throttle_cooldown" yaml:"throttle_cooldown"`
	MaxRequeues      int           `mapstructure:"max_requeues" yaml:"max_requeues"`
}

// ReconcilerConfig controls stuck-job recovery.
type ReconcilerConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
	Action     string        `mapstructure:"action" yaml:"action"`
	BatchLimit int           `mapstructure:"batch_limit" yaml:"batch_limit"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	User               string `mapstructure:"user" yaml:"user"`
	Password           string `mapstructure:"password" yaml:"password"`
	Name               string `mapstructure:"name" yaml:"name"`
	Schema             string `mapstructure:"schema" yaml:"schema"`
	SSLMode            string `mapstructure:"sslmode" yaml:"sslmode"`
	MaxConnections     int    `mapstructure:"max_connections" yaml:"max_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" yaml:"max_idle_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// QueueConfig selects how queued jobs wake the worker.
type QueueConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"`
	NATS    NATSConfig  `mapstructure:"nats" yaml:"nats"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
	Stream        string        `mapstructure:"stream" yaml:"stream"`
	Subject       string        `mapstructure:"subject" yaml:"subject"`
	Durable       string        `mapstructure:"durable" yaml:"durable"`
}

// RedisConfig holds the Redis connection used by the asynq backend.
type RedisConfig struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Queue string `mapstructure:"queue" yaml:"queue"`
}

// AugmentationConfig holds provider configuration.
type AugmentationConfig struct {
	Provider         string       `mapstructure:"provider" yaml:"provider"`
	DefaultOperation string       `mapstructure:"default_operation" yaml:"default_operation"`
	OperationsFile   string       `mapstructure:"operations_file" yaml:"operations_file"`
	MaxInputTokens   int          `mapstructure:"max_input_tokens" yaml:"max_input_tokens"`
	Tokenizer        string       `mapstructure:"tokenizer" yaml:"tokenizer"`
	Gemini           GeminiConfig `mapstructure:"gemini" yaml:"gemini"`
	OpenAI           OpenAIConfig `mapstructure:"openai" yaml:"openai"`
}

// GeminiConfig holds Gemini API configuration.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
}

// OpenAIConfig holds OpenAI API configuration.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	// Unmarshal configuration
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return errors.New("database.port must be between 1 and 65535")
	}

	if err := c.Executor.validate(); err != nil {
		return err
	}
	if err := c.Dispatcher.validate(); err != nil {
		return err
	}
	if err := c.Reconciler.validate(); err != nil {
		return err
	}
	if err := c.Queue.validate(); err != nil {
		return err
	}
	return c.Augmentation.validate()
}

func (e ExecutorConfig) validate() error {
	if e.BatchSize < 1 {
		return errors.New("executor.batch_size must be at least 1")
	}
	if e.ItemDelay < 0 || e.BatchDelay < 0 {
		return errors.New("executor delays must not be negative")
	}
	if e.PreviewLength < 1 {
		return errors.New("executor.preview_length must be at least 1")
	}
	return nil
}

func (d DispatcherConfig) validate() error {
	if d.PollInterval <= 0 {
		return errors.New("dispatcher.poll_interval must be positive")
	}
	if d.ThrottleCooldown < 0 {
		return errors.New("dispatcher.throttle_cooldown must not be negative")
	}
	if d.MaxRequeues < 0 {
		return errors.New("dispatcher.max_requeues must not be negative")
	}
	return nil
}

func (r ReconcilerConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Interval <= 0 {
		return errors.New("reconciler.interval must be positive")
	}
	if r.StaleAfter <= 0 {
		return errors.New("reconciler.stale_after must be positive")
	}
	switch r.Action {
	case ReconcileActionRequeue, ReconcileActionFail:
	default:
		return fmt.Errorf("reconciler.action must be %q or %q", ReconcileActionRequeue, ReconcileActionFail)
	}
	return nil
}

func (q QueueConfig) validate() error {
	switch q.Backend {
	case QueueBackendPoll:
	case QueueBackendNATS:
		if !strings.HasPrefix(q.NATS.URL, "nats://") {
			return errors.New("queue.nats.url must start with nats://")
		}
		if q.NATS.Stream == "" || q.NATS.Subject == "" {
			return errors.New("queue.nats.stream and queue.nats.subject are required")
		}
	case QueueBackendAsynq:
		if q.Redis.URL == "" {
			return errors.New("queue.redis.url is required for the asynq backend")
		}
	default:
		return fmt.Errorf("queue.backend must be one of %s, %s, %s", QueueBackendPoll, QueueBackendNATS, QueueBackendAsynq)
	}
	return nil
}

func (a AugmentationConfig) validate() error {
	switch a.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("augmentation.provider must be %q or %q", ProviderGemini, ProviderOpenAI)
	}
	if a.DefaultOperation == "" {
		return errors.New("augmentation.default_operation is required")
	}
	if a.MaxInputTokens < 0 {
		return errors.New("augmentation.max_input_tokens must not be negative")
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Database.Password = mask(c.Database.Password)
	c.Augmentation.Gemini.APIKey = mask(c.Augmentation.Gemini.APIKey)
	c.Augmentation.OpenAI.APIKey = mask(c.Augmentation.OpenAI.APIKey)
	return c
}
