package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Executor: ExecutorConfig{
			BatchSize:     50,
			ItemDelay:     300 * time.Millisecond,
			BatchDelay:    time.Second,
			PreviewLength: 200,
		},
		Dispatcher: DispatcherConfig{
			PollInterval:     5 * time.Second,
			ThrottleCooldown: time.Minute,
			MaxRequeues:      5,
		},
		Reconciler: ReconcilerConfig{
			Enabled:    true,
			Interval:   time.Minute,
			StaleAfter: 15 * time.Minute,
			Action:     ReconcileActionRequeue,
		},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "app", Name: "contentaugment"},
		Queue:    QueueConfig{Backend: QueueBackendPoll},
		Augmentation: AugmentationConfig{
			Provider:         ProviderGemini,
			DefaultOperation: "add_links",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing db user", func(c *Config) { c.Database.User = "" }, "database.user is required"},
		{"missing db name", func(c *Config) { c.Database.Name = "" }, "database.name is required"},
		{"bad port", func(c *Config) { c.Database.Port = 70000 }, "database.port"},
		{"zero batch size", func(c *Config) { c.Executor.BatchSize = 0 }, "executor.batch_size"},
		{"negative delay", func(c *Config) { c.Executor.ItemDelay = -time.Second }, "delays must not be negative"},
		{"zero preview", func(c *Config) { c.Executor.PreviewLength = 0 }, "executor.preview_length"},
		{"zero poll interval", func(c *Config) { c.Dispatcher.PollInterval = 0 }, "dispatcher.poll_interval"},
		{"negative requeues", func(c *Config) { c.Dispatcher.MaxRequeues = -1 }, "dispatcher.max_requeues"},
		{"bad reconciler action", func(c *Config) { c.Reconciler.Action = "delete" }, "reconciler.action"},
		{"disabled reconciler skips checks", func(c *Config) {
			c.Reconciler.Enabled = false
			c.Reconciler.Action = "delete"
		}, ""},
		{"unknown backend", func(c *Config) { c.Queue.Backend = "kafka" }, "queue.backend"},
		{"nats without scheme", func(c *Config) {
			c.Queue.Backend = QueueBackendNATS
			c.Queue.NATS = NATSConfig{URL: "localhost:4222", Stream: "AUGMENT", Subject: "augment.jobs.queued"}
		}, "nats://"},
		{"nats valid", func(c *Config) {
			c.Queue.Backend = QueueBackendNATS
			c.Queue.NATS = NATSConfig{URL: "nats://localhost:4222", Stream: "AUGMENT", Subject: "augment.jobs.queued"}
		}, ""},
		{"asynq without redis", func(c *Config) { c.Queue.Backend = QueueBackendAsynq }, "queue.redis.url"},
		{"unknown provider", func(c *Config) { c.Augmentation.Provider = "claude" }, "augmentation.provider"},
		{"missing default op", func(c *Config) { c.Augmentation.DefaultOperation = "" }, "default_operation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_FromYAML(t *testing.T) {
	yamlConfig := []byte(`
database:
  host: db
  port: 5432
  user: app
  name: contentaugment
executor:
  batch_size: 50
  item_delay: 300ms
  batch_delay: 1s
  preview_length: 200
dispatcher:
  poll_interval: 5s
  throttle_cooldown: 2m
  max_requeues: 3
reconciler:
  enabled: true
  interval: 1m
  stale_after: 15m
  action: fail
queue:
  backend: asynq
  redis:
    url: redis://localhost:6379/0
augmentation:
  provider: openai
  default_operation: add_links
  openai:
    api_key: sk-test
    model: gpt-4o-mini
`)
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yamlConfig)))

	cfg := New(v)

	assert.Equal(t, 50, cfg.Executor.BatchSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Executor.ItemDelay)
	assert.Equal(t, 2*time.Minute, cfg.Dispatcher.ThrottleCooldown)
	assert.Equal(t, ReconcileActionFail, cfg.Reconciler.Action)
	assert.Equal(t, QueueBackendAsynq, cfg.Queue.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.Augmentation.OpenAI.Model)
}

func TestNew_PanicsOnInvalidConfig(t *testing.T) {
	v := viper.New()
	v.Set("database.user", "app")
	assert.Panics(t, func() { New(v) })
}

func TestConfig_Redacted(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "secret"
	cfg.Augmentation.Gemini.APIKey = "key"

	redacted := cfg.Redacted()

	assert.Equal(t, "********", redacted.Database.Password)
	assert.Equal(t, "********", redacted.Augmentation.Gemini.APIKey)
	assert.Empty(t, redacted.Augmentation.OpenAI.APIKey)
	assert.Equal(t, "secret", cfg.Database.Password)
}
