// Package cmd provides the command-line interface for the contentaugment service.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/config"
	"contentaugment/internal/version"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CONTENTAUGMENT_DATABASE_HOST.
const EnvPrefix = "CONTENTAUGMENT"

//nolint:gochecknoglobals // Standard Cobra CLI pattern
var (
	cfgFile string
	envFile string
	cfg     *config.Config
)

//nolint:gochecknoglobals // Standard Cobra CLI pattern
var rootCmd = &cobra.Command{
	Use:   "contentaugment",
	Short: "Bulk content augmentation job pipeline",
	Long: `contentaugment runs large "transform every item in this list" jobs against an
external text-generation provider.

The system supports:
- Asynchronous jobs queued in PostgreSQL and claimed with SKIP LOCKED
- A synchronous endpoint for small batches
- Per-item idempotency checks and partial-failure isolation
- Dispatch wake-ups over NATS JetStream or asynq
- A reconciler that reclaims stuck jobs`,
	Version: version.GetVersion().Version,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return slogger.Configure(cfg.Log.Level, cfg.Log.Format)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	rootCmd.SetVersionTemplate(version.GetVersion().FormatFull())
}

func initConfig() {
	if err := loadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
	}

	v := newViper(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}

	cfg = config.New(v)
}

// loadDotEnv populates the process environment from path. A missing file is
// not an error; variables already set are left alone.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// newViper builds a viper instance with defaults, config file lookup and
// environment overrides.
func newViper(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Changed flags win over file and environment.
	flags := rootCmd.PersistentFlags()
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
	}
	if err := v.BindPFlag("log.format", flags.Lookup("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-format flag: %v\n", err)
	}
	return v
}

func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.read_timeout", "10s")
	// A full synchronous batch paces 50 items at 300ms plus provider latency.
	v.SetDefault("api.write_timeout", "5m")
	v.SetDefault("api.shutdown_timeout", "30s")

	v.SetDefault("worker.shutdown_timeout", "30s")
	v.SetDefault("worker.metrics_addr", ":9091")

	v.SetDefault("executor.batch_size", 50)
	v.SetDefault("executor.item_delay", "300ms")
	v.SetDefault("executor.batch_delay", "1s")
	v.SetDefault("executor.preview_length", 200)
	v.SetDefault("executor.progress_every", 10)

	v.SetDefault("dispatcher.poll_interval", "5s")
	v.SetDefault("dispatcher.throttle_cooldown", "1m")
	v.SetDefault("dispatcher.max_requeues", 5)

	v.SetDefault("reconciler.enabled", true)
	v.SetDefault("reconciler.interval", "1m")
	v.SetDefault("reconciler.stale_after", "15m")
	v.SetDefault("reconciler.action", config.ReconcileActionRequeue)
	v.SetDefault("reconciler.batch_limit", 100)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "contentaugment")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "contentaugment")
	v.SetDefault("database.schema", "contentaugment")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 5)

	v.SetDefault("queue.backend", config.QueueBackendPoll)
	v.SetDefault("queue.nats.url", "nats://localhost:4222")
	v.SetDefault("queue.nats.max_reconnects", 5)
	v.SetDefault("queue.nats.reconnect_wait", "2s")
	v.SetDefault("queue.nats.stream", "AUGMENT_JOBS")
	v.SetDefault("queue.nats.subject", "augment.jobs.queued")
	v.SetDefault("queue.nats.durable", "augment-dispatcher")
	v.SetDefault("queue.redis.url", "redis://localhost:6379/0")
	v.SetDefault("queue.redis.queue", "augment")

	v.SetDefault("augmentation.provider", config.ProviderGemini)
	v.SetDefault("augmentation.default_operation", "add_links")
	v.SetDefault("augmentation.max_input_tokens", 30000)
	v.SetDefault("augmentation.tokenizer", "cl100k_base")
	v.SetDefault("augmentation.operations_file", "")
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("augmentation.gemini.api_key", "")
	v.SetDefault("augmentation.gemini.base_url", "")
	v.SetDefault("augmentation.openai.api_key", "")
	v.SetDefault("augmentation.openai.base_url", "")
	v.SetDefault("augmentation.gemini.model", "gemini-2.0-flash")
	v.SetDefault("augmentation.gemini.timeout", "60s")
	v.SetDefault("augmentation.gemini.temperature", 0.2)
	v.SetDefault("augmentation.openai.model", "gpt-4o-mini")
	v.SetDefault("augmentation.openai.timeout", "60s")
	v.SetDefault("augmentation.openai.temperature", 0.2)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}
