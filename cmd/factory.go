package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"contentaugment/internal/adapter/outbound/gemini"
	"contentaugment/internal/adapter/outbound/messaging"
	"contentaugment/internal/adapter/outbound/openai"
	"contentaugment/internal/adapter/outbound/repository"
	"contentaugment/internal/adapter/outbound/tokenizer"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/service"
	"contentaugment/internal/application/worker"
	"contentaugment/internal/config"
	"contentaugment/internal/domain/operation"
	"contentaugment/internal/port/outbound"
	"contentaugment/internal/version"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ServiceFactory builds the adapters and services shared by the api and worker commands.
type ServiceFactory struct {
	config *config.Config
}

// NewServiceFactory creates a new ServiceFactory
func NewServiceFactory(cfg *config.Config) *ServiceFactory {
	return &ServiceFactory{config: cfg}
}

// CreateDatabasePool opens and pings the Postgres pool.
func (sf *ServiceFactory) CreateDatabasePool(ctx context.Context) (*pgxpool.Pool, error) {
	db := sf.config.Database
	return repository.NewDatabaseConnection(ctx, repository.DatabaseConfig{
		Host:           db.Host,
		Port:           db.Port,
		Database:       db.Name,
		Username:       db.User,
		Password:       db.Password,
		Schema:         db.Schema,
		MaxConnections: db.MaxConnections,
		MinConnections: db.MaxIdleConnections,
		SSLMode:        db.SSLMode,
	})
}

// CreateCatalog loads the operations file when configured, else the embedded defaults.
func (sf *ServiceFactory) CreateCatalog() (*operation.Catalog, error) {
	if path := sf.config.Augmentation.OperationsFile; path != "" {
		return operation.LoadCatalogFile(path)
	}
	return operation.DefaultCatalog()
}

// CreateAugmenter builds the configured provider adapter. The API key falls
// back to the provider's conventional environment variable.
func (sf *ServiceFactory) CreateAugmenter() (outbound.Augmenter, error) {
	aug := sf.config.Augmentation

	switch aug.Provider {
	case config.ProviderOpenAI:
		apiKey := firstNonEmpty(aug.OpenAI.APIKey, os.Getenv("OPENAI_API_KEY"))
		client, err := openai.NewClient(openai.ClientConfig{
			APIKey:      apiKey,
			BaseURL:     aug.OpenAI.BaseURL,
			Model:       aug.OpenAI.Model,
			Timeout:     aug.OpenAI.Timeout,
			Temperature: aug.OpenAI.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		slogger.InfoNoCtx("Using OpenAI augmentation provider", slogger.Field("model", client.ModelName()))
		return client, nil
	case config.ProviderGemini:
		apiKey := firstNonEmpty(aug.Gemini.APIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		client, err := gemini.NewClient(&gemini.ClientConfig{
			APIKey:      apiKey,
			BaseURL:     aug.Gemini.BaseURL,
			Model:       aug.Gemini.Model,
			Timeout:     aug.Gemini.Timeout,
			Temperature: aug.Gemini.Temperature,
			UserAgent:   version.UserAgent(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		slogger.InfoNoCtx("Using Gemini augmentation provider", slogger.Field("model", client.GetConfig().Model))
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported augmentation provider %q", aug.Provider)
	}
}

// CreateMetrics installs an SDK meter provider backed by a manual reader and
// creates the pipeline instruments on it.
func (sf *ServiceFactory) CreateMetrics(serviceName string) (*worker.PipelineMetrics, *sdkmetric.ManualReader, *sdkmetric.MeterProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version.GetVersion().Version),
		),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build metrics resource: %w", err)
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(provider)

	metrics, err := worker.NewPipelineMetrics()
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, nil, err
	}
	return metrics, reader, provider, nil
}

// CreateExecutor wires the guard, augmentation service and pacing into a
// batch executor sharing pool's transactions.
func (sf *ServiceFactory) CreateExecutor(pool *pgxpool.Pool, metrics *worker.PipelineMetrics) (*worker.BatchExecutor, error) {
	augmenter, err := sf.CreateAugmenter()
	if err != nil {
		return nil, err
	}

	items := repository.NewPostgreSQLContentItemRepository(pool)
	augmentation := service.NewAugmentationService(
		augmenter,
		tokenizer.New(sf.config.Augmentation.Tokenizer),
		sf.config.Augmentation.MaxInputTokens,
	)

	exec := sf.config.Executor
	return worker.NewBatchExecutor(
		service.NewIdempotencyGuard(items),
		augmentation,
		items,
		worker.ExecutorConfig{
			BatchSize:     exec.BatchSize,
			ItemDelay:     exec.ItemDelay,
			BatchDelay:    exec.BatchDelay,
			PreviewLength: exec.PreviewLength,
			ProgressEvery: exec.ProgressEvery,
		},
		worker.WithTransactor(repository.NewTransactionManager(pool)),
		worker.WithMetrics(metrics),
	), nil
}

// CreateNotifier returns the job-queued notifier for the configured backend,
// a health checker for the broker (nil for the poll backend) and a cleanup
// func releasing both.
func (sf *ServiceFactory) CreateNotifier() (outbound.JobNotifier, outbound.DependencyChecker, func(), error) {
	queue := sf.config.Queue

	switch queue.Backend {
	case config.QueueBackendNATS:
		notifier, err := messaging.NewNATSJobNotifier(queue.NATS)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := notifier.Connect(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		if err := notifier.EnsureStream(); err != nil {
			_ = notifier.Close()
			return nil, nil, nil, fmt.Errorf("failed to ensure NATS stream: %w", err)
		}
		return notifier, notifier, func() { _ = notifier.Close() }, nil
	case config.QueueBackendAsynq:
		notifier, err := messaging.NewAsynqJobNotifier(queue.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		checker, err := messaging.NewRedisHealthChecker(queue.Redis.URL)
		if err != nil {
			_ = notifier.Close()
			return nil, nil, nil, err
		}
		cleanup := func() {
			_ = notifier.Close()
			_ = checker.Close()
		}
		return notifier, checker, cleanup, nil
	case config.QueueBackendPoll:
		return messaging.NoopJobNotifier{}, nil, func() {}, nil
	default:
		return nil, nil, nil, errors.New("unknown queue backend " + queue.Backend)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
