package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contentaugment/internal/adapter/inbound/api"
	inboundservice "contentaugment/internal/adapter/inbound/service"
	"contentaugment/internal/adapter/outbound/repository"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/service"
	"contentaugment/internal/port/outbound"
	"contentaugment/internal/version"

	"github.com/spf13/cobra"
)

const apiStartTimeout = 10 * time.Second

// newAPICmd creates and returns the api command.
func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Start the API server",
		Long: `Start the HTTP API server.

The server provides endpoints for:
- Submitting asynchronous augmentation jobs and polling them
- Running a small batch synchronously
- Health checks and a metrics snapshot

Configuration is loaded from config files and environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAPIServer(cmd.Context())
		},
	}
}

func runAPIServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	factory := NewServiceFactory(cfg)

	pool, err := factory.CreateDatabasePool(ctx)
	if err != nil {
		return fmt.Errorf("failed to create database connection pool: %w", err)
	}
	defer pool.Close()

	metrics, reader, provider, err := factory.CreateMetrics("contentaugment-api")
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	catalog, err := factory.CreateCatalog()
	if err != nil {
		return fmt.Errorf("failed to load operations catalog: %w", err)
	}

	executor, err := factory.CreateExecutor(pool, metrics)
	if err != nil {
		return err
	}

	notifier, queueChecker, cleanup, err := factory.CreateNotifier()
	if err != nil {
		return err
	}
	defer cleanup()

	checkers := []outbound.DependencyChecker{repository.NewDatabaseHealthChecker(pool)}
	if queueChecker != nil {
		checkers = append(checkers, queueChecker)
	}

	builder := api.NewServerBuilder(cfg).
		WithHealthService(inboundservice.NewHealthServiceAdapter(version.GetVersion().Version, checkers...)).
		WithJobService(service.NewJobService(repository.NewPostgreSQLAugmentationJobRepository(pool), notifier)).
		WithSyncAugmentService(service.NewSyncAugmentService(catalog, executor, cfg.Augmentation.DefaultOperation)).
		WithMetricsReader(reader).
		WithErrorHandler(api.NewDefaultErrorHandler())

	if cfg.API.EnableDefaultMiddleware == nil || *cfg.API.EnableDefaultMiddleware {
		builder = builder.WithDefaultMiddleware()
	}

	server, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	startCtx, startCancel := context.WithTimeout(ctx, apiStartTimeout)
	defer startCancel()
	if err := server.Start(startCtx); err != nil {
		return err
	}

	slogger.InfoNoCtx("API server started", slogger.Fields{
		"address":    server.Address(),
		"middleware": server.MiddlewareCount(),
		"routes":     server.RouteCount(),
		"provider":   cfg.Augmentation.Provider,
		"queue":      cfg.Queue.Backend,
	})

	<-ctx.Done()
	slogger.InfoNoCtx("Received shutdown signal, initiating graceful shutdown", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}

	slogger.InfoNoCtx("API server shut down gracefully", nil)
	return nil
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newAPICmd())
}
