package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contentaugment/internal/adapter/inbound/api"
	inboundmessaging "contentaugment/internal/adapter/inbound/messaging"
	"contentaugment/internal/adapter/outbound/repository"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/worker"
	"contentaugment/internal/config"
	"contentaugment/internal/port/inbound"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"
)

const metricsReadHeaderTimeout = 10 * time.Second

// newWorkerCmd creates and returns the worker command.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the background worker",
		Long: `Start the single logical worker that executes queued augmentation jobs.

The worker:
- Claims the oldest queued job with an atomic claim-if-still-queued update
- Runs its items in paced batches, persisting progress after every item
- Wakes on a poll tick or a NATS / asynq notification
- Reclaims jobs stuck in processing when the reconciler is enabled
- Requeues the in-flight job on shutdown
- Serves its pipeline metrics on worker.metrics_addr

Configuration is loaded from config files and environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkerService(cmd.Context())
		},
	}
}

func runWorkerService(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	factory := NewServiceFactory(cfg)

	slogger.InfoNoCtx("Starting worker service", slogger.Fields{
		"queue_backend": cfg.Queue.Backend,
		"provider":      cfg.Augmentation.Provider,
		"batch_size":    cfg.Executor.BatchSize,
		"reconciler":    cfg.Reconciler.Enabled,
	})

	pool, err := factory.CreateDatabasePool(ctx)
	if err != nil {
		return fmt.Errorf("failed to create database connection pool: %w", err)
	}
	defer pool.Close()

	metrics, reader, provider, err := factory.CreateMetrics("contentaugment-worker")
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

	jobs := repository.NewPostgreSQLAugmentationJobRepository(pool)
	dispatcher := worker.NewDispatcher(jobs, catalog, executor,
		worker.DispatcherConfig{
			ThrottleCooldown: cfg.Dispatcher.ThrottleCooldown,
			MaxRequeues:      cfg.Dispatcher.MaxRequeues,
		},
		worker.WithDispatcherMetrics(metrics),
	)
	loop := worker.NewDispatchLoop(dispatcher, cfg.Dispatcher.PollInterval)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return loop.Run(groupCtx) })

	if cfg.Worker.MetricsAddr != "" {
		metricsServer := newMetricsServer(cfg.Worker.MetricsAddr, reader)
		group.Go(func() error { return serveMetrics(groupCtx, metricsServer, cfg.Worker.ShutdownTimeout) })
	}

	if cfg.Reconciler.Enabled {
		reconciler := worker.NewReconciler(jobs, worker.ReconcilerConfig{
			Interval:    cfg.Reconciler.Interval,
			StaleAfter:  cfg.Reconciler.StaleAfter,
			Action:      cfg.Reconciler.Action,
			MaxRequeues: cfg.Dispatcher.MaxRequeues,
			BatchLimit:  cfg.Reconciler.BatchLimit,
		}, metrics)
		group.Go(func() error { return reconciler.Run(groupCtx) })
	}

	trigger, err := newDispatchTrigger(cfg.Queue, loop)
	if err != nil {
		return err
	}
	if trigger != nil {
		group.Go(func() error { return trigger.Run(groupCtx) })
	}

	slogger.InfoNoCtx("Worker service started successfully", nil)
	err = group.Wait()
	slogger.InfoNoCtx("Worker service shutdown completed", nil)
	return err
}

// newMetricsServer exposes reader on GET /metrics at addr.
func newMetricsServer(addr string, reader *sdkmetric.ManualReader) *http.Server {
	registry := api.NewRouteRegistry()
	registry.RegisterMetricsRoute(api.NewMetricsHandler(reader))
	return &http.Server{
		Addr:              addr,
		Handler:           registry.BuildServeMux(),
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}
}

// serveMetrics runs server until ctx ends, then shuts it down within timeout.
func serveMetrics(ctx context.Context, server *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	slogger.InfoNoCtx("Worker metrics endpoint listening", slogger.Fields{"address": server.Addr})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("worker metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("worker metrics server shutdown: %w", err)
	}
	return nil
}

type runnable interface {
	Run(ctx context.Context) error
}

// newDispatchTrigger returns the broker consumer that wakes loop, or nil for
// the poll-only backend.
func newDispatchTrigger(queue config.QueueConfig, loop inbound.DispatchTrigger) (runnable, error) {
	switch queue.Backend {
	case config.QueueBackendNATS:
		return inboundmessaging.NewNATSDispatchConsumer(queue.NATS, loop)
	case config.QueueBackendAsynq:
		return inboundmessaging.NewAsynqDispatchServer(queue.Redis, loop)
	default:
		return nil, nil
	}
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newWorkerCmd())
}
