package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/config"
	"contentaugment/internal/port/inbound"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Server represents the HTTP API server
type Server struct {
	config          *config.Config
	httpServer      *http.Server
	routeRegistry   *RouteRegistry
	listener        net.Listener
	isRunning       bool
	mu              sync.RWMutex
	middlewareCount int
}

// ServerBuilder provides a fluent interface for building Server instances
type ServerBuilder struct {
	config        *config.Config
	healthService inbound.HealthService
	jobService    inbound.JobService
	syncService   inbound.SyncAugmentService
	metricsReader *sdkmetric.ManualReader
	errorHandler  ErrorHandler
	middleware    []Middleware
}

// NewServerBuilder creates a new ServerBuilder
func NewServerBuilder(config *config.Config) *ServerBuilder {
	return &ServerBuilder{
		config:     config,
		middleware: make([]Middleware, 0),
	}
}

// WithHealthService sets the health service
func (b *ServerBuilder) WithHealthService(service inbound.HealthService) *ServerBuilder {
	b.healthService = service
	return b
}

// WithJobService sets the asynchronous job service
func (b *ServerBuilder) WithJobService(service inbound.JobService) *ServerBuilder {
	b.jobService = service
	return b
}

// WithSyncAugmentService sets the synchronous augment service
func (b *ServerBuilder) WithSyncAugmentService(service inbound.SyncAugmentService) *ServerBuilder {
	b.syncService = service
	return b
}

// WithMetricsReader exposes reader on GET /metrics.
func (b *ServerBuilder) WithMetricsReader(reader *sdkmetric.ManualReader) *ServerBuilder {
	b.metricsReader = reader
	return b
}

// WithErrorHandler sets the error handler
func (b *ServerBuilder) WithErrorHandler(handler ErrorHandler) *ServerBuilder {
	b.errorHandler = handler
	return b
}

// WithMiddleware adds middleware to the chain; the first added is outermost.
func (b *ServerBuilder) WithMiddleware(middleware Middleware) *ServerBuilder {
	b.middleware = append(b.middleware, middleware)
	return b
}

// WithDefaultMiddleware adds the standard middleware chain
func (b *ServerBuilder) WithDefaultMiddleware() *ServerBuilder {
	return b.
		WithMiddleware(NewCorrelationIDMiddleware()).
		WithMiddleware(NewLoggingMiddleware()).
		WithMiddleware(NewCORSMiddleware()).
		WithMiddleware(NewRecoveryMiddleware())
}

// Build creates the Server instance
func (b *ServerBuilder) Build() (*Server, error) {
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("server builder validation failed: %w", err)
	}

	if err := validateServerConfig(b.config); err != nil {
		return nil, err
	}

	return b.buildServer(), nil
}

func (b *ServerBuilder) validate() error {
	if b.config == nil {
		return errors.New("config is required")
	}
	if b.healthService == nil {
		return errors.New("health service is required")
	}
	if b.jobService == nil {
		return errors.New("job service is required")
	}
	if b.syncService == nil {
		return errors.New("sync augment service is required")
	}
	if b.errorHandler == nil {
		return errors.New("error handler is required")
	}
	return nil
}

func (b *ServerBuilder) buildServer() *Server {
	registry := NewRouteRegistry()

	var metricsHandler http.Handler
	if b.metricsReader != nil {
		metricsHandler = NewMetricsHandler(b.metricsReader)
	}
	registry.RegisterAPIRoutes(
		NewHealthHandler(b.healthService, b.errorHandler),
		NewJobHandler(b.jobService, b.syncService, b.errorHandler),
		metricsHandler,
	)

	handler := NewMiddlewareChain(b.middleware...)(registry.BuildServeMux())

	return &Server{
		config:          b.config,
		httpServer:      b.createHTTPServer(handler),
		routeRegistry:   registry,
		middlewareCount: len(b.middleware),
	}
}

func (b *ServerBuilder) createHTTPServer(handler http.Handler) *http.Server {
	host := b.config.API.Host
	if host == "" {
		host = "0.0.0.0"
	}

	return &http.Server{
		Addr:              net.JoinHostPort(host, b.config.API.Port),
		Handler:           handler,
		ReadTimeout:       b.config.API.ReadTimeout,
		ReadHeaderTimeout: b.config.API.ReadTimeout,
		WriteTimeout:      b.config.API.WriteTimeout,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	// Port 0 resolves to the bound port.
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.httpServer.Addr = net.JoinHostPort(s.Host(), strconv.Itoa(tcpAddr.Port))
	}

	select {
	case <-ctx.Done():
		_ = listener.Close()
		return ctx.Err()
	default:
	}

	s.isRunning = true

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.ErrorNoCtx("HTTP server stopped unexpectedly", slogger.Field("error", err.Error()))
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	return s.httpServer.Shutdown(ctx)
}

// Address returns the server's listening address
func (s *Server) Address() string {
	return s.httpServer.Addr
}

// Host returns the server's host
func (s *Server) Host() string {
	host := s.config.API.Host
	if host == "" {
		return "0.0.0.0"
	}
	return host
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// MiddlewareCount returns the number of registered middleware
func (s *Server) MiddlewareCount() int {
	return s.middlewareCount
}

// HasRoute checks if a specific route is registered
func (s *Server) HasRoute(pattern string) bool {
	return s.routeRegistry.HasRoute(pattern)
}

// RouteCount returns the number of registered routes
func (s *Server) RouteCount() int {
	return s.routeRegistry.RouteCount()
}

func validateServerConfig(config *config.Config) error {
	if config.API.Port != "" && config.API.Port != "0" {
		if port, err := strconv.Atoi(config.API.Port); err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", config.API.Port)
		}
	}

	if config.API.ReadTimeout < 0 || config.API.WriteTimeout < 0 {
		return errors.New("invalid timeout")
	}

	return nil
}

