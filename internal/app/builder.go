package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/crpaas/repo-custodian/internal/api"
	"github.com/crpaas/repo-custodian/internal/backend"
	"github.com/crpaas/repo-custodian/internal/backend/direct"
	kubebackend "github.com/crpaas/repo-custodian/internal/backend/kubernetes"
	"github.com/crpaas/repo-custodian/internal/config"
	"github.com/crpaas/repo-custodian/internal/controller"
	"github.com/crpaas/repo-custodian/internal/indexer"
	"github.com/crpaas/repo-custodian/internal/reindex"
	"github.com/crpaas/repo-custodian/internal/service"
	"github.com/crpaas/repo-custodian/internal/store"
	"github.com/crpaas/repo-custodian/internal/store/memory"
	"github.com/crpaas/repo-custodian/internal/store/postgres"
	"github.com/crpaas/repo-custodian/internal/telemetry"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// CustodianAppOptions is a function that configures the app builder
type CustodianAppOptions func(*custodianAppConfig) error

// custodianAppConfig collects everything NewCustodianApp needs to
// assemble the application. It supports dependency injection for
// testing while providing sensible defaults for production.
type custodianAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	store     store.Store
	backend   backend.Backend
	notifier  reindex.Notifier
	inspector indexer.Inspector

	// HTTP server options. An empty address falls back to the
	// configured server address.
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...CustodianAppOptions) (*custodianAppConfig, error) {
	cfg := &custodianAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewCustodianApp assembles the application from configuration: the
// record store, the execution backend, the reindex notifier, the
// lifecycle service and controller, and the HTTP server.
func NewCustodianApp(
	ctx context.Context,
	opts ...CustodianAppOptions,
) (*CustodianApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository store: %w", err)
	}

	// Ensure the store is released when a later build step fails
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			if closeErr := st.Close(); closeErr != nil {
				slog.Warn("Failed to close repository store", "error", closeErr)
			}
		}
	}()

	be, insp, err := buildExecutionBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build execution backend: %w", err)
	}

	notifier := buildNotifier(cfg)

	ctrl, svc, err := buildLifecycleComponents(cfg, st, be, notifier)
	if err != nil {
		return nil, fmt.Errorf("failed to build lifecycle components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, svc, insp)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Create application context
	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	return &CustodianApp{
		config: cfg.config,
		components: &AppComponents{
			Controller: ctrl,
			Service:    svc,
			Store:      st,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress overrides the HTTP server address from the configuration
func WithAddress(addr string) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not a valid host:port: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStore allows injecting a custom record store (for testing)
func WithStore(st store.Store) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		cfg.store = st
		return nil
	}
}

// WithBackend allows injecting a custom execution backend (for testing)
func WithBackend(be backend.Backend) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		cfg.backend = be
		return nil
	}
}

// WithNotifier allows injecting a custom reindex notifier (for testing)
func WithNotifier(n reindex.Notifier) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		cfg.notifier = n
		return nil
	}
}

// WithInspector allows injecting a custom OpenGrok inspector (for testing)
func WithInspector(insp indexer.Inspector) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		cfg.inspector = insp
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP,
// task and controller metrics
func WithMeterProvider(mp metric.MeterProvider) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for request
// and lifecycle operation tracing
func WithTracerProvider(tp trace.TracerProvider) CustodianAppOptions {
	return func(cfg *custodianAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildStore creates the record store selected by the storage mode.
func buildStore(ctx context.Context, cfg *custodianAppConfig) (store.Store, error) {
	if cfg.store != nil {
		return cfg.store, nil
	}

	switch cfg.config.Storage.Mode {
	case config.StorageModePostgres:
		connString, err := cfg.config.Storage.Database.GetConnectionString()
		if err != nil {
			return nil, fmt.Errorf("failed to build connection string: %w", err)
		}
		st, err := postgres.Open(ctx, connString)
		if err != nil {
			return nil, err
		}
		slog.Info("Using PostgreSQL repository store",
			"host", cfg.config.Storage.Database.Host,
			"database", cfg.config.Storage.Database.Database)
		return st, nil
	case config.StorageModeMemory:
		slog.Info("Using in-memory repository store")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage mode: %s", cfg.config.Storage.Mode)
	}
}

// buildExecutionBackend creates the task backend and, under the
// kubernetes backend, the OpenGrok inspector that shares its clientset.
func buildExecutionBackend(cfg *custodianAppConfig) (backend.Backend, indexer.Inspector, error) {
	if cfg.backend != nil {
		return cfg.backend, cfg.inspector, nil
	}

	switch cfg.config.Backend.GetType() {
	case config.BackendTypeKubernetes:
		k := cfg.config.Backend.Kubernetes
		client, err := kubebackend.NewClientset()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		be, err := kubebackend.New(client, kubebackend.Config{
			Namespace:        k.Namespace,
			Image:            k.Image,
			PVCName:          k.PVCName,
			ScriptConfigMap:  k.ScriptConfigMap,
			BackoffLimit:     k.BackoffLimit,
			SSHSecretName:    k.SSHSecretName,
			SSHConfigMapName: k.SSHConfigMapName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kubernetes backend: %w", err)
		}
		slog.Info("Using kubernetes execution backend", "namespace", k.Namespace)

		insp := cfg.inspector
		if insp == nil {
			// The OpenGrok deployment defaults to the namespace the
			// clone Jobs run in.
			ns := k.Namespace
			if og := cfg.config.OpenGrok; og != nil && og.Namespace != "" {
				ns = og.Namespace
			}
			insp, err = indexer.New(client, ns, cfg.config.OpenGrok.GetDeployment())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create opengrok inspector: %w", err)
			}
		}
		return be, insp, nil
	case config.BackendTypeDirect:
		be, err := direct.New(cfg.config.Backend.Direct.Root)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create direct backend: %w", err)
		}
		slog.Info("Using direct execution backend", "root", cfg.config.Backend.Direct.Root)
		return be, cfg.inspector, nil
	default:
		return nil, nil, fmt.Errorf("backend configuration is missing")
	}
}

// buildNotifier selects the reindex notifier. Without a configured
// endpoint, task completions are not announced anywhere.
func buildNotifier(cfg *custodianAppConfig) reindex.Notifier {
	if cfg.notifier != nil {
		return cfg.notifier
	}
	if cfg.config.Reindex != nil {
		slog.Info("Reindex notification enabled", "url", cfg.config.Reindex.URL)
		return reindex.NewClient(cfg.config.Reindex.URL)
	}
	return reindex.NopNotifier{}
}

// buildLifecycleComponents builds the dispatcher, service and controller.
func buildLifecycleComponents(
	cfg *custodianAppConfig,
	st store.Store,
	be backend.Backend,
	notifier reindex.Notifier,
) (*controller.Controller, service.Service, error) {
	slog.Info("Initializing lifecycle components")

	dispatcherOpts := []controller.DispatcherOption{
		controller.WithMaxConcurrentTasks(cfg.config.Controller.GetMaxConcurrentTasks()),
	}
	if cfg.meterProvider != nil {
		taskMetrics, err := telemetry.NewTaskMetrics(cfg.meterProvider)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create task metrics: %w", err)
		}
		dispatcherOpts = append(dispatcherOpts, controller.WithTaskMetrics(taskMetrics))
	}

	dispatcher, err := controller.NewDispatcher(st, be, notifier, dispatcherOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	svcOpts := []service.Option{
		service.WithStore(st),
		service.WithDispatcher(dispatcher),
	}
	// Backends whose work outlives dispatch can surface a live transcript
	if workLogger, ok := be.(service.WorkLogger); ok {
		svcOpts = append(svcOpts, service.WithWorkLogger(workLogger))
	}
	if cfg.tracerProvider != nil {
		svcOpts = append(svcOpts,
			service.WithTracer(cfg.tracerProvider.Tracer("github.com/crpaas/repo-custodian/internal/service")))
	}

	svc, err := service.New(svcOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create lifecycle service: %w", err)
	}

	ctrlOpts := []controller.Option{
		controller.WithWatchInterval(cfg.config.Controller.GetWatchInterval()),
		controller.WithAutoSyncInterval(cfg.config.Controller.GetAutoSyncInterval()),
		controller.WithSweepInterval(cfg.config.Controller.GetSweepInterval()),
	}
	if querier, ok := be.(backend.StatusQuerier); ok {
		ctrlOpts = append(ctrlOpts, controller.WithStatusQuerier(querier))
	}
	if cfg.meterProvider != nil {
		controllerMetrics, err := telemetry.NewControllerMetrics(cfg.meterProvider)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create controller metrics: %w", err)
		}
		ctrlOpts = append(ctrlOpts, controller.WithControllerMetrics(controllerMetrics))
	}

	ctrl, err := controller.New(st, svc, dispatcher, ctrlOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create lifecycle controller: %w", err)
	}

	slog.Info("Lifecycle components initialized")
	return ctrl, svc, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(
	cfg *custodianAppConfig,
	svc service.Service,
	insp indexer.Inspector,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if cfg.middlewares == nil {
		cfg.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(cfg.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Prepend telemetry middlewares so every request is captured
	if cfg.tracerProvider != nil {
		cfg.middlewares = append(
			[]func(http.Handler) http.Handler{telemetry.TracingMiddleware(cfg.tracerProvider)},
			cfg.middlewares...)
	}
	if cfg.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			cfg.middlewares = append(
				[]func(http.Handler) http.Handler{metricsMiddleware}, cfg.middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(cfg.middlewares...),
	}
	if insp != nil {
		serverOpts = append(serverOpts, api.WithInspector(insp))
	}
	if og := cfg.config.OpenGrok; og != nil && og.BaseURL != "" {
		serverOpts = append(serverOpts, api.WithOpenGrokBaseURL(og.BaseURL))
	}

	// Create router with middlewares
	router := api.NewServer(svc, serverOpts...)

	address := cfg.address
	if address == "" {
		address = cfg.config.Server.GetAddress()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.readTimeout,
		WriteTimeout: cfg.writeTimeout,
		IdleTimeout:  cfg.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", address)
	return server, nil
}
