package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dbmigration/ec2secrets/internal/api"
	"github.com/dbmigration/ec2secrets/internal/config"
	"github.com/dbmigration/ec2secrets/internal/metrics"
	"github.com/dbmigration/ec2secrets/internal/secrets"
	"github.com/dbmigration/ec2secrets/internal/storage"
	"github.com/dbmigration/ec2secrets/internal/watch"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	resolver  *secrets.Resolver
	store     *storage.Store
	metrics   *metrics.Collector
	handler   *api.Handler
	router    http.Handler
	watcher   *watch.Watcher
	scheduler *watch.Scheduler
	logger    *zap.Logger
	server    *http.Server
}

// Option customizes New.
type Option func(*options)

type options struct {
	resolverOpts []secrets.ResolverOption
}

// WithResolverOptions passes extra options to the secrets resolver, primarily
// for tests that substitute the environment or search directories.
func WithResolverOptions(opts ...secrets.ResolverOption) Option {
	return func(o *options) {
		o.resolverOpts = append(o.resolverOpts, opts...)
	}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	resolver := secrets.NewResolver(append([]secrets.ResolverOption{secrets.WithLogger(logger)}, o.resolverOpts...)...)
	collector := metrics.NewCollector(nil)
	resolveOpts := secrets.Options{EnvFile: cfg.EnvFile, ConfigFile: cfg.FirebaseConfigFile}
	store := storage.NewStore(resolver, resolveOpts, storage.WithReloadHook(collector.Observe))

	handler := api.NewHandler(store)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	app := &App{
		resolver: resolver,
		store:    store,
		metrics:  collector,
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(cfg, BuildRootHandler(apiRouter, collector.Handler())),
	}

	if cfg.Watch {
		envPaths, configPaths := resolver.CandidatePaths(resolveOpts)
		w, err := watch.NewWatcher(append(envPaths, configPaths...), cfg.WatchDebounce, app.reload("file change"), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		app.watcher = w
	}
	app.scheduler = watch.NewScheduler(cfg.ReloadSchedule, app.reload("schedule"), logger)

	return app, nil
}

// BuildRootHandler routes API requests and serves Prometheus metrics.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("GET /metrics", metricsHandler)
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.ListenAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start resolves the configuration, starts the reload triggers and the HTTP
// server. Triggers stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	snap := a.store.Snapshot()
	a.logger.Info("configuration ready", zap.Strings("sections", snap.Keys()))

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reload schedule: %w", err)
	}

	if a.watcher != nil {
		go func() {
			err := a.watcher.Run(ctx)
			switch {
			case errors.Is(err, watch.ErrNothingToWatch):
				a.logger.Warn("file watching disabled", zap.Error(err))
			case err != nil:
				a.logger.Error("configuration watcher failed", zap.Error(err))
			}
		}()
	}

	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Store returns the configuration store served by the app.
func (a *App) Store() *storage.Store {
	return a.store
}

func (a *App) reload(trigger string) func() {
	return func() {
		snap := a.store.Reload()
		a.logger.Info("configuration reloaded",
			zap.String("trigger", trigger),
			zap.Uint64("generation", a.store.Generation()),
			zap.Int("warnings", len(snap.Warnings())),
		)
	}
}
