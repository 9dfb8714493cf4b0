package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"retailpulse/internal/config"
	"retailpulse/internal/errors"
	"retailpulse/internal/features"
	"retailpulse/internal/forecast"
	"retailpulse/internal/infrastructure"
	"retailpulse/internal/ingest"
	custommw "retailpulse/internal/middleware"
	"retailpulse/internal/services"
	"retailpulse/internal/store"
	handlers "retailpulse/internal/transport/http"
)

const (
	// Version is the application version, overridable at link time.
	Version = "1.0.0"
	AppName = "RetailPulse"
)

// Application wires configuration, the record store, the feature
// pipeline and the HTTP transport together.
type Application struct {
	Config      *config.Config
	Router      *chi.Mux
	Server      *http.Server
	Store       store.RecordStore
	Coordinator *ingest.Coordinator
	Service     *services.DatasetService
	Logger      *slog.Logger
}

// NewApplication creates a fully wired application instance.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	recordStore, err := store.NewPostgresStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize record store: %w", err)
	}

	app := &Application{
		Config: cfg,
		Store:  recordStore,
		Logger: logger,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// NewApplicationWithStore builds the application around an existing
// store. Used by tests, which bring their own backend.
func NewApplicationWithStore(cfg *config.Config, recordStore store.RecordStore, logger *slog.Logger) *Application {
	app := &Application{
		Config: cfg,
		Store:  recordStore,
		Logger: logger,
	}
	app.initializeServices()
	app.setupRouter()
	app.createServer()
	return app
}

// initializeServices constructs the pipeline components in dependency order.
func (a *Application) initializeServices() {
	engine := features.NewEngine(a.Logger, features.Options{
		SortByDateBeforeCumSum: a.Config.Ingest.SortByDateBeforeCumSum,
	})
	a.Coordinator = ingest.NewCoordinator(engine, a.Store, a.Logger)

	forecaster := forecast.New(a.Logger)
	a.Service = services.NewDatasetService(a.Store, forecaster, a.Logger)
}

// setupRouter configures the HTTP router with all routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))
	r.Use(custommw.Metrics)

	if a.Config.Security.RateLimit.Enabled {
		r.Use(custommw.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	errorHandler := errors.NewErrorHandler(a.Logger, false)

	datasetHandler := handlers.NewDatasetHandler(
		a.Coordinator,
		a.Service,
		errorHandler,
		a.Logger,
		a.Config.Ingest.MaxUploadBytes,
	)
	r.Mount("/api/datasets", datasetHandler.Routes())

	healthHandler := handlers.NewHealthHandler(a.Store, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Get("/healthz/live", healthHandler.LivenessCheck)

	r.Handle("/metrics", promhttp.Handler())

	a.Router = r
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run serves HTTP until the process receives an interrupt, then shuts
// down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "server listening",
			slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.shutdownStore()
	if cerr := infrastructure.CloseLogFile(); cerr != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", cerr)
	}
	a.Logger.Info("application stopped")
	return err
}

func (a *Application) shutdownStore() {
	if closer, ok := a.Store.(interface{ Close() }); ok {
		closer.Close()
	}
}
