package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"backfill/internal/config"
	apperrors "backfill/internal/errors"
	"backfill/internal/infrastructure"
	customMiddleware "backfill/internal/middleware"
	"backfill/internal/operations"
	"backfill/internal/reconcile"
	"backfill/internal/services"
	handlers "backfill/internal/transport/http"
	"backfill/pkg/contracts"
)

// janitorInterval is how often expired sessions are purged
const janitorInterval = time.Minute

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Metrics          *infrastructure.BusinessMetrics
	ErrorHandler     *apperrors.ErrorHandler
	Sessions         *operations.MemorySessionStore
	ReconcileService *services.ReconcileService
	HealthService    *services.HealthService
}

// NewApplication loads configuration and logging from the environment and
// builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigError("configuration is required", nil)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apperrors.NewErrorHandler(logger, false),
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the session store, stage manager and services
func (a *Application) initializeServices() {
	opts := reconcile.NewOptions(a.Config.Reconcile)
	a.Sessions = operations.NewMemorySessionStore(a.Config.Session, opts, a.Metrics, a.Logger)

	manager := operations.NewManager(
		operations.NewDefaultRegistry(),
		operations.NewStageTracer(a.Metrics),
		a.Logger,
	)

	a.ReconcileService = services.NewReconcileService(a.Config, a.Sessions, manager, a.Metrics, a.Logger)
	a.HealthService = services.NewHealthService(
		config.AppVersion,
		contracts.BuildTime,
		a.Sessions,
		a.Config.Session.MaxSessions,
		a.Logger,
	)
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer → headers → rate limit → timeout
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.DefaultSecureHeaders().Handler)

	if a.Config.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.RateLimit.RPS,
			a.Config.RateLimit.Burst,
			a.Logger,
			a.ErrorHandler,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Scrapes skip the request timeout
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	r.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.ErrorHandler))
		r.Use(render.SetContentType(render.ContentTypeJSON))
		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes mounts the handlers under /api
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Mount("/health", healthHandler.Routes())
	r.Get("/version", healthHandler.Version)

	// a stage upload carries one file, a one-shot reconciliation three
	maxBytes := a.Config.Upload.MaxBytes
	stageValidator := customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, maxBytes)
	reconcileValidator := customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, 3*maxBytes)

	r.Mount("/sessions", handlers.NewSessionsHandler(a.ReconcileService, a.ErrorHandler, stageValidator, a.Logger).Routes())
	r.Mount("/reconcile", handlers.NewReconcileHandler(a.ReconcileService, a.ErrorHandler, reconcileValidator, a.Logger).Routes())
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start begins serving on ln and runs the session janitor until ctx ends.
// Serve errors other than a clean shutdown are sent on the returned channel.
func (a *Application) Start(ctx context.Context, ln net.Listener) <-chan error {
	errc := make(chan error, 1)

	go a.Sessions.RunJanitor(ctx, janitorInterval)

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", ln.Addr().String()),
		slog.String("version", config.AppVersion),
		slog.Int("max_sessions", a.Config.Session.MaxSessions),
		slog.Duration("session_ttl", a.Config.Session.TTL))
	return errc
}

// Stop gracefully stops the server and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "error shutting down OpenTelemetry")
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete",
		slog.Int("sessions_dropped", a.Sessions.Len()))
	return nil
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	errc := a.Start(ctx, ln)

	select {
	case <-ctx.Done():
		a.Logger.Info("received interrupt signal")
	case err := <-errc:
		if err != nil {
			infrastructure.WithError(a.Logger, err).Error("server error")
			_ = a.Stop(context.Background())
			return err
		}
	}

	return a.Stop(context.Background())
}
