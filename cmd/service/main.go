// Command service runs the quotes API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/jsamuelsen/quotes-api/internal/adapters/backend"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotes-api/internal/app"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
	"github.com/jsamuelsen/quotes-api/internal/platform/telemetry"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// Set with -ldflags "-X main.Version=... -X main.Commit=... -X main.BuildTime=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const defaultProfile = "local"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "quotes-api: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the profile named by APP_ENVIRONMENT. A .env file in the
// working directory, when present, is applied to the environment first.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = defaultProfile
	}

	cfg, err := config.Load(profile)
	if err != nil {
		return nil, err
	}

	if Version != "dev" {
		cfg.App.Version = Version
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s profile: %w", profile, err)
	}

	return cfg, nil
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.ConfigFrom(cfg.App, cfg.Log))
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", cfg.App.Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Backend),
	)

	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.App, cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		// ctx is already canceled once a signal arrived.
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	backends, err := backend.NewFactory(logger).Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating %s backend: %w", cfg.Store.Backend, err)
	}
	defer backends.Cleanup()

	server, err := newServer(cfg, logger, backends)
	if err != nil {
		return err
	}

	return serve(ctx, logger, server, cfg.Server.ShutdownTimeout)
}

// newServer wires the quote service and its routes onto an HTTP server.
func newServer(cfg *config.Config, logger *slog.Logger, backends *backend.Result) (*http.Server, error) {
	store, err := telemetry.InstrumentStore(backends.Store, cfg.Store.Backend, otel.GetTracerProvider(), otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("instrumenting store: %w", err)
	}

	registry := ports.NewHealthRegistry(ports.WithCheckTimeout(cfg.Client.Timeout))
	for _, checker := range backends.Checkers {
		if err := registry.Register(checker); err != nil {
			return nil, fmt.Errorf("registering %s health check: %w", checker.Name(), err)
		}
	}

	quotes := app.NewQuoteService(app.QuoteServiceConfig{
		Store:            store,
		Publisher:        backends.Publisher,
		Logger:           logger,
		StatsPageSize:    cfg.Store.PageSize,
		StatsConcurrency: cfg.Store.FetchConcurrency,
	})

	server := http.New(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), http.NewDefaultRouterConfig(logger, cfg,
		handlers.NewHealthHandler(registry, handlers.NewBuildInfo(cfg.App.Version, Commit, BuildTime)),
		handlers.NewQuoteHandler(quotes),
		handlers.NewStatsHandler(quotes),
	))

	return server, nil
}

// serve runs the server until ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, logger *slog.Logger, server *http.Server, drain time.Duration) error {
	select {
	case err := <-server.Start():
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("drain_timeout", drain))

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("draining requests: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
