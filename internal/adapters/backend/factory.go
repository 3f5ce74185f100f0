// Package backend builds the configured quote store and event publisher.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quotes-api/internal/adapters/clients"
	"github.com/jsamuelsen/quotes-api/internal/adapters/clients/postgrest"
	"github.com/jsamuelsen/quotes-api/internal/adapters/events"
	"github.com/jsamuelsen/quotes-api/internal/adapters/memory"
	"github.com/jsamuelsen/quotes-api/internal/adapters/postgres"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// Store couples a store with its health check and release function.
type Store interface {
	ports.QuoteStore
	ports.HealthChecker
}

// Result holds what the factory built. Cleanup releases connections and is never nil.
type Result struct {
	Store     Store
	Publisher ports.EventPublisher

	// Checkers lists every component that should report on /-/ready.
	Checkers []ports.HealthChecker

	Cleanup func()
}

// Factory creates backends from configuration.
type Factory struct {
	logger *slog.Logger

	// dialEvents is replaced in tests.
	dialEvents func(cfg config.EventsConfig, appID string, logger *slog.Logger) (*events.Publisher, error)
}

// NewFactory creates a new backend factory.
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}

	return &Factory{
		logger:     logger,
		dialEvents: events.Dial,
	}
}

// Create builds the configured store and, when enabled, the event publisher.
// A broker that cannot be reached is logged and replaced by a no-op publisher.
func (f *Factory) Create(ctx context.Context, cfg *config.Config) (*Result, error) {
	store, closeStore, err := f.createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Store:     store,
		Publisher: ports.NopPublisher{},
		Checkers:  []ports.HealthChecker{store},
		Cleanup:   closeStore,
	}

	if !cfg.Events.Enabled {
		return result, nil
	}

	publisher, err := f.dialEvents(cfg.Events, cfg.App.Name, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "failed to initialize event publisher, continuing without events",
			slog.Any("error", err),
		)

		return result, nil
	}

	f.logger.InfoContext(ctx, "initialized event publisher", slog.String("exchange", cfg.Events.Exchange))

	result.Publisher = publisher
	result.Checkers = append(result.Checkers, publisher)
	result.Cleanup = func() {
		if err := publisher.Close(); err != nil {
			f.logger.Warn("closing event publisher", slog.Any("error", err))
		}

		closeStore()
	}

	return result, nil
}

func (f *Factory) createStore(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgREST:
		return f.createPostgREST(ctx, cfg)
	case config.BackendPostgres:
		return f.createPostgres(ctx, cfg)
	case config.BackendMemory:
		f.logger.InfoContext(ctx, "initialized memory store")
		return memory.New(memory.WithLogger(f.logger)), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %q", cfg.Store.Backend)
	}
}

func (f *Factory) createPostgREST(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	pc := cfg.Store.PostgREST
	if pc.URL == "" {
		return nil, nil, errors.New("postgrest store requires a URL")
	}

	client, err := clients.New(&clients.Config{
		BaseURL:     pc.RESTURL(),
		ServiceName: "postgrest",
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		AuthFunc:    postgrest.AuthFunc(pc.Key),
		Logger:      f.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating postgrest client: %w", err)
	}

	store := postgrest.New(postgrest.Config{
		Client: client,
		Table:  cfg.Store.Table,
		Schema: cfg.Store.Schema,
		Logger: f.logger,
	})

	f.logger.InfoContext(ctx, "initialized postgrest store",
		slog.String("url", pc.RESTURL()),
		slog.String("table", cfg.Store.Table),
	)

	return store, func() {}, nil
}

func (f *Factory) createPostgres(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	pool, err := postgres.Connect(ctx, cfg.Store.Postgres)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Store.Postgres.Migrate {
		if err := postgres.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}

		f.logger.InfoContext(ctx, "applied postgres migrations")
	}

	store := postgres.New(postgres.Config{
		DB:     pool,
		Schema: cfg.Store.Schema,
		Table:  cfg.Store.Table,
		Logger: f.logger,
	})

	f.logger.InfoContext(ctx, "initialized postgres store", slog.Int("max_conns", int(cfg.Store.Postgres.MaxConns)))

	return store, pool.Close, nil
}
