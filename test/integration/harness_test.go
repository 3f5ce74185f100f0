//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/adapters/backend"
	apphttp "github.com/jsamuelsen/quotes-api/internal/adapters/http"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotes-api/internal/app"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// loadConfig returns the test profile with defaults; mutate it before startService.
func loadConfig(t testing.TB) *config.Config {
	t.Helper()

	cfg, err := config.Load("test")
	require.NoError(t, err)

	cfg.App.Environment = "test"
	cfg.Store.Backend = config.BackendMemory

	return cfg
}

// startService wires the service the way cmd/service does and serves it on a
// loopback port. Everything is torn down with the test.
func startService(t testing.TB, cfg *config.Config) *httptest.Server {
	t.Helper()

	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backends, err := backend.NewFactory(logger).Create(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(backends.Cleanup)

	registry := ports.NewHealthRegistry()
	for _, checker := range backends.Checkers {
		require.NoError(t, registry.Register(checker))
	}

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Store:            backends.Store,
		Publisher:        backends.Publisher,
		Logger:           logger,
		StatsPageSize:    cfg.Store.PageSize,
		StatsConcurrency: cfg.Store.FetchConcurrency,
	})

	engine := gin.New()
	apphttp.SetupRouter(engine, apphttp.NewDefaultRouterConfig(
		logger,
		cfg,
		handlers.NewHealthHandler(registry, handlers.NewBuildInfo(cfg.App.Version, "test", "now")),
		handlers.NewQuoteHandler(service),
		handlers.NewStatsHandler(service),
	))

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return srv
}
