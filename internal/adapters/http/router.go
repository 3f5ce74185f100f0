package http

import (
	"log/slog"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds each API request. Probes are not bounded.
const DefaultRequestTimeout = 30 * time.Second

// probeGroup is where the operational endpoints live.
const probeGroup = "/-"

// RouterConfig holds what SetupRouter mounts. Nil handlers are skipped.
type RouterConfig struct {
	Logger     *slog.Logger
	AuthConfig *config.AuthConfig
	AppConfig  *config.AppConfig
	CORSConfig *config.CORSConfig

	HealthHandler *handlers.HealthHandler
	QuoteHandler  *handlers.QuoteHandler
	StatsHandler  *handlers.StatsHandler

	// Timeout applies to the API routes only; zero disables it.
	Timeout time.Duration
}

// NewDefaultRouterConfig builds a RouterConfig from the loaded configuration.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	quoteHandler *handlers.QuoteHandler,
	statsHandler *handlers.StatsHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AuthConfig:    &cfg.Auth,
		AppConfig:     &cfg.App,
		CORSConfig:    &cfg.CORS,
		HealthHandler: healthHandler,
		QuoteHandler:  quoteHandler,
		StatsHandler:  statsHandler,
		Timeout:       DefaultRequestTimeout,
	}
}

// SetupRouter installs the global middleware and mounts the probes under /-
// and the quote API under /.
//
// Recovery runs outermost so panics in later middleware are caught. Request and
// correlation ids are assigned before the otel span starts, so both reach the
// request log. CORS answers preflights before auth or the timeout see them.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.AppConfig.Name)...)
	engine.Use(
		middleware.Logging(cfg.Logger),
		cors.New(corsConfig(cfg.CORSConfig)),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{probeGroup + "/"})),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutes(engine.Group(probeGroup))
	}

	api := engine.Group("/")
	if cfg.Timeout > 0 {
		api.Use(middleware.Timeout(cfg.Timeout))
	}

	api.GET("/", handlers.NewRootHandler(cfg.AppConfig.Name, cfg.AppConfig.Version).ServiceInfo)

	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterQuoteRoutes(api, writeGuards(cfg.AuthConfig)...)
	}

	if cfg.StatsHandler != nil {
		cfg.StatsHandler.RegisterStatsRoutes(api)
	}
}

// writeGuards returns the middleware placed in front of quote mutations.
func writeGuards(auth *config.AuthConfig) []gin.HandlerFunc {
	if auth == nil || !auth.Enabled {
		return nil
	}

	return []gin.HandlerFunc{middleware.RequireAuth(auth)}
}

// corsConfig allows every origin when none are listed or the list has "*".
func corsConfig(c *config.CORSConfig) cors.Config {
	out := cors.DefaultConfig()
	out.AllowHeaders = append(out.AllowHeaders,
		"Authorization",
		middleware.HeaderRequestID,
		middleware.HeaderCorrelationID,
	)
	out.ExposeHeaders = []string{middleware.HeaderRequestID, middleware.HeaderCorrelationID}

	if c == nil || len(c.AllowOrigins) == 0 || slices.Contains(c.AllowOrigins, "*") {
		out.AllowAllOrigins = true
		return out
	}

	out.AllowOrigins = c.AllowOrigins
	out.AllowCredentials = c.AllowCredentials

	if c.MaxAge > 0 {
		out.MaxAge = c.MaxAge
	}

	return out
}
