package http

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotes-api/internal/adapters/memory"
	"github.com/jsamuelsen/quotes-api/internal/app"
	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           8080,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "quotes-api",
			Environment: "test",
			Version:     "1.0.0",
		},
		Auth: config.AuthConfig{
			Enabled:       false,
			RolesHeader:   "X-User-Roles",
			SubjectHeader: "X-User-ID",
		},
		CORS: config.CORSConfig{AllowOrigins: []string{"*"}},
	}
}

// newTestEngine builds the full router over an in-memory store.
func newTestEngine(t *testing.T, cfg *config.Config, seed ...domain.Quote) *gin.Engine {
	t.Helper()

	store := memory.New(memory.WithQuotes(seed...))

	registry := ports.NewHealthRegistry()
	require.NoError(t, registry.Register(store))

	service := app.NewQuoteService(app.QuoteServiceConfig{Store: store, Logger: discardLogger()})

	engine := gin.New()
	SetupRouter(engine, NewDefaultRouterConfig(
		discardLogger(),
		cfg,
		handlers.NewHealthHandler(registry, handlers.NewBuildInfo("1.0.0", "abc", "now")),
		handlers.NewQuoteHandler(service),
		handlers.NewStatsHandler(service),
	))

	return engine
}

func do(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	return w
}

func TestServerNew(t *testing.T) {
	cfg := testServerConfig()
	logger := discardLogger()

	srv := New(cfg, logger)

	require.NotNil(t, srv)
	assert.NotNil(t, srv.Engine())
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
}

func TestServerStartListenerShutdown(t *testing.T) {
	srv := New(testServerConfig(), discardLogger())
	srv.Engine().GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := srv.StartListener(ln)
	assert.Equal(t, ln.Addr().String(), srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed")
}

func TestServerStartShutdown(t *testing.T) {
	cfg := testServerConfig()
	cfg.Port = 0

	srv := New(cfg, discardLogger())
	srv.Engine().GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	errCh := srv.Start()
	require.NotEqual(t, "127.0.0.1:0", srv.Addr(), "Start binds before returning")

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to shutdown")
	}
}

func TestServerStart_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testServerConfig()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	err = <-New(cfg, discardLogger()).Start()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "binding")
}

func TestMaxBodySizeMiddleware(t *testing.T) {
	cfg := testServerConfig()
	cfg.MaxRequestSize = 16

	srv := New(cfg, discardLogger())
	srv.Engine().POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": len(body)})
	})

	small := do(srv.Engine(), httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, small.Code)

	large := do(srv.Engine(), httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, large.Code)
}

func TestNewDefaultRouterConfig(t *testing.T) {
	cfg := testConfig()
	logger := discardLogger()

	rc := NewDefaultRouterConfig(logger, cfg, nil, nil, nil)

	assert.Equal(t, logger, rc.Logger)
	assert.Same(t, &cfg.App, rc.AppConfig)
	assert.Same(t, &cfg.Auth, rc.AuthConfig)
	assert.Same(t, &cfg.CORS, rc.CORSConfig)
	assert.Equal(t, DefaultRequestTimeout, rc.Timeout)
}

func TestSetupRouter_Routes(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	routes := make(map[string]bool)
	for _, r := range engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, expected := range []string{
		"GET /",
		"GET /quotes",
		"GET /quotes/random",
		"GET /quotes/search",
		"GET /quotes/tags",
		"GET /quotes/theme/:theme",
		"GET /quotes/:id",
		"POST /quotes",
		"PUT /quotes/:id",
		"DELETE /quotes/:id",
		"GET /stats",
		"GET /-/live",
		"GET /-/ready",
	} {
		assert.True(t, routes[expected], "missing route: %s", expected)
	}
}

func TestSetupRouter_WithoutHandlers(t *testing.T) {
	cfg := RouterConfig{
		Logger:    discardLogger(),
		AppConfig: &testConfig().App,
	}

	require.NotPanics(t, func() {
		SetupRouter(gin.New(), cfg)
	})
}

func TestSetupRouter_QuoteLifecycle(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	create := httptest.NewRequest(http.MethodPost, "/quotes",
		strings.NewReader(`{"title":"Courage","text":"Fortune favors the bold","theme":"virtue","tags":["courage"]}`))
	create.Header.Set("Content-Type", "application/json")

	w := do(engine, create)
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.QuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.CreatedAt)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(engine, httptest.NewRequest(http.MethodGet, "/quotes/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	update := httptest.NewRequest(http.MethodPut, "/quotes/"+created.ID, strings.NewReader(`{"subtheme":"boldness"}`))
	update.Header.Set("Content-Type", "application/json")

	w = do(engine, update)
	require.Equal(t, http.StatusOK, w.Code)

	var updated dto.QuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.NotNil(t, updated.Subtheme)
	assert.Equal(t, "boldness", *updated.Subtheme)
	assert.Equal(t, "Courage", updated.Title)

	w = do(engine, httptest.NewRequest(http.MethodGet, "/quotes/theme/virtue", nil))
	assert.Contains(t, w.Body.String(), created.ID)

	w = do(engine, httptest.NewRequest(http.MethodDelete, "/quotes/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	w = do(engine, httptest.NewRequest(http.MethodGet, "/quotes/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(engine, httptest.NewRequest(http.MethodDelete, "/quotes/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func seedQuotes(n int) []domain.Quote {
	quotes := make([]domain.Quote, n)
	for i := range quotes {
		theme := "virtue"
		if i%3 == 0 {
			theme = "time"
		}

		quotes[i] = domain.Quote{
			ID:        fmt.Sprintf("id-%02d", i),
			Title:     fmt.Sprintf("T%02d", (i*5)%n),
			Text:      "text",
			Theme:     ptr(theme),
			CreatedAt: fmt.Sprintf("2024-02-%02dT12:00:00Z", i%4+1),
		}
	}

	return quotes
}

func listQuotes(t *testing.T, engine *gin.Engine, target string) []dto.QuoteResponse {
	t.Helper()

	w := do(engine, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var quotes []dto.QuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quotes))

	return quotes
}

func TestSetupRouter_PagingVisitsEachQuoteOnce(t *testing.T) {
	engine := newTestEngine(t, testConfig(), seedQuotes(17)...)

	tests := []struct {
		name  string
		query string
		limit int
		want  int
	}{
		{name: "default order", query: "", limit: 4, want: 17},
		{name: "theme filter", query: "theme=virtue&", limit: 3, want: 11},
		{name: "title ascending", query: "sort_by=title&sort_order=asc&", limit: 5, want: 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make(map[string]int)

			for offset := 0; ; offset += tt.limit {
				page := listQuotes(t, engine, fmt.Sprintf("/quotes?%slimit=%d&offset=%d", tt.query, tt.limit, offset))
				if len(page) == 0 {
					break
				}

				for _, q := range page {
					seen[q.ID]++
				}
			}

			assert.Len(t, seen, tt.want)
			for id, n := range seen {
				assert.Equal(t, 1, n, "quote %s", id)
			}
		})
	}
}

func TestSetupRouter_SortByTitleAscending(t *testing.T) {
	engine := newTestEngine(t, testConfig(), seedQuotes(12)...)

	quotes := listQuotes(t, engine, "/quotes?sort_by=title&sort_order=asc")

	require.Len(t, quotes, 12)
	assert.True(t, slices.IsSortedFunc(quotes, func(a, b dto.QuoteResponse) int {
		return strings.Compare(a.Title, b.Title)
	}))
	assert.Equal(t, "T00", quotes[0].Title)
}

func TestSetupRouter_RootAndStats(t *testing.T) {
	engine := newTestEngine(t, testConfig(),
		domain.Quote{ID: "1", Title: "a", Text: "a", Theme: ptr("A"), CreatedAt: "2024-01-01T00:00:00Z"},
		domain.Quote{ID: "2", Title: "b", Text: "b", Theme: ptr("A"), CreatedAt: "2024-01-02T00:00:00Z"},
		domain.Quote{ID: "3", Title: "c", Text: "c", Theme: ptr("B"), CreatedAt: "2024-02-01T00:00:00Z"},
	)

	w := do(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.0.0"`)

	w = do(engine, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats dto.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalQuotes)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, stats.Themes)
}

func TestSetupRouter_AuthGuardsWrites(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true

	engine := newTestEngine(t, cfg, domain.Quote{ID: "1", Title: "a", Text: "a", CreatedAt: "2024-01-01T00:00:00Z"})

	w := do(engine, httptest.NewRequest(http.MethodGet, "/quotes/1", nil))
	assert.Equal(t, http.StatusOK, w.Code, "reads stay public")

	w = do(engine, httptest.NewRequest(http.MethodDelete, "/quotes/1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	authed := httptest.NewRequest(http.MethodDelete, "/quotes/1", nil)
	authed.Header.Set("X-User-ID", "editor-7")

	w = do(engine, authed)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRouter_CORS(t *testing.T) {
	t.Run("allow all", func(t *testing.T) {
		engine := newTestEngine(t, testConfig())

		req := httptest.NewRequest(http.MethodOptions, "/quotes", nil)
		req.Header.Set("Origin", "https://example.org")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		w := do(engine, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origins only", func(t *testing.T) {
		cfg := testConfig()
		cfg.CORS.AllowOrigins = []string{"https://quotes.example.org"}

		engine := newTestEngine(t, cfg)

		allowed := httptest.NewRequest(http.MethodGet, "/quotes", nil)
		allowed.Header.Set("Origin", "https://quotes.example.org")

		w := do(engine, allowed)
		assert.Equal(t, "https://quotes.example.org", w.Header().Get("Access-Control-Allow-Origin"))

		denied := httptest.NewRequest(http.MethodGet, "/quotes", nil)
		denied.Header.Set("Origin", "https://evil.example.com")

		w = do(engine, denied)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSetupRouter_Gzip(t *testing.T) {
	engine := newTestEngine(t, testConfig(),
		domain.Quote{ID: "1", Title: "a", Text: strings.Repeat("long text ", 50), CreatedAt: "2024-01-01T00:00:00Z"},
	)

	req := httptest.NewRequest(http.MethodGet, "/quotes", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	w := do(engine, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)

	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":"1"`)

	probe := httptest.NewRequest(http.MethodGet, "/-/live", nil)
	probe.Header.Set("Accept-Encoding", "gzip")

	w = do(engine, probe)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}

func TestCorsConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig(&config.CORSConfig{}).AllowAllOrigins)

	out := corsConfig(&config.CORSConfig{
		AllowOrigins:     []string{"https://a.example"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	})

	assert.False(t, out.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example"}, out.AllowOrigins)
	assert.True(t, out.AllowCredentials)
	assert.Equal(t, time.Hour, out.MaxAge)
	assert.Contains(t, out.AllowHeaders, "X-Request-ID")
}

func ptr(s string) *string { return &s }

func TestCorsConfig_Wildcard(t *testing.T) {
	out := corsConfig(&config.CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})

	assert.True(t, out.AllowAllOrigins)
	assert.Empty(t, out.AllowOrigins)
	assert.False(t, out.AllowCredentials)
}
