//go:build integration

package integration

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
)

// fakePostgREST serves a read-only quotes table the way PostgREST does:
// HEAD with Prefer: count=exact answers Content-Range, GET honors id=eq.,
// limit and offset. Other filters are ignored.
type fakePostgREST struct {
	rows []map[string]any

	// fail, while positive, answers that many requests with 503.
	fail atomic.Int32

	// broken answers every request with 500.
	broken atomic.Bool

	requests atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu      sync.Mutex
	headers []http.Header
}

func newFakePostgREST(t *testing.T, n int) (*fakePostgREST, *httptest.Server) {
	t.Helper()

	f := &fakePostgREST{}
	themes := []string{"wisdom", "courage", "change"}

	for i := 1; i <= n; i++ {
		f.rows = append(f.rows, map[string]any{
			"id":         i,
			"title":      fmt.Sprintf("quote %d", i),
			"text":       "text",
			"theme":      themes[i%len(themes)],
			"tags":       []string{"t" + strconv.Itoa(i%2)},
			"created_at": fmt.Sprintf("2024-%02d-01T00:00:00Z", i%12+1),
		})
	}

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	// Keeps page fetches overlapping long enough to observe the bound.
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	if r.URL.Path != "/rest/v1/quotes" {
		http.NotFound(w, r)
		return
	}

	if f.broken.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if f.fail.Add(-1) >= 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Range", fmt.Sprintf("*/%d", len(f.rows)))
		w.WriteHeader(http.StatusOK)

		return
	}

	if id := q.Get("id"); id != "" {
		f.serveOne(w, strings.TrimPrefix(id, "eq."))
		return
	}

	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = len(f.rows)
	}

	start := min(offset, len(f.rows))
	end := min(start+limit, len(f.rows))

	writeJSON(w, http.StatusOK, f.rows[start:end])
}

func (f *fakePostgREST) serveOne(w http.ResponseWriter, id string) {
	n, err := strconv.Atoi(id)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "22P02",
			"message": fmt.Sprintf("invalid input syntax for type bigint: %q", id),
		})

		return
	}

	if n < 1 || n > len(f.rows) {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	writeJSON(w, http.StatusOK, f.rows[n-1:n])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// postgrestConfig points the service at the fake with fast retries.
func postgrestConfig(t *testing.T, url string) *config.Config {
	t.Helper()

	cfg := loadConfig(t)
	cfg.Store.Backend = config.BackendPostgREST
	cfg.Store.PostgREST = config.PostgRESTConfig{URL: url, Key: "anon-key"}
	cfg.Store.PageSize = 100
	cfg.Store.FetchConcurrency = 3
	cfg.Client.Retry.MaxAttempts = 3
	cfg.Client.Retry.InitialInterval = 10 * time.Millisecond
	cfg.Client.Retry.MaxInterval = 100 * time.Millisecond
	cfg.Client.CircuitBreaker.MaxFailures = 2
	cfg.Client.CircuitBreaker.Timeout = time.Minute

	return cfg
}

func get(t *testing.T, url string, header ...string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)

	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func TestPostgREST_StatsPagesWholeTable(t *testing.T) {
	fake, upstream := newFakePostgREST(t, 250)
	svc := startService(t, postgrestConfig(t, upstream.URL))

	resp, body := get(t, svc.URL+"/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var stats dto.StatsResponse
	require.NoError(t, json.Unmarshal(body, &stats))

	assert.Equal(t, 250, stats.TotalQuotes)
	assert.Equal(t, 250, stats.Themes["wisdom"]+stats.Themes["courage"]+stats.Themes["change"])
	assert.Equal(t, 125, stats.Tags["t0"])
	assert.Len(t, stats.MonthlyStats, 12)
	assert.LessOrEqual(t, fake.maxSeen.Load(), int32(3), "page fetches exceed the configured concurrency")
}

func TestPostgREST_GetByID(t *testing.T) {
	_, upstream := newFakePostgREST(t, 3)
	svc := startService(t, postgrestConfig(t, upstream.URL))

	resp, body := get(t, svc.URL+"/quotes/2")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"title":"quote 2"`)

	resp, _ = get(t, svc.URL+"/quotes/99")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A malformed key reaches PostgREST as a 22P02 cast error.
	resp, body = get(t, svc.URL+"/quotes/not-a-number")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), dto.ErrorCodeNotFound)
}

func TestPostgREST_RetriesTransientFailures(t *testing.T) {
	fake, upstream := newFakePostgREST(t, 5)
	fake.fail.Store(2)

	svc := startService(t, postgrestConfig(t, upstream.URL))

	resp, body := get(t, svc.URL+"/quotes?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, int32(3), fake.requests.Load())
}

func TestPostgREST_CircuitOpensOnPersistentFailure(t *testing.T) {
	fake, upstream := newFakePostgREST(t, 5)
	fake.broken.Store(true)

	svc := startService(t, postgrestConfig(t, upstream.URL))

	for range 2 {
		resp, body := get(t, svc.URL+"/quotes")
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, string(body), dto.ErrorCodeStore)
	}

	hits := fake.requests.Load()

	resp, body := get(t, svc.URL+"/quotes")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "circuit breaker open")
	assert.Equal(t, hits, fake.requests.Load(), "open circuit must not reach the store")

	resp, _ = get(t, svc.URL+"/-/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPostgREST_PropagatesHeaders(t *testing.T) {
	fake, upstream := newFakePostgREST(t, 1)
	svc := startService(t, postgrestConfig(t, upstream.URL))

	resp, _ := get(t, svc.URL+"/quotes/1",
		"X-Request-ID", "req-int-1",
		"X-Correlation-ID", "corr-int-1",
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.NotEmpty(t, fake.headers)

	last := fake.headers[len(fake.headers)-1]
	assert.Equal(t, "req-int-1", last.Get("X-Request-ID"))
	assert.Equal(t, "corr-int-1", last.Get("X-Correlation-ID"))
	assert.Equal(t, "anon-key", last.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", last.Get("Authorization"))
}
