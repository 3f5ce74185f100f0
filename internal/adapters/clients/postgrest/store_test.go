package postgrest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/adapters/clients"
	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

const testKey = "test-anon-key"

var _ ports.QuoteStore = (*Store)(nil)
var _ ports.HealthChecker = (*Store)(nil)

// setupStore creates a Store backed by a fake PostgREST server.
func setupStore(t *testing.T, schema string, handler http.HandlerFunc) *Store {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := clients.New(&clients.Config{
		ServiceName: "postgrest",
		BaseURL:     server.URL + "/rest/v1",
		Timeout:     5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     1,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   10,
			Timeout:       30 * time.Second,
			HalfOpenLimit: 3,
		},
		Transport: config.TransportConfig{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
		AuthFunc: AuthFunc(testKey),
	})
	require.NoError(t, err)

	return New(Config{
		Client: client,
		Schema: schema,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

const rowJSON = `{"id":"q-1","title":"On time","text":"Time is short.","author":"Seneca","theme":"wisdom","subtheme":null,"tags":["time"],"created_at":"2024-03-01T10:00:00+00:00"}`

func TestNew_PanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() {
		New(Config{Client: nil})
	})
}

func TestStore_Find(t *testing.T) {
	store := setupStore(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/quotes", r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Accept-Profile"))

		q := r.URL.Query()
		assert.Equal(t, "eq.wisdom", q.Get("theme"))
		assert.Equal(t, []string{`cs.{"time"}`}, q["tags"])
		assert.Equal(t, "created_at.desc.nullslast,id.desc", q.Get("order"))
		assert.Equal(t, "5", q.Get("limit"))

		writeJSON(w, http.StatusOK, "["+rowJSON+"]")
	})

	quotes, err := store.Find(context.Background(), domain.Query{
		Clauses: []domain.Clause{
			domain.Eq(domain.FieldTheme, "wisdom"),
			domain.ContainsTags("time"),
		},
		Sort: domain.DefaultSort,
		Page: domain.Page{Limit: 5},
	})

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "q-1", quotes[0].ID)
	assert.Equal(t, "Seneca", *quotes[0].Author)
	assert.Nil(t, quotes[0].Subtheme)
	assert.Equal(t, []string{"time"}, quotes[0].Tags)
}

func TestStore_Find_EmptyResult(t *testing.T) {
	store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	})

	quotes, err := store.Find(context.Background(), domain.Query{})

	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestStore_Find_ErrorStatus(t *testing.T) {
	store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"code":"22007","message":"invalid input syntax for type timestamp with time zone: \"yesterday\""}`)
	})

	_, err := store.Find(context.Background(), domain.Query{
		Clauses: []domain.Clause{domain.Gte(domain.FieldCreatedAt, "yesterday")},
	})

	require.Error(t, err)
	assert.True(t, domain.IsStore(err))
	assert.Contains(t, err.Error(), "yesterday")
}

func TestStore_Find_ServerError(t *testing.T) {
	store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"code":"57014","message":"canceling statement due to statement timeout"}`)
	})

	_, err := store.Find(context.Background(), domain.Query{})

	require.Error(t, err)
	assert.True(t, domain.IsStore(err))
	assert.Contains(t, err.Error(), "HTTP 500: 57014: canceling statement due to statement timeout")
}

func TestStore_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "eq.q-1", r.URL.Query().Get("id"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, "["+rowJSON+"]")
		})

		quote, err := store.Get(context.Background(), "q-1")

		require.NoError(t, err)
		assert.Equal(t, "On time", quote.Title)
	})

	t.Run("no rows", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `[]`)
		})

		_, err := store.Get(context.Background(), "missing")

		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("malformed id", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"code":"22P02","message":"invalid input syntax for type uuid"}`)
		})

		_, err := store.Get(context.Background(), "not-a-uuid")

		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestStore_Count(t *testing.T) {
	t.Run("exact count from content range", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodHead, r.Method)
			assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
			assert.Equal(t, "id", r.URL.Query().Get("select"))

			w.Header().Set("Content-Range", "0-24/42")
			w.WriteHeader(http.StatusOK)
		})

		n, err := store.Count(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 42, n)
	})

	t.Run("empty table", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Range", "*/0")
			w.WriteHeader(http.StatusOK)
		})

		n, err := store.Count(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("missing total", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Range", "0-24/*")
			w.WriteHeader(http.StatusOK)
		})

		_, err := store.Count(context.Background())

		require.Error(t, err)
		assert.True(t, domain.IsStore(err))
	})
}

func TestStore_Insert(t *testing.T) {
	store := setupStore(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"title":"On time","text":"Time is short.","author":"Seneca","tags":["time"]}`, string(body))

		writeJSON(w, http.StatusCreated, "["+rowJSON+"]")
	})

	quote, err := store.Insert(context.Background(), domain.NewQuote{
		Title:  "On time",
		Text:   "Time is short.",
		Author: strPtr("Seneca"),
		Tags:   []string{"time"},
	})

	require.NoError(t, err)
	assert.Equal(t, "q-1", quote.ID)
	assert.Equal(t, "2024-03-01T10:00:00+00:00", quote.CreatedAt)
}

func TestStore_Insert_NoRowReturned(t *testing.T) {
	store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, `[]`)
	})

	_, err := store.Insert(context.Background(), domain.NewQuote{Title: "T", Text: "X"})

	require.Error(t, err)
	assert.True(t, domain.IsStore(err))
}

func TestStore_Update(t *testing.T) {
	t.Run("patches supplied columns", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "eq.q-1", r.URL.Query().Get("id"))

			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"theme":"wisdom"}`, string(body))

			writeJSON(w, http.StatusOK, "["+rowJSON+"]")
		})

		quote, err := store.Update(context.Background(), "q-1", domain.QuotePatch{Theme: strPtr("wisdom")})

		require.NoError(t, err)
		assert.Equal(t, "wisdom", *quote.Theme)
	})

	t.Run("no matching row", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `[]`)
		})

		_, err := store.Update(context.Background(), "missing", domain.QuotePatch{Theme: strPtr("x")})

		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestStore_Delete(t *testing.T) {
	t.Run("returns deleted row", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "eq.q-1", r.URL.Query().Get("id"))
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

			writeJSON(w, http.StatusOK, "["+rowJSON+"]")
		})

		quote, err := store.Delete(context.Background(), "q-1")

		require.NoError(t, err)
		assert.Equal(t, "q-1", quote.ID)
	})

	t.Run("no matching row", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `[]`)
		})

		_, err := store.Delete(context.Background(), "missing")

		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestStore_SchemaProfileHeaders(t *testing.T) {
	store := setupStore(t, "library", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "library", r.Header.Get("Accept-Profile"))
			writeJSON(w, http.StatusOK, `[]`)
		default:
			assert.Equal(t, "library", r.Header.Get("Content-Profile"))
			writeJSON(w, http.StatusOK, "["+rowJSON+"]")
		}
	})

	_, err := store.Find(context.Background(), domain.Query{})
	require.NoError(t, err)

	_, err = store.Delete(context.Background(), "q-1")
	require.NoError(t, err)
}

func TestStore_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		assert.Equal(t, "postgrest", store.Name())
		assert.NoError(t, store.Check(context.Background()))
	})

	t.Run("bad key", func(t *testing.T) {
		store := setupStore(t, "", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusUnauthorized, `{"message":"Invalid API key"}`)
		})

		err := store.Check(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 401")
	})
}

func TestAuthFunc_EmptyKeySetsNothing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/quotes", http.NoBody)

	AuthFunc("")(req)

	assert.Empty(t, req.Header.Get("apikey"))
	assert.Empty(t, req.Header.Get("Authorization"))
}
