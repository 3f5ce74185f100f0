package postgrest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/jsamuelsen/quotes-api/internal/adapters/clients"
	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// Request headers understood by PostgREST.
const (
	headerAPIKey         = "apikey"
	headerPrefer         = "Prefer"
	headerContentRange   = "Content-Range"
	headerAcceptProfile  = "Accept-Profile"
	headerContentProfile = "Content-Profile"

	preferCount          = "count=exact"
	preferRepresentation = "return=representation"

	defaultTable  = "quotes"
	defaultSchema = "public"
)

// Config contains configuration for the PostgREST store.
type Config struct {
	// Client is the HTTP client to use for requests.
	// Its BaseURL should point at the REST root, e.g. https://xyz.supabase.co/rest/v1.
	Client *clients.Client

	// Table is the quotes table. Defaults to "quotes".
	Table string

	// Schema selects a non-public schema through the profile headers.
	Schema string

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Store implements ports.QuoteStore over PostgREST.
type Store struct {
	client *clients.Client
	table  string
	schema string
	logger *slog.Logger
}

// New creates a PostgREST store.
// Panics if Client is nil. Defaults logger to slog.Default() if nil.
func New(cfg Config) *Store {
	if cfg.Client == nil {
		panic("postgrest.Store: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	table := cfg.Table
	if table == "" {
		table = defaultTable
	}

	return &Store{
		client: cfg.Client,
		table:  table,
		schema: cfg.Schema,
		logger: logger.With(slog.String("component", "postgrest.Store")),
	}
}

// AuthFunc returns a clients.Config AuthFunc that sends the Supabase key both as
// the apikey header and as a bearer token.
func AuthFunc(key string) func(*http.Request) {
	return func(r *http.Request) {
		if key == "" {
			return
		}

		r.Header.Set(headerAPIKey, key)
		r.Header.Set("Authorization", "Bearer "+key)
	}
}

// Find returns the rows matching the query.
func (s *Store) Find(ctx context.Context, q domain.Query) ([]domain.Quote, error) {
	const operation = "select quotes"

	resp, err := s.send(ctx, http.MethodGet, Render(q), nil, "", operation, "")
	if err != nil {
		return nil, err
	}

	return s.decodeRows(resp.Body, operation)
}

// Get returns one quote by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Quote, error) {
	const operation = "select quote"

	query := IDFilter(id)
	query.Set("select", "*")
	query.Set("limit", "1")

	resp, err := s.send(ctx, http.MethodGet, query, nil, "", operation, id)
	if err != nil {
		return nil, err
	}

	return s.single(resp.Body, operation, id)
}

// Count returns the exact number of rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	const operation = "count quotes"

	resp, err := s.send(ctx, http.MethodHead, url.Values{"select": {"id"}}, nil, preferCount, operation, "")
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()

	total, err := parseContentRange(resp.Header.Get(headerContentRange))
	if err != nil {
		return 0, domain.NewStoreError(operation, err)
	}

	return total, nil
}

// Insert creates a quote and returns the stored row.
func (s *Store) Insert(ctx context.Context, in domain.NewQuote) (*domain.Quote, error) {
	const operation = "insert quote"

	resp, err := s.send(ctx, http.MethodPost, nil, fromNewQuote(in), preferRepresentation, operation, "")
	if err != nil {
		return nil, err
	}

	quotes, err := s.decodeRows(resp.Body, operation)
	if err != nil {
		return nil, err
	}

	if len(quotes) == 0 {
		return nil, domain.NewStoreError(operation, errors.New("insert returned no row"))
	}

	return &quotes[0], nil
}

// Update applies a patch to one quote and returns the stored row.
func (s *Store) Update(ctx context.Context, id string, patch domain.QuotePatch) (*domain.Quote, error) {
	const operation = "update quote"

	resp, err := s.send(ctx, http.MethodPatch, IDFilter(id), fromPatch(patch), preferRepresentation, operation, id)
	if err != nil {
		return nil, err
	}

	return s.single(resp.Body, operation, id)
}

// Delete removes one quote and returns the deleted row.
func (s *Store) Delete(ctx context.Context, id string) (*domain.Quote, error) {
	const operation = "delete quote"

	resp, err := s.send(ctx, http.MethodDelete, IDFilter(id), nil, preferRepresentation, operation, id)
	if err != nil {
		return nil, err
	}

	return s.single(resp.Body, operation, id)
}

// Name returns the health check name for this store.
// Implements ports.HealthChecker.
func (s *Store) Name() string {
	return "postgrest"
}

// Check verifies the table is reachable with the configured key.
// Implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	query := url.Values{"select": {"id"}, "limit": {"1"}}

	resp, err := s.send(ctx, http.MethodHead, query, nil, "", "health check", "")
	if err != nil {
		return err
	}

	return resp.Body.Close()
}

// send executes one request and maps every failure to a domain error.
// On success the caller owns the response body.
func (s *Store) send(
	ctx context.Context,
	method string,
	query url.Values,
	payload any,
	prefer, operation, entityID string,
) (*http.Response, error) {
	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, domain.NewStoreError(operation, fmt.Errorf("encoding body: %w", err))
		}

		body = bytes.NewReader(data)
	}

	req, err := s.client.NewRequest(ctx, method, "/"+s.table, query, body)
	if err != nil {
		return nil, domain.NewStoreError(operation, err)
	}

	if prefer != "" {
		req.Header.Set(headerPrefer, prefer)
	}

	s.setProfile(req)

	logger := logging.FromContextOr(ctx, s.logger)
	logger.Log(ctx, logging.LevelTrace, "starting request",
		slog.String("operation", operation),
		slog.String("method", method),
		slog.String("query", req.URL.RawQuery),
	)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, failure(operation, entityID, nil, err)
	}

	logger.Log(ctx, logging.LevelTrace, "request complete",
		slog.String("operation", operation),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode >= http.StatusMultipleChoices {
		defer func() { _ = resp.Body.Close() }()

		mapped := failure(operation, entityID, resp, nil)
		logger.WarnContext(ctx, "postgrest error",
			slog.String("operation", operation),
			slog.Int("status_code", resp.StatusCode),
			slog.Any("error", mapped),
		)

		return nil, mapped
	}

	return resp, nil
}

func (s *Store) setProfile(req *http.Request) {
	if s.schema == "" || s.schema == defaultSchema {
		return
	}

	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		req.Header.Set(headerAcceptProfile, s.schema)
		return
	}

	req.Header.Set(headerContentProfile, s.schema)
}

func (s *Store) decodeRows(body io.ReadCloser, operation string) ([]domain.Quote, error) {
	rows, err := DecodeResponse[[]quoteRow](body)
	if err != nil {
		return nil, domain.NewStoreError(operation, err)
	}

	quotes, err := TranslateSlice(*rows, toDomain)
	if err != nil {
		return nil, domain.NewStoreError(operation, err)
	}

	return quotes, nil
}

// single returns the first row, or not found when the filter matched nothing.
func (s *Store) single(body io.ReadCloser, operation, id string) (*domain.Quote, error) {
	quotes, err := s.decodeRows(body, operation)
	if err != nil {
		return nil, err
	}

	if len(quotes) == 0 {
		return nil, domain.NewNotFoundError(domain.EntityQuote, id)
	}

	return &quotes[0], nil
}

// parseContentRange extracts the total from "0-24/3573" or "*/0".
func parseContentRange(header string) (int, error) {
	_, total, ok := strings.Cut(header, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("content range %q carries no total", header)
	}

	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("parsing content range %q: %w", header, err)
	}

	return n, nil
}
