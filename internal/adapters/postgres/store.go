// Package postgres implements the quote store directly on PostgreSQL with pgx.
// It is the backend for deployments that reach the Supabase database without
// going through PostgREST, and for plain Postgres instances.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// codeInvalidTextRepresentation is raised when an id is not a valid uuid or integer.
const codeInvalidTextRepresentation = "22P02"

const (
	defaultSchema = "public"
	defaultTable  = "quotes"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Config contains configuration for the Postgres store.
type Config struct {
	// DB is the connection pool. Required.
	DB DB

	// Schema and Table locate the quotes table. Default to public.quotes.
	Schema string
	Table  string

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Store implements ports.QuoteStore on PostgreSQL.
type Store struct {
	db     DB
	table  string
	logger *slog.Logger
}

// New creates a Postgres store.
// Panics if DB is nil. Defaults logger to slog.Default() if nil.
func New(cfg Config) *Store {
	if cfg.DB == nil {
		panic("postgres.Store: DB is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schema := cfg.Schema
	if schema == "" {
		schema = defaultSchema
	}

	table := cfg.Table
	if table == "" {
		table = defaultTable
	}

	return &Store{
		db:     cfg.DB,
		table:  pgx.Identifier{schema, table}.Sanitize(),
		logger: logger.With(slog.String("component", "postgres.Store")),
	}
}

// Connect opens and pings a connection pool.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return pool, nil
}

// Find returns the rows matching the query.
func (s *Store) Find(ctx context.Context, q domain.Query) ([]domain.Quote, error) {
	const operation = "select quotes"

	sql, args, err := renderSelect(s.table, q)
	if err != nil {
		return nil, domain.NewStoreError(operation, err)
	}

	logging.FromContextOr(ctx, s.logger).Log(ctx, logging.LevelTrace, "executing query",
		slog.String("operation", operation),
		slog.String("sql", sql),
		slog.Int("args", len(args)),
	)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.mapError(ctx, err, operation, "")
	}

	quotes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Quote, error) {
		return scanQuote(row)
	})
	if err != nil {
		return nil, s.mapError(ctx, err, operation, "")
	}

	return quotes, nil
}

// Get returns one quote by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Quote, error) {
	sql := "SELECT " + selectColumns + " FROM " + s.table + " WHERE id = $1"

	return s.one(ctx, "select quote", id, sql, id)
}

// Count returns the number of stored quotes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int64

	err := s.db.QueryRow(ctx, "SELECT count(*) FROM "+s.table).Scan(&n)
	if err != nil {
		return 0, s.mapError(ctx, err, "count quotes", "")
	}

	return int(n), nil
}

// Insert creates a quote and returns the stored row.
func (s *Store) Insert(ctx context.Context, in domain.NewQuote) (*domain.Quote, error) {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	sql := "INSERT INTO " + s.table + " (title, text, author, theme, subtheme, tags)" +
		" VALUES ($1, $2, $3, $4, $5, $6) RETURNING " + selectColumns

	return s.one(ctx, "insert quote", "", sql, in.Title, in.Text, in.Author, in.Theme, in.Subtheme, tags)
}

// Update applies a patch to one quote and returns the stored row.
func (s *Store) Update(ctx context.Context, id string, patch domain.QuotePatch) (*domain.Quote, error) {
	const operation = "update quote"

	var (
		st   statement
		sets []string
	)

	set := func(col string, v any) {
		sets = append(sets, col+" = "+st.bind(v))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}

	if patch.Text != nil {
		set("text", *patch.Text)
	}

	if patch.Author != nil {
		set("author", *patch.Author)
	}

	if patch.Theme != nil {
		set("theme", *patch.Theme)
	}

	if patch.Subtheme != nil {
		set("subtheme", *patch.Subtheme)
	}

	if patch.Tags != nil {
		set("tags", patch.Tags)
	}

	if len(sets) == 0 {
		return nil, domain.NewValidationError("", "no update data provided")
	}

	sql := "UPDATE " + s.table + " SET " + strings.Join(sets, ", ") +
		" WHERE id = " + st.bind(id) + " RETURNING " + selectColumns

	return s.one(ctx, operation, id, sql, st.args...)
}

// Delete removes one quote and returns the deleted row.
func (s *Store) Delete(ctx context.Context, id string) (*domain.Quote, error) {
	sql := "DELETE FROM " + s.table + " WHERE id = $1 RETURNING " + selectColumns

	return s.one(ctx, "delete quote", id, sql, id)
}

// Name returns the health check name for this store.
// Implements ports.HealthChecker.
func (s *Store) Name() string {
	return "postgres"
}

// Check pings the database.
// Implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) one(ctx context.Context, operation, id, sql string, args ...any) (*domain.Quote, error) {
	quote, err := scanQuote(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, s.mapError(ctx, err, operation, id)
	}

	return &quote, nil
}

// mapError converts driver errors into domain errors.
// A malformed id cannot match any row, so it reads as not found.
func (s *Store) mapError(ctx context.Context, err error, operation, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		if id == "" {
			return domain.NewStoreError(operation, errors.New("statement returned no row"))
		}

		return domain.NewNotFoundError(domain.EntityQuote, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeInvalidTextRepresentation && id != "" {
		return domain.NewNotFoundError(domain.EntityQuote, id)
	}

	logging.FromContextOr(ctx, s.logger).WarnContext(ctx, "postgres error",
		slog.String("operation", operation),
		slog.Any("error", err),
	)

	return domain.NewStoreError(operation, err)
}

func scanQuote(row pgx.Row) (domain.Quote, error) {
	var (
		q         domain.Quote
		createdAt time.Time
	)

	err := row.Scan(&q.ID, &q.Title, &q.Text, &q.Author, &q.Theme, &q.Subtheme, &q.Tags, &createdAt)
	if err != nil {
		return domain.Quote{}, err
	}

	if !createdAt.IsZero() {
		q.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	}

	return q, nil
}
