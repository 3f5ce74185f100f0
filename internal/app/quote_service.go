// Package app contains application services that orchestrate use cases.
// This is the application layer - it composes store queries from request
// parameters, drives mutations through the Executor and aggregates statistics.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// Statistics fetch defaults. PostgREST caps responses at 1000 rows by default.
const (
	DefaultStatsPageSize    = 1000
	DefaultStatsConcurrency = 4
)

// QuoteService orchestrates quote use cases.
// It depends on port interfaces, not concrete implementations.
type QuoteService struct {
	store     ports.QuoteStore
	publisher ports.EventPublisher
	executor  *Executor
	logger    *slog.Logger

	statsPageSize    int
	statsConcurrency int

	intn func(n int) int
	now  func() time.Time
}

// QuoteServiceConfig contains the dependencies of the quote service.
type QuoteServiceConfig struct {
	// Store is required.
	Store ports.QuoteStore

	// Publisher receives change events. Defaults to a no-op publisher.
	Publisher ports.EventPublisher

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// StatsPageSize is the number of rows fetched per request when loading the
	// whole collection for statistics.
	StatsPageSize int

	// StatsConcurrency bounds the number of page fetches in flight.
	StatsConcurrency int

	// Intn overrides the random source used by Random. Tests only.
	Intn func(n int) int
}

// NewQuoteService creates a new quote service with the provided dependencies.
// Panics if Store is nil.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil {
		panic("QuoteService: Store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}

	pageSize := cfg.StatsPageSize
	if pageSize <= 0 {
		pageSize = DefaultStatsPageSize
	}

	concurrency := cfg.StatsConcurrency
	if concurrency <= 0 {
		concurrency = DefaultStatsConcurrency
	}

	intn := cfg.Intn
	if intn == nil {
		intn = rand.IntN //nolint:gosec // No need for crypto-grade randomness
	}

	return &QuoteService{
		store:            cfg.Store,
		publisher:        publisher,
		executor:         NewExecutor(logger),
		logger:           logger.With(slog.String("component", "app.QuoteService")),
		statsPageSize:    pageSize,
		statsConcurrency: concurrency,
		intn:             intn,
		now:              time.Now,
	}
}

// List returns quotes matching the list filters.
func (s *QuoteService) List(ctx context.Context, p ListParams) ([]domain.Quote, error) {
	q, err := ComposeList(p)
	if err != nil {
		return nil, err
	}

	return s.find(ctx, "list quotes", q)
}

// Search returns quotes whose selected fields contain the keyword.
func (s *QuoteService) Search(ctx context.Context, p SearchParams) ([]domain.Quote, error) {
	q, err := ComposeSearch(p)
	if err != nil {
		return nil, err
	}

	return s.find(ctx, "search quotes", q)
}

// SearchByTags returns quotes carrying the requested tags.
func (s *QuoteService) SearchByTags(ctx context.Context, p TagSearchParams) ([]domain.Quote, error) {
	q, err := ComposeTagSearch(p)
	if err != nil {
		return nil, err
	}

	return s.find(ctx, "search quotes by tags", q)
}

// ListByTheme returns quotes with exactly the given theme.
func (s *QuoteService) ListByTheme(ctx context.Context, theme string, page domain.Page) ([]domain.Quote, error) {
	q, err := ComposeTheme(theme, page)
	if err != nil {
		return nil, err
	}

	return s.find(ctx, "list quotes by theme", q)
}

func (s *QuoteService) find(ctx context.Context, operation string, q domain.Query) ([]domain.Quote, error) {
	logger := s.loggerFrom(ctx)

	logger.DebugContext(ctx, operation,
		slog.Int("clauses", len(q.Clauses)),
		slog.Bool("search", q.Search != nil),
		slog.String("sort", string(q.Sort.Field)),
		slog.Int("offset", q.Page.Offset),
		slog.Int("limit", q.Page.Limit),
	)

	quotes, err := s.store.Find(ctx, q)
	if err != nil {
		logger.ErrorContext(ctx, operation+" failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return quotes, nil
}

// Get returns a quote by id.
func (s *QuoteService) Get(ctx context.Context, id string) (*domain.Quote, error) {
	s.loggerFrom(ctx).DebugContext(ctx, "fetching quote", slog.String("quote_id", id))

	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting quote: %w", err)
	}

	return quote, nil
}

// Random returns one quote chosen uniformly over the current default ordering.
// Count and fetch are separate store calls; a concurrent delete between them
// can surface as not found.
func (s *QuoteService) Random(ctx context.Context) (*domain.Quote, error) {
	logger := s.loggerFrom(ctx)

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting quotes: %w", err)
	}

	if total == 0 {
		return nil, domain.NewNotFoundError(domain.EntityQuote, "")
	}

	offset := s.intn(total)
	logger.DebugContext(ctx, "selecting random quote",
		slog.Int("total", total),
		slog.Int("offset", offset),
	)

	quotes, err := s.store.Find(ctx, domain.Query{
		Sort: domain.DefaultSort,
		Page: domain.Page{Offset: offset, Limit: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching random quote: %w", err)
	}

	if len(quotes) == 0 {
		return nil, domain.NewNotFoundError(domain.EntityQuote, "")
	}

	return &quotes[0], nil
}

// Create validates and inserts a quote, then announces it.
func (s *QuoteService) Create(ctx context.Context, in domain.NewQuote) (*domain.Quote, error) {
	op := Operation[domain.NewQuote, *domain.Quote, *domain.Quote, *domain.Quote]{
		Name: "create_quote",
		Validate: func(_ context.Context, in domain.NewQuote) error {
			return in.Validate()
		},
		Perform: func(ctx context.Context, in domain.NewQuote) (*domain.Quote, error) {
			return s.store.Insert(ctx, in)
		},
		Verify: func(_ context.Context, _ domain.NewQuote, created *domain.Quote) (*domain.Quote, error) {
			if created == nil || created.ID == "" {
				return nil, domain.NewStoreError("insert quote", errors.New("store returned no row"))
			}

			return created, nil
		},
		Archive: func(ctx context.Context, _ domain.NewQuote, created *domain.Quote) error {
			s.announce(ctx, EventQuoteCreated, created)
			return nil
		},
		Respond: identity[domain.NewQuote],
	}

	return Execute(ctx, s.executor, op, in)
}

type updateInput struct {
	id    string
	patch domain.QuotePatch
}

// Update applies a partial update. An empty patch is a validation error.
func (s *QuoteService) Update(ctx context.Context, id string, patch domain.QuotePatch) (*domain.Quote, error) {
	op := Operation[updateInput, *domain.Quote, *domain.Quote, *domain.Quote]{
		Name: "update_quote",
		Validate: func(_ context.Context, in updateInput) error {
			if in.id == "" {
				return domain.NewValidationError("id", "is required")
			}

			return in.patch.Validate()
		},
		Perform: func(ctx context.Context, in updateInput) (*domain.Quote, error) {
			return s.store.Update(ctx, in.id, in.patch)
		},
		Verify: func(_ context.Context, in updateInput, updated *domain.Quote) (*domain.Quote, error) {
			if updated == nil {
				return nil, domain.NewNotFoundError(domain.EntityQuote, in.id)
			}

			return updated, nil
		},
		Archive: func(ctx context.Context, _ updateInput, updated *domain.Quote) error {
			s.announce(ctx, EventQuoteUpdated, updated)
			return nil
		},
		Respond: identity[updateInput],
	}

	return Execute(ctx, s.executor, op, updateInput{id: id, patch: patch})
}

// Delete removes a quote and returns its id.
func (s *QuoteService) Delete(ctx context.Context, id string) (string, error) {
	op := Operation[string, *domain.Quote, *domain.Quote, string]{
		Name: "delete_quote",
		Validate: func(_ context.Context, id string) error {
			if id == "" {
				return domain.NewValidationError("id", "is required")
			}

			return nil
		},
		Perform: func(ctx context.Context, id string) (*domain.Quote, error) {
			return s.store.Delete(ctx, id)
		},
		Verify: func(_ context.Context, id string, deleted *domain.Quote) (*domain.Quote, error) {
			if deleted == nil {
				return nil, domain.NewNotFoundError(domain.EntityQuote, id)
			}

			return deleted, nil
		},
		Archive: func(ctx context.Context, _ string, deleted *domain.Quote) error {
			s.announce(ctx, EventQuoteDeleted, deleted)
			return nil
		},
		Respond: func(_ context.Context, id string, _ *domain.Quote) (string, error) {
			return id, nil
		},
	}

	return Execute(ctx, s.executor, op, id)
}

// Stats loads the whole collection and summarizes it.
// Pages are fetched concurrently in stable id order and merged before aggregation.
func (s *QuoteService) Stats(ctx context.Context) (*domain.Stats, error) {
	quotes, err := s.loadAll(ctx)
	if err != nil {
		s.loggerFrom(ctx).ErrorContext(ctx, "loading quotes for statistics failed", slog.Any("error", err))
		return nil, domain.NewAggregationError(err)
	}

	stats := domain.ComputeStats(quotes)

	return &stats, nil
}

func (s *QuoteService) loadAll(ctx context.Context) ([]domain.Quote, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	pages := (total + s.statsPageSize - 1) / s.statsPageSize
	fetches := make([]func(context.Context) ([]domain.Quote, error), pages)

	for i := range fetches {
		offset := i * s.statsPageSize
		fetches[i] = func(ctx context.Context) ([]domain.Quote, error) {
			return s.fetchPage(ctx, offset)
		}
	}

	results, err := ParallelLimit(ctx, s.statsConcurrency, fetches...)
	if err != nil {
		return nil, err
	}

	all := make([]domain.Quote, 0, total)
	for _, page := range results {
		all = append(all, page...)
	}

	// Rows inserted after the count land past the last planned page.
	for offset := pages * s.statsPageSize; len(all) == offset; offset += s.statsPageSize {
		page, err := s.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}

		if len(page) == 0 {
			break
		}

		all = append(all, page...)
	}

	return all, nil
}

func (s *QuoteService) fetchPage(ctx context.Context, offset int) ([]domain.Quote, error) {
	return s.store.Find(ctx, domain.Query{
		Sort: domain.Sort{Field: domain.FieldID},
		Page: domain.Page{Offset: offset, Limit: s.statsPageSize},
	})
}

// announce publishes a change event. Failures are logged and never fail the request.
func (s *QuoteService) announce(ctx context.Context, eventType string, q *domain.Quote) {
	err := s.publisher.Publish(ctx, NewQuoteEvent(eventType, q, s.now()))
	if err != nil {
		s.loggerFrom(ctx).WarnContext(ctx, "publishing quote event failed",
			slog.String("event", eventType),
			slog.String("quote_id", q.ID),
			slog.Any("error", err),
		)
	}
}

func (s *QuoteService) loggerFrom(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

func identity[I any](_ context.Context, _ I, q *domain.Quote) (*domain.Quote, error) {
	return q, nil
}
