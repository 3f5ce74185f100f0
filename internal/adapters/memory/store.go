// Package memory provides an in-process quote store for local development and tests.
// It evaluates domain.Query with the same semantics the remote backends render:
// conjunctive clauses, optional text search, a single sort key with an id
// tiebreak and an offset window.
package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// createdAtLayout keeps six fractional digits so created_at values order
// lexically, matching the precision Postgres stores.
const createdAtLayout = "2006-01-02T15:04:05.000000Z07:00"

// Store implements ports.QuoteStore in memory. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	logger *slog.Logger

	newID func() string
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the created_at source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides id generation.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithQuotes seeds the store. Seeded quotes keep their ids; parseable
// timestamps are rewritten in UTC with fixed precision.
func WithQuotes(quotes ...domain.Quote) Option {
	return func(s *Store) {
		for _, q := range quotes {
			q.CreatedAt = normalizeTimestamp(q.CreatedAt)
			s.quotes[q.ID] = clone(q)
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		quotes: make(map[string]domain.Quote),
		logger: slog.Default(),
		newID:  uuid.NewString,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(slog.String("component", "memory.Store"))

	return s
}

// Find returns the rows matching the query.
func (s *Store) Find(ctx context.Context, q domain.Query) ([]domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("select quotes", err)
	}

	s.mu.RLock()
	matched := make([]domain.Quote, 0, len(s.quotes))
	for _, quote := range s.quotes {
		if q.Matches(quote) {
			matched = append(matched, clone(quote))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Quote) int {
		switch {
		case q.Sort.Less(a, b):
			return -1
		case q.Sort.Less(b, a):
			return 1
		default:
			return 0
		}
	})

	return window(matched, q.Page), nil
}

// Get returns one quote by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("select quote", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, ok := s.quotes[id]
	if !ok {
		return nil, domain.NewNotFoundError(domain.EntityQuote, id)
	}

	out := clone(quote)

	return &out, nil
}

// Count returns the number of stored quotes.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStoreError("count quotes", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes), nil
}

// Insert stores a new quote with a generated id and the current time.
func (s *Store) Insert(ctx context.Context, in domain.NewQuote) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("insert quote", err)
	}

	quote := domain.Quote{
		ID:        s.newID(),
		Title:     in.Title,
		Text:      in.Text,
		Author:    in.Author,
		Theme:     in.Theme,
		Subtheme:  in.Subtheme,
		Tags:      in.Tags,
		CreatedAt: s.now().UTC().Format(createdAtLayout),
	}
	quote = clone(quote)

	s.mu.Lock()
	s.quotes[quote.ID] = quote
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "quote inserted", slog.String("quote_id", quote.ID))

	out := clone(quote)

	return &out, nil
}

// Update applies a patch to one quote.
func (s *Store) Update(ctx context.Context, id string, patch domain.QuotePatch) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("update quote", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quote, ok := s.quotes[id]
	if !ok {
		return nil, domain.NewNotFoundError(domain.EntityQuote, id)
	}

	quote = patch.Apply(quote)
	s.quotes[id] = quote

	out := clone(quote)

	return &out, nil
}

// Delete removes one quote and returns it.
func (s *Store) Delete(ctx context.Context, id string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("delete quote", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quote, ok := s.quotes[id]
	if !ok {
		return nil, domain.NewNotFoundError(domain.EntityQuote, id)
	}

	delete(s.quotes, id)

	return &quote, nil
}

// Name returns the health check name for this store.
// Implements ports.HealthChecker.
func (s *Store) Name() string {
	return "memory"
}

// Check always succeeds.
// Implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	return ctx.Err()
}

func window(quotes []domain.Quote, p domain.Page) []domain.Quote {
	if p.Offset >= len(quotes) {
		return []domain.Quote{}
	}

	quotes = quotes[p.Offset:]

	if p.Limit > 0 && p.Limit < len(quotes) {
		quotes = quotes[:p.Limit]
	}

	return quotes
}

func normalizeTimestamp(v string) string {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return v
	}

	return t.UTC().Format(createdAtLayout)
}

func clone(q domain.Quote) domain.Quote {
	q.Author = copyString(q.Author)
	q.Theme = copyString(q.Theme)
	q.Subtheme = copyString(q.Subtheme)

	if q.Tags != nil {
		q.Tags = slices.Clone(q.Tags)
	}

	return q
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}
