// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrStore, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// QuoteStore is the record store holding quotes.
// Backends translate domain.Query into their native query language and must
// wrap infrastructure failures with domain.NewStoreError.
type QuoteStore interface {
	// Find executes a composed query. An empty result is not an error.
	Find(ctx context.Context, q domain.Query) ([]domain.Quote, error)

	// Get returns the quote with the given id.
	// Returns domain.ErrNotFound if no row matches.
	Get(ctx context.Context, id string) (*domain.Quote, error)

	// Count returns the number of stored quotes.
	Count(ctx context.Context) (int, error)

	// Insert stores a new quote and returns it with id and created_at assigned.
	Insert(ctx context.Context, q domain.NewQuote) (*domain.Quote, error)

	// Update applies a partial update and returns the stored result.
	// Returns domain.ErrNotFound if no row matches.
	Update(ctx context.Context, id string, patch domain.QuotePatch) (*domain.Quote, error)

	// Delete removes a quote and returns what was removed.
	// Returns domain.ErrNotFound if no row matches.
	Delete(ctx context.Context, id string) (*domain.Quote, error)
}
