package app

import (
	"time"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// Quote change event types, used as routing keys.
const (
	EventQuoteCreated = "quote.created"
	EventQuoteUpdated = "quote.updated"
	EventQuoteDeleted = "quote.deleted"
)

// QuoteEvent announces a change to a stored quote.
type QuoteEvent struct {
	Type       string    `json:"type"`
	QuoteID    string    `json:"quote_id"`
	Title      string    `json:"title,omitempty"`
	Theme      *string   `json:"theme,omitempty"`
	Author     *string   `json:"author,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewQuoteEvent builds an event from the stored state of a quote.
func NewQuoteEvent(eventType string, q *domain.Quote, at time.Time) QuoteEvent {
	return QuoteEvent{
		Type:       eventType,
		QuoteID:    q.ID,
		Title:      q.Title,
		Theme:      q.Theme,
		Author:     q.Author,
		Tags:       q.Tags,
		OccurredAt: at.UTC(),
	}
}

// EventType implements ports.Event.
func (e QuoteEvent) EventType() string { return e.Type }

// Payload implements ports.Event.
func (e QuoteEvent) Payload() any { return e }
