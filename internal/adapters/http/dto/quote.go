package dto

import "github.com/jsamuelsen/quotes-api/internal/domain"

// QuoteResponse is the JSON representation of a stored quote.
// Optional fields are omitted when the store holds no value.
type QuoteResponse struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Text      string   `json:"text"`
	Author    *string  `json:"author,omitempty"`
	Theme     *string  `json:"theme,omitempty"`
	Subtheme  *string  `json:"subtheme,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// FromQuote maps a domain quote to its response shape.
func FromQuote(q *domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:        q.ID,
		Title:     q.Title,
		Text:      q.Text,
		Author:    q.Author,
		Theme:     q.Theme,
		Subtheme:  q.Subtheme,
		Tags:      q.Tags,
		CreatedAt: q.CreatedAt,
	}
}

// FromQuotes maps a result set. An empty set encodes as [] rather than null.
func FromQuotes(quotes []domain.Quote) []QuoteResponse {
	out := make([]QuoteResponse, 0, len(quotes))
	for i := range quotes {
		out = append(out, FromQuote(&quotes[i]))
	}

	return out
}

// CreateQuoteRequest is the body of POST /quotes.
type CreateQuoteRequest struct {
	Title    string   `json:"title"    validate:"required,notblank"`
	Text     string   `json:"text"     validate:"required,notblank"`
	Author   *string  `json:"author"`
	Theme    *string  `json:"theme"`
	Subtheme *string  `json:"subtheme"`
	Tags     []string `json:"tags"     validate:"omitempty,dive,notblank"`
}

// ToDomain converts the request into the insert payload.
func (r CreateQuoteRequest) ToDomain() domain.NewQuote {
	return domain.NewQuote{
		Title:    r.Title,
		Text:     r.Text,
		Author:   r.Author,
		Theme:    r.Theme,
		Subtheme: r.Subtheme,
		Tags:     r.Tags,
	}
}

// UpdateQuoteRequest is the body of PUT /quotes/{id}.
// Fields left out or set to null are not changed.
type UpdateQuoteRequest struct {
	Title    *string  `json:"title"`
	Text     *string  `json:"text"`
	Author   *string  `json:"author"`
	Theme    *string  `json:"theme"`
	Subtheme *string  `json:"subtheme"`
	Tags     []string `json:"tags"`
}

// ToDomain converts the request into a partial update.
func (r UpdateQuoteRequest) ToDomain() domain.QuotePatch {
	return domain.QuotePatch{
		Title:    r.Title,
		Text:     r.Text,
		Author:   r.Author,
		Theme:    r.Theme,
		Subtheme: r.Subtheme,
		Tags:     r.Tags,
	}
}

// DeleteQuoteResponse confirms a deletion.
type DeleteQuoteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// NewDeleteQuoteResponse builds the deletion confirmation for id.
func NewDeleteQuoteResponse(id string) DeleteQuoteResponse {
	return DeleteQuoteResponse{
		Message: "Quote deleted successfully",
		ID:      id,
	}
}

// ListQuotesRequest holds the filters of GET /quotes.
type ListQuotesRequest struct {
	PaginationRequest
	SortRequest

	Theme    string `form:"theme"`
	Subtheme string `form:"subtheme"`
	Tags     string `form:"tags"`
	Author   string `form:"author"`
	DateFrom string `form:"date_from" validate:"omitempty,isodate"`
	DateTo   string `form:"date_to"   validate:"omitempty,isodate"`
}

// SearchQuotesRequest holds the parameters of GET /quotes/search.
type SearchQuotesRequest struct {
	PaginationRequest
	SortRequest

	Query        string `form:"q"             validate:"required,notblank"`
	SearchFields string `form:"search_fields"`
	SearchType   string `form:"search_type"`
}

// TagSearchRequest holds the parameters of GET /quotes/tags.
type TagSearchRequest struct {
	PaginationRequest
	SortRequest

	Tags     string `form:"tags"      validate:"required,taglist"`
	MatchAll bool   `form:"match_all"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	TotalQuotes  int               `json:"total_quotes"`
	Themes       map[string]int    `json:"themes"`
	Subthemes    map[string]int    `json:"subthemes"`
	Authors      map[string]int    `json:"authors"`
	Tags         map[string]int    `json:"tags"`
	DateRange    DateRangeResponse `json:"date_range"`
	MonthlyStats map[string]int    `json:"monthly_stats"`
}

// DateRangeResponse holds the oldest and newest created_at values, null when empty.
type DateRangeResponse struct {
	Min *string `json:"min"`
	Max *string `json:"max"`
}

// FromStats maps aggregated statistics to the response shape.
func FromStats(s *domain.Stats) StatsResponse {
	return StatsResponse{
		TotalQuotes:  s.TotalQuotes,
		Themes:       nonNil(s.Themes),
		Subthemes:    nonNil(s.Subthemes),
		Authors:      nonNil(s.Authors),
		Tags:         nonNil(s.Tags),
		DateRange:    DateRangeResponse{Min: s.DateRange.Min, Max: s.DateRange.Max},
		MonthlyStats: nonNil(s.MonthlyStats),
	}
}

// ServiceInfoResponse is the body of GET /.
type ServiceInfoResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}

	return m
}
