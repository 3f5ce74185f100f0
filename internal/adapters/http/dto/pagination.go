package dto

import "github.com/jsamuelsen/quotes-api/internal/domain"

// PaginationRequest represents offset pagination parameters from the request.
// Nil fields fall back to the service defaults.
type PaginationRequest struct {
	// Limit is the maximum number of items to return (1-100, default 50).
	Limit *int `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`

	// Offset is the number of matching items to skip.
	Offset *int `form:"offset" json:"offset" validate:"omitempty,min=0"`
}

// Page converts the request into a domain page window.
// A zero Limit lets the service apply its default.
func (p PaginationRequest) Page() domain.Page {
	var page domain.Page

	if p.Limit != nil {
		page.Limit = *p.Limit
	}

	if p.Offset != nil {
		page.Offset = *p.Offset
	}

	return page
}

// SortRequest carries the sort parameters shared by the list endpoints.
// Unknown values are resolved by the service, not rejected.
type SortRequest struct {
	SortBy    string `form:"sort_by"    json:"sort_by"`
	SortOrder string `form:"sort_order" json:"sort_order"`
}
