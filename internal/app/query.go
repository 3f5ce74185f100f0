package app

import (
	"strings"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// Pagination bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Sortable and searchable field allowlists.
var (
	sortableFields = map[string]domain.Field{
		"title":      domain.FieldTitle,
		"text":       domain.FieldText,
		"theme":      domain.FieldTheme,
		"created_at": domain.FieldCreatedAt,
	}

	searchableFields = map[string]domain.Field{
		"title":    domain.FieldTitle,
		"text":     domain.FieldText,
		"theme":    domain.FieldTheme,
		"subtheme": domain.FieldSubtheme,
		"author":   domain.FieldAuthor,
	}

	defaultSearchFields = []domain.Field{domain.FieldTitle, domain.FieldText}
)

// SortParams is the raw sort request. Unknown values fall back to created_at desc.
type SortParams struct {
	By    string
	Order string
}

// ListParams are the filters accepted by the list endpoint.
// Empty strings mean "not supplied".
type ListParams struct {
	Theme    string
	Subtheme string
	Author   string
	Tags     string
	DateFrom string
	DateTo   string
	Sort     SortParams
	Page     domain.Page
}

// SearchParams drive a keyword search.
type SearchParams struct {
	Keyword string
	Fields  string
	Mode    string
	Sort    SortParams
	Page    domain.Page
}

// TagSearchParams drive a tag search. MatchAll selects every-tag semantics.
type TagSearchParams struct {
	Tags     string
	MatchAll bool
	Sort     SortParams
	Page     domain.Page
}

// ComposeList builds the list query. Clauses are appended in a fixed order:
// equality, date range, then tag containment.
func ComposeList(p ListParams) (domain.Query, error) {
	page, err := resolvePage(p.Page)
	if err != nil {
		return domain.Query{}, err
	}

	var clauses []domain.Clause

	clauses = appendEq(clauses, domain.FieldTheme, p.Theme)
	clauses = appendEq(clauses, domain.FieldSubtheme, p.Subtheme)
	clauses = appendEq(clauses, domain.FieldAuthor, p.Author)

	if p.DateFrom != "" {
		clauses = append(clauses, domain.Gte(domain.FieldCreatedAt, p.DateFrom))
	}

	if p.DateTo != "" {
		clauses = append(clauses, domain.Lte(domain.FieldCreatedAt, p.DateTo))
	}

	for _, tag := range ParseTags(p.Tags) {
		clauses = append(clauses, domain.ContainsTags(tag))
	}

	return domain.Query{
		Clauses: clauses,
		Sort:    ResolveSort(p.Sort),
		Page:    page,
	}, nil
}

// ComposeSearch builds a keyword search query.
func ComposeSearch(p SearchParams) (domain.Query, error) {
	keyword := strings.TrimSpace(p.Keyword)
	if keyword == "" {
		return domain.Query{}, domain.NewValidationError("q", "search keyword is required")
	}

	page, err := resolvePage(p.Page)
	if err != nil {
		return domain.Query{}, err
	}

	return domain.Query{
		Search: &domain.TextSearch{
			Keyword: keyword,
			Fields:  ResolveSearchFields(p.Fields),
			Mode:    ResolveSearchMode(p.Mode),
		},
		Sort: ResolveSort(p.Sort),
		Page: page,
	}, nil
}

// ComposeTagSearch builds a tag search query.
// MatchAll requires every tag; otherwise any listed tag qualifies.
func ComposeTagSearch(p TagSearchParams) (domain.Query, error) {
	tags := ParseTags(p.Tags)
	if len(tags) == 0 {
		return domain.Query{}, domain.NewValidationErrorWithValue("tags", "at least one non-empty tag is required", p.Tags)
	}

	page, err := resolvePage(p.Page)
	if err != nil {
		return domain.Query{}, err
	}

	clause := domain.OverlapsTags(tags...)
	if p.MatchAll {
		clause = domain.ContainsTags(tags...)
	}

	return domain.Query{
		Clauses: []domain.Clause{clause},
		Sort:    ResolveSort(p.Sort),
		Page:    page,
	}, nil
}

// ComposeTheme builds the exact-theme query, newest first.
func ComposeTheme(theme string, page domain.Page) (domain.Query, error) {
	resolved, err := resolvePage(page)
	if err != nil {
		return domain.Query{}, err
	}

	return domain.Query{
		Clauses: []domain.Clause{domain.Eq(domain.FieldTheme, theme)},
		Sort:    domain.DefaultSort,
		Page:    resolved,
	}, nil
}

// ParseTags splits a comma-separated list, trimming each entry and dropping empties.
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))

	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}

// ResolveSort applies the sort allowlist.
func ResolveSort(p SortParams) domain.Sort {
	field, ok := sortableFields[p.By]
	if !ok {
		field = domain.FieldCreatedAt
	}

	return domain.Sort{
		Field:      field,
		Descending: p.Order != "asc",
	}
}

// ResolveSearchFields keeps the allowed fields of a comma-separated list, in order,
// without duplicates. It falls back to title and text when nothing survives.
func ResolveSearchFields(raw string) []domain.Field {
	seen := make(map[domain.Field]bool)

	var fields []domain.Field

	for _, name := range strings.Split(raw, ",") {
		field, ok := searchableFields[strings.TrimSpace(name)]
		if !ok || seen[field] {
			continue
		}

		seen[field] = true
		fields = append(fields, field)
	}

	if len(fields) == 0 {
		return append([]domain.Field(nil), defaultSearchFields...)
	}

	return fields
}

// ResolveSearchMode maps "and" to every-field matching; anything else is "or".
func ResolveSearchMode(raw string) domain.SearchMode {
	if raw == string(domain.SearchAll) {
		return domain.SearchAll
	}

	return domain.SearchAny
}

func resolvePage(p domain.Page) (domain.Page, error) {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}

	if p.Limit < 1 || p.Limit > MaxLimit {
		return domain.Page{}, domain.NewValidationErrorWithValue("limit", "must be between 1 and 100", p.Limit)
	}

	if p.Offset < 0 {
		return domain.Page{}, domain.NewValidationErrorWithValue("offset", "must be greater than or equal to 0", p.Offset)
	}

	return p, nil
}

func appendEq(clauses []domain.Clause, field domain.Field, value string) []domain.Clause {
	if value == "" {
		return clauses
	}

	return append(clauses, domain.Eq(field, value))
}
