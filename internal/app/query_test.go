package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: nil},
		{raw: "life", want: []string{"life"}},
		{raw: " life , love ,", want: []string{"life", "love"}},
		{raw: ", ,", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.raw))
		})
	}
}

func TestResolveSort(t *testing.T) {
	tests := []struct {
		name string
		in   SortParams
		want domain.Sort
	}{
		{name: "defaults", in: SortParams{}, want: domain.DefaultSort},
		{name: "title asc", in: SortParams{By: "title", Order: "asc"}, want: domain.Sort{Field: domain.FieldTitle}},
		{name: "unknown field", in: SortParams{By: "author", Order: "asc"}, want: domain.Sort{Field: domain.FieldCreatedAt}},
		{name: "unknown order", in: SortParams{By: "theme", Order: "sideways"}, want: domain.Sort{Field: domain.FieldTheme, Descending: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSort(tt.in))
		})
	}
}

func TestResolveSearchFields(t *testing.T) {
	assert.Equal(t, []domain.Field{domain.FieldTitle, domain.FieldText}, ResolveSearchFields(""))
	assert.Equal(t, []domain.Field{domain.FieldTitle, domain.FieldText}, ResolveSearchFields("id,created_at"))
	assert.Equal(t,
		[]domain.Field{domain.FieldAuthor, domain.FieldSubtheme},
		ResolveSearchFields(" author ,nope,subtheme,author"),
	)
}

func TestResolveSearchMode(t *testing.T) {
	assert.Equal(t, domain.SearchAll, ResolveSearchMode("and"))
	assert.Equal(t, domain.SearchAny, ResolveSearchMode("or"))
	assert.Equal(t, domain.SearchAny, ResolveSearchMode("xor"))
	assert.Equal(t, domain.SearchAny, ResolveSearchMode(""))
}

func TestComposeList_ClauseOrder(t *testing.T) {
	q, err := ComposeList(ListParams{
		Theme:    "wisdom",
		Subtheme: "stoic",
		Author:   "Seneca",
		Tags:     "time,life",
		DateFrom: "2024-01-01",
		DateTo:   "2024-12-31",
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.Clause{
		domain.Eq(domain.FieldTheme, "wisdom"),
		domain.Eq(domain.FieldSubtheme, "stoic"),
		domain.Eq(domain.FieldAuthor, "Seneca"),
		domain.Gte(domain.FieldCreatedAt, "2024-01-01"),
		domain.Lte(domain.FieldCreatedAt, "2024-12-31"),
		domain.ContainsTags("time"),
		domain.ContainsTags("life"),
	}, q.Clauses)
	assert.Nil(t, q.Search)
	assert.Equal(t, domain.DefaultSort, q.Sort)
	assert.Equal(t, domain.Page{Limit: DefaultLimit}, q.Page)
}

func TestComposeList_Pagination(t *testing.T) {
	tests := []struct {
		name    string
		page    domain.Page
		want    domain.Page
		wantErr string
	}{
		{name: "default limit", page: domain.Page{Offset: 20}, want: domain.Page{Offset: 20, Limit: 50}},
		{name: "upper bound", page: domain.Page{Limit: 100}, want: domain.Page{Limit: 100}},
		{name: "limit too large", page: domain.Page{Limit: 101}, wantErr: "limit"},
		{name: "negative limit", page: domain.Page{Limit: -1}, wantErr: "limit"},
		{name: "negative offset", page: domain.Page{Offset: -5, Limit: 10}, wantErr: "offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ComposeList(ListParams{Page: tt.page})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))

				var vErr *domain.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, tt.wantErr, vErr.Field)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Page)
		})
	}
}

func TestComposeSearch(t *testing.T) {
	q, err := ComposeSearch(SearchParams{
		Keyword: "  courage ",
		Fields:  "author,text",
		Mode:    "and",
		Sort:    SortParams{By: "title", Order: "asc"},
		Page:    domain.Page{Limit: 10},
	})
	require.NoError(t, err)

	assert.Empty(t, q.Clauses)
	require.NotNil(t, q.Search)
	assert.Equal(t, domain.TextSearch{
		Keyword: "courage",
		Fields:  []domain.Field{domain.FieldAuthor, domain.FieldText},
		Mode:    domain.SearchAll,
	}, *q.Search)
	assert.Equal(t, domain.Sort{Field: domain.FieldTitle}, q.Sort)

	_, err = ComposeSearch(SearchParams{Keyword: "   "})
	assert.True(t, domain.IsValidation(err))
}

func TestComposeTagSearch(t *testing.T) {
	anyTag, err := ComposeTagSearch(TagSearchParams{Tags: "life, love"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Clause{domain.OverlapsTags("life", "love")}, anyTag.Clauses)

	allTags, err := ComposeTagSearch(TagSearchParams{Tags: "life, love", MatchAll: true})
	require.NoError(t, err)
	assert.Equal(t, []domain.Clause{domain.ContainsTags("life", "love")}, allTags.Clauses)

	_, err = ComposeTagSearch(TagSearchParams{Tags: " , "})
	assert.True(t, domain.IsValidation(err))
}

func TestComposeTheme(t *testing.T) {
	q, err := ComposeTheme("wisdom", domain.Page{Offset: 3, Limit: 7})
	require.NoError(t, err)

	assert.Equal(t, []domain.Clause{domain.Eq(domain.FieldTheme, "wisdom")}, q.Clauses)
	assert.Equal(t, domain.DefaultSort, q.Sort)
	assert.Equal(t, domain.Page{Offset: 3, Limit: 7}, q.Page)

	_, err = ComposeTheme("wisdom", domain.Page{Limit: 500})
	assert.True(t, domain.IsValidation(err))
}
