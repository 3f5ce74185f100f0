package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

const selectColumns = "id::text, title, text, author, theme, subtheme, tags, created_at"

// columns maps queryable fields onto column expressions.
var columns = map[domain.Field]string{
	domain.FieldID:        "id",
	domain.FieldTitle:     "title",
	domain.FieldText:      "text",
	domain.FieldAuthor:    "author",
	domain.FieldTheme:     "theme",
	domain.FieldSubtheme:  "subtheme",
	domain.FieldTags:      "tags",
	domain.FieldCreatedAt: "created_at",
}

// statement accumulates SQL text and its positional arguments.
type statement struct {
	sql  strings.Builder
	args []any
}

// bind appends an argument and returns its placeholder.
func (s *statement) bind(v any) string {
	s.args = append(s.args, v)
	return "$" + strconv.Itoa(len(s.args))
}

// renderSelect builds a parameterized SELECT for a composed query.
func renderSelect(table string, q domain.Query) (string, []any, error) {
	var st statement

	st.sql.WriteString("SELECT " + selectColumns + " FROM " + table)

	var where []string

	for _, c := range q.Clauses {
		cond, err := st.clause(c)
		if err != nil {
			return "", nil, err
		}

		where = append(where, cond)
	}

	if q.Search != nil && len(q.Search.Fields) > 0 {
		cond, err := st.search(*q.Search)
		if err != nil {
			return "", nil, err
		}

		where = append(where, cond)
	}

	if len(where) > 0 {
		st.sql.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	order, err := renderOrder(q.Sort)
	if err != nil {
		return "", nil, err
	}

	st.sql.WriteString(" ORDER BY " + order)

	if q.Page.Limit > 0 {
		st.sql.WriteString(" LIMIT " + st.bind(q.Page.Limit))
	}

	if q.Page.Offset > 0 {
		st.sql.WriteString(" OFFSET " + st.bind(q.Page.Offset))
	}

	return st.sql.String(), st.args, nil
}

func (s *statement) clause(c domain.Clause) (string, error) {
	col, ok := columns[c.Field]
	if !ok {
		return "", fmt.Errorf("unknown field %q", c.Field)
	}

	switch c.Op {
	case domain.OpContains:
		return col + " @> " + s.bind(c.Values) + "::text[]", nil
	case domain.OpOverlaps:
		return col + " && " + s.bind(c.Values) + "::text[]", nil
	}

	var op string

	switch c.Op {
	case domain.OpEq:
		op = "="
	case domain.OpGte:
		op = ">="
	case domain.OpLte:
		op = "<="
	default:
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}

	placeholder := s.bind(c.Value)

	switch c.Field {
	case domain.FieldCreatedAt:
		placeholder += "::timestamptz"
	case domain.FieldID:
		col += "::text"
	}

	return col + " " + op + " " + placeholder, nil
}

// search renders a case-insensitive substring match. One bound pattern serves every field.
func (s *statement) search(ts domain.TextSearch) (string, error) {
	pattern := s.bind("%" + escapeLike(ts.Keyword) + "%")

	joiner := " OR "
	if ts.Mode == domain.SearchAll {
		joiner = " AND "
	}

	parts := make([]string, 0, len(ts.Fields))

	for _, f := range ts.Fields {
		col, ok := columns[f]
		if !ok || f == domain.FieldTags {
			return "", fmt.Errorf("field %q is not searchable", f)
		}

		parts = append(parts, col+" ILIKE "+pattern)
	}

	return "(" + strings.Join(parts, joiner) + ")", nil
}

// renderOrder sorts on one column with an id tiebreak in the same direction.
func renderOrder(sort domain.Sort) (string, error) {
	dir := " ASC"
	if sort.Descending {
		dir = " DESC"
	}

	if sort.Field == "" || sort.Field == domain.FieldID {
		return "id" + dir, nil
	}

	col, ok := columns[sort.Field]
	if !ok || sort.Field == domain.FieldTags {
		return "", fmt.Errorf("field %q is not sortable", sort.Field)
	}

	// Absent values sort first ascending, as domain.Sort.Less orders them.
	nulls := " NULLS FIRST"
	if sort.Descending {
		nulls = " NULLS LAST"
	}

	return col + dir + nulls + ", id" + dir, nil
}

// escapeLike escapes LIKE wildcards so the keyword matches literally.
func escapeLike(v string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
}
