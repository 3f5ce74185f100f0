package postgrest

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// Render converts a composed query into PostgREST query parameters.
// Repeated filters on one column are ANDed by PostgREST.
func Render(q domain.Query) url.Values {
	v := url.Values{}
	v.Set("select", "*")

	for _, c := range q.Clauses {
		v.Add(string(c.Field), renderClause(c))
	}

	if q.Search != nil && len(q.Search.Fields) > 0 {
		key, tree := renderSearch(*q.Search)
		v.Set(key, tree)
	}

	if order := renderOrder(q.Sort); order != "" {
		v.Set("order", order)
	}

	if q.Page.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Page.Offset))
	}

	if q.Page.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Page.Limit))
	}

	return v
}

// IDFilter returns the parameters selecting one row by id.
func IDFilter(id string) url.Values {
	return url.Values{string(domain.FieldID): {string(domain.OpEq) + "." + id}}
}

func renderClause(c domain.Clause) string {
	switch c.Op {
	case domain.OpContains, domain.OpOverlaps:
		return string(c.Op) + "." + arrayLiteral(c.Values)
	default:
		return string(c.Op) + "." + c.Value
	}
}

// arrayLiteral renders a PostgreSQL text array literal with every element quoted.
func arrayLiteral(values []string) string {
	var b strings.Builder

	b.WriteByte('{')

	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(quote(v))
	}

	b.WriteByte('}')

	return b.String()
}

// renderSearch builds the logic tree for a keyword search, e.g.
// or=(title.ilike."*love*",text.ilike."*love*").
func renderSearch(s domain.TextSearch) (string, string) {
	pattern := quote("*" + escapeLike(s.Keyword) + "*")

	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = string(f) + ".ilike." + pattern
	}

	key := string(domain.SearchAny)
	if s.Mode == domain.SearchAll {
		key = string(domain.SearchAll)
	}

	return key, "(" + strings.Join(parts, ",") + ")"
}

// renderOrder sorts on one column with an id tiebreak in the same direction.
// Nulls go first ascending and last descending, as the other stores order them.
func renderOrder(s domain.Sort) string {
	if s.Field == "" {
		return ""
	}

	dir, nulls := ".asc", ".nullsfirst"
	if s.Descending {
		dir, nulls = ".desc", ".nullslast"
	}

	if s.Field == domain.FieldID {
		return string(s.Field) + dir
	}

	return string(s.Field) + dir + nulls + "," + string(domain.FieldID) + dir
}

// quote wraps a value in double quotes, escaping backslashes and quotes, so
// reserved characters such as commas and parentheses stay literal.
func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)

	return `"` + v + `"`
}

// escapeLike makes LIKE wildcards in the keyword literal. PostgREST reads every
// '*' in a pattern as '%' and has no escape for it, so a literal '*' becomes
// '_', which matches any single character including '*'.
func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `_`)
	return r.Replace(v)
}
