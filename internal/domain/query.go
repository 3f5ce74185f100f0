package domain

import "strings"

// Field names a quote column that queries can filter, search or sort on.
type Field string

// Queryable fields.
const (
	FieldID        Field = "id"
	FieldTitle     Field = "title"
	FieldText      Field = "text"
	FieldAuthor    Field = "author"
	FieldTheme     Field = "theme"
	FieldSubtheme  Field = "subtheme"
	FieldTags      Field = "tags"
	FieldCreatedAt Field = "created_at"
)

// Op is a clause operator.
type Op string

// Clause operators. OpContains and OpOverlaps apply to the tags field only.
const (
	OpEq       Op = "eq"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpContains Op = "cs"
	OpOverlaps Op = "ov"
)

// Clause is a single filter predicate. Scalar operators use Value,
// set operators use Values.
type Clause struct {
	Field  Field
	Op     Op
	Value  string
	Values []string
}

// Eq builds an equality clause.
func Eq(f Field, v string) Clause { return Clause{Field: f, Op: OpEq, Value: v} }

// Gte builds an inclusive lower-bound clause.
func Gte(f Field, v string) Clause { return Clause{Field: f, Op: OpGte, Value: v} }

// Lte builds an inclusive upper-bound clause.
func Lte(f Field, v string) Clause { return Clause{Field: f, Op: OpLte, Value: v} }

// ContainsTags matches quotes carrying every listed tag.
func ContainsTags(tags ...string) Clause {
	return Clause{Field: FieldTags, Op: OpContains, Values: tags}
}

// OverlapsTags matches quotes carrying at least one listed tag.
func OverlapsTags(tags ...string) Clause {
	return Clause{Field: FieldTags, Op: OpOverlaps, Values: tags}
}

// Matches evaluates the clause against a quote.
// Range operators compare ISO-8601 strings lexically, as the store does.
func (c Clause) Matches(q Quote) bool {
	switch c.Op {
	case OpContains:
		for _, v := range c.Values {
			if !q.HasTag(v) {
				return false
			}
		}

		return true
	case OpOverlaps:
		for _, v := range c.Values {
			if q.HasTag(v) {
				return true
			}
		}

		return false
	}

	got, ok := q.FieldValue(c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return got == c.Value
	case OpGte:
		return got >= c.Value
	case OpLte:
		return got <= c.Value
	default:
		return false
	}
}

// SearchMode combines per-field keyword matches.
type SearchMode string

// Search modes.
const (
	SearchAny SearchMode = "or"
	SearchAll SearchMode = "and"
)

// TextSearch is a case-insensitive substring match over several fields.
type TextSearch struct {
	Keyword string
	Fields  []Field
	Mode    SearchMode
}

// Matches evaluates the search against a quote. Absent fields never match.
func (s TextSearch) Matches(q Quote) bool {
	if len(s.Fields) == 0 {
		return true
	}

	needle := strings.ToLower(s.Keyword)

	for _, f := range s.Fields {
		v, ok := q.FieldValue(f)
		hit := ok && strings.Contains(strings.ToLower(v), needle)

		if s.Mode == SearchAll && !hit {
			return false
		}

		if s.Mode != SearchAll && hit {
			return true
		}
	}

	return s.Mode == SearchAll
}

// Sort orders results by one field. Stores break ties on id in the same direction.
type Sort struct {
	Field      Field
	Descending bool
}

// DefaultSort is newest first.
var DefaultSort = Sort{Field: FieldCreatedAt, Descending: true}

// Less reports whether a sorts before b. Absent values sort first ascending.
func (s Sort) Less(a, b Quote) bool {
	av, _ := a.FieldValue(s.Field)
	bv, _ := b.FieldValue(s.Field)

	if av == bv {
		av, bv = a.ID, b.ID
	}

	if s.Descending {
		return av > bv
	}

	return av < bv
}

// Page is an offset window. A zero Limit means no upper bound.
type Page struct {
	Offset int
	Limit  int
}

// Last returns the inclusive index of the last row in the window, or -1 when unbounded.
func (p Page) Last() int {
	if p.Limit <= 0 {
		return -1
	}

	return p.Offset + p.Limit - 1
}

// Query is a composed store request: conjunctive clauses, an optional text search,
// one sort key and a page window.
type Query struct {
	Clauses []Clause
	Search  *TextSearch
	Sort    Sort
	Page    Page
}

// Matches reports whether a quote satisfies every clause and the search.
func (q Query) Matches(quote Quote) bool {
	for _, c := range q.Clauses {
		if !c.Matches(quote) {
			return false
		}
	}

	if q.Search != nil && !q.Search.Matches(quote) {
		return false
	}

	return true
}
