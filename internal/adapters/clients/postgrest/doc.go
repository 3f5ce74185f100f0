// Package postgrest is the anti-corruption layer between the quote domain and a
// PostgREST endpoint such as Supabase's REST API.
//
// # Translation boundary
//
// Rows returned by PostgREST are decoded into unexported DTOs and translated to
// [domain.Quote] values before they leave this package. Writes go the other way:
// [domain.NewQuote] and [domain.QuotePatch] become JSON bodies that only carry the
// columns the client supplied.
//
// # Query rendering
//
// [Render] turns a [domain.Query] into PostgREST query parameters:
//
//	theme=eq.wisdom
//	created_at=gte.2024-01-01
//	tags=cs.{"life"}
//	or=(title.ilike."*love*",text.ilike."*love*")
//	order=created_at.desc.nullslast,id.desc
//	offset=0&limit=50
//
// # Error Handling Strategy
//
// Every failure talking to PostgREST is a store failure:
//   - Transport, circuit breaker and exhausted retries → [domain.ErrStore]
//   - Non-2xx responses → [domain.ErrStore], carrying the PostgREST code and message
//   - Malformed ids on id-filtered calls (22P02) → [domain.ErrNotFound]
//
// Zero rows on an id-filtered read or write is a not found condition, raised by
// the [Store] itself.
package postgrest
