package postgrest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// quoteRow is a row of the quotes table as PostgREST returns it.
// This is an internal type - never exposed outside the package.
type quoteRow struct {
	ID        rowID           `json:"id"`
	Title     string          `json:"title"`
	Text      string          `json:"text"`
	Author    *string         `json:"author"`
	Theme     *string         `json:"theme"`
	Subtheme  *string         `json:"subtheme"`
	Tags      json.RawMessage `json:"tags"`
	CreatedAt *string         `json:"created_at"`
}

// rowID accepts both uuid and bigint primary keys.
type rowID string

func (id *rowID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*id = rowID(s)

		return nil
	}

	if _, err := strconv.ParseInt(string(data), 10, 64); err != nil {
		return fmt.Errorf("unsupported id %s", data)
	}

	*id = rowID(data)

	return nil
}

// insertRow is the body of an insert. Absent optional columns are omitted so
// the table defaults apply.
type insertRow struct {
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Author   *string  `json:"author,omitempty"`
	Theme    *string  `json:"theme,omitempty"`
	Subtheme *string  `json:"subtheme,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// patchRow is the body of a partial update. Only supplied columns are sent.
type patchRow struct {
	Title    *string   `json:"title,omitempty"`
	Text     *string   `json:"text,omitempty"`
	Author   *string   `json:"author,omitempty"`
	Theme    *string   `json:"theme,omitempty"`
	Subtheme *string   `json:"subtheme,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// Translator converts an external row into a domain value.
type Translator[External any, Domain any] func(ext *External) (Domain, error)

// TranslateSlice applies a translator to every row.
// If any translation fails, returns the first error encountered.
func TranslateSlice[E any, D any](items []E, translate Translator[E, D]) ([]D, error) {
	result := make([]D, 0, len(items))

	for i := range items {
		translated, err := translate(&items[i])
		if err != nil {
			return nil, fmt.Errorf("translating row %d: %w", i, err)
		}

		result = append(result, translated)
	}

	return result, nil
}

// DecodeResponse reads and decodes a JSON response body into the target type.
// Closes the body after reading.
func DecodeResponse[T any](body io.ReadCloser) (*T, error) {
	if body == nil {
		return nil, errors.New("response body is nil")
	}
	defer func() { _ = body.Close() }()

	var result T
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &result, nil
}

// toDomain converts a row to a domain quote.
func toDomain(row *quoteRow) (domain.Quote, error) {
	if row.ID == "" {
		return domain.Quote{}, errors.New("row has no id")
	}

	q := domain.Quote{
		ID:       string(row.ID),
		Title:    row.Title,
		Text:     row.Text,
		Author:   row.Author,
		Theme:    row.Theme,
		Subtheme: row.Subtheme,
		Tags:     decodeTags(row.Tags),
	}

	if row.CreatedAt != nil {
		q.CreatedAt = *row.CreatedAt
	}

	return q, nil
}

// decodeTags keeps the string entries of a JSON array. Anything that is not an
// array yields nil.
func decodeTags(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	tags := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			tags = append(tags, s)
		}
	}

	return tags
}

func fromNewQuote(in domain.NewQuote) insertRow {
	return insertRow{
		Title:    in.Title,
		Text:     in.Text,
		Author:   in.Author,
		Theme:    in.Theme,
		Subtheme: in.Subtheme,
		Tags:     in.Tags,
	}
}

func fromPatch(p domain.QuotePatch) patchRow {
	row := patchRow{
		Title:    p.Title,
		Text:     p.Text,
		Author:   p.Author,
		Theme:    p.Theme,
		Subtheme: p.Subtheme,
	}

	if p.Tags != nil {
		tags := p.Tags
		row.Tags = &tags
	}

	return row
}
