// Package domain contains core business entities and rules.
package domain

import "strings"

// EntityQuote names the quote entity in errors and logs.
const EntityQuote = "quote"

// Quote is a stored quotation.
// Optional text fields are nil when the store holds no value.
type Quote struct {
	// ID is assigned by the store and never changes.
	ID string

	Title string
	Text  string

	Author   *string
	Theme    *string
	Subtheme *string

	// Tags keeps the order the client supplied.
	Tags []string

	// CreatedAt is the store-assigned ISO-8601 timestamp.
	CreatedAt string
}

// FieldValue returns the textual value of a queryable field.
// The second result is false when the field is absent on this quote.
func (q Quote) FieldValue(f Field) (string, bool) {
	switch f {
	case FieldID:
		return q.ID, true
	case FieldTitle:
		return q.Title, true
	case FieldText:
		return q.Text, true
	case FieldAuthor:
		return deref(q.Author)
	case FieldTheme:
		return deref(q.Theme)
	case FieldSubtheme:
		return deref(q.Subtheme)
	case FieldCreatedAt:
		return q.CreatedAt, q.CreatedAt != ""
	default:
		return "", false
	}
}

// HasTag reports whether the quote carries the exact tag.
func (q Quote) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// NewQuote carries the client-supplied fields for a quote about to be inserted.
type NewQuote struct {
	Title    string
	Text     string
	Author   *string
	Theme    *string
	Subtheme *string
	Tags     []string
}

// Validate enforces the creation invariants.
func (n NewQuote) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return NewValidationError("title", "must not be empty")
	}

	if strings.TrimSpace(n.Text) == "" {
		return NewValidationError("text", "must not be empty")
	}

	return nil
}

// QuotePatch is a partial update. Nil fields are left untouched.
type QuotePatch struct {
	Title    *string
	Text     *string
	Author   *string
	Theme    *string
	Subtheme *string
	Tags     []string
}

// IsEmpty reports whether the patch would change nothing.
func (p QuotePatch) IsEmpty() bool {
	return p.Title == nil &&
		p.Text == nil &&
		p.Author == nil &&
		p.Theme == nil &&
		p.Subtheme == nil &&
		p.Tags == nil
}

// Validate rejects empty patches and blank required fields.
func (p QuotePatch) Validate() error {
	if p.IsEmpty() {
		return NewValidationError("", "no update data provided")
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return NewValidationError("title", "must not be empty")
	}

	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return NewValidationError("text", "must not be empty")
	}

	return nil
}

// Apply returns a copy of q with the patch fields applied.
func (p QuotePatch) Apply(q Quote) Quote {
	if p.Title != nil {
		q.Title = *p.Title
	}

	if p.Text != nil {
		q.Text = *p.Text
	}

	if p.Author != nil {
		q.Author = ptr(*p.Author)
	}

	if p.Theme != nil {
		q.Theme = ptr(*p.Theme)
	}

	if p.Subtheme != nil {
		q.Subtheme = ptr(*p.Subtheme)
	}

	if p.Tags != nil {
		q.Tags = append([]string{}, p.Tags...)
	}

	return q
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}

	return *s, true
}

func ptr(s string) *string {
	return &s
}
