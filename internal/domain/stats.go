package domain

import (
	"strings"
	"time"
)

// Sentinel labels for quotes missing a categorical value.
const (
	UnclassifiedLabel = "unclassified"
	UnknownAuthor     = "unknown"
)

// monthLayout formats the monthly histogram key.
const monthLayout = "2006-01"

// timestampLayouts lists the ISO-8601 shapes the store is known to emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// DateRange holds the lexical min and max of created_at. Both are nil on an empty set.
type DateRange struct {
	Min *string
	Max *string
}

// Stats summarizes the full quote collection.
type Stats struct {
	TotalQuotes  int
	Themes       map[string]int
	Subthemes    map[string]int
	Authors      map[string]int
	Tags         map[string]int
	DateRange    DateRange
	MonthlyStats map[string]int
}

// ComputeStats summarizes quotes in a single pass.
// Missing or empty categorical values count under a sentinel label.
func ComputeStats(quotes []Quote) Stats {
	s := Stats{
		TotalQuotes:  len(quotes),
		Themes:       make(map[string]int),
		Subthemes:    make(map[string]int),
		Authors:      make(map[string]int),
		Tags:         make(map[string]int),
		MonthlyStats: make(map[string]int),
	}

	for i := range quotes {
		q := &quotes[i]

		s.Themes[labelOr(q.Theme, UnclassifiedLabel)]++
		s.Subthemes[labelOr(q.Subtheme, UnclassifiedLabel)]++
		s.Authors[labelOr(q.Author, UnknownAuthor)]++

		for _, tag := range q.Tags {
			s.Tags[tag]++
		}

		if q.CreatedAt == "" {
			continue
		}

		s.DateRange.widen(q.CreatedAt)

		if month, ok := MonthKey(q.CreatedAt); ok {
			s.MonthlyStats[month]++
		}
	}

	return s
}

func (r *DateRange) widen(ts string) {
	if r.Min == nil || ts < *r.Min {
		r.Min = ptr(ts)
	}

	if r.Max == nil || ts > *r.Max {
		r.Max = ptr(ts)
	}
}

// MonthKey returns the "YYYY-MM" bucket for an ISO-8601 timestamp.
// A trailing Z is read as +00:00; the month is taken in the timestamp's own offset.
func MonthKey(ts string) (string, bool) {
	t, ok := ParseTimestamp(ts)
	if !ok {
		return "", false
	}

	return t.Format(monthLayout), true
}

// ParseTimestamp parses the timestamp shapes the store emits.
func ParseTimestamp(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if strings.HasSuffix(ts, "Z") || strings.HasSuffix(ts, "z") {
		ts = ts[:len(ts)-1] + "+00:00"
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// labelOr names an absent value by fallback. A present empty string counts as itself.
func labelOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}

	return *v
}
