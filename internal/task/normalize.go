package task

import (
	"sort"
	"time"
)

// dateLayouts are the remote date shapes we accept, most specific first.
// Anything that matches none of them normalizes to absent.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Comparable is the canonical form of a Record used for change detection.
// It covers every field except UpdatedAt: two records whose Comparable
// forms are equal require no write.
type Comparable struct {
	ID          string
	Content     string
	Description string
	IsCompleted bool
	Labels      []string
	Priority    int
	DueDate     string
	DueTime     string
	URL         string
	ProjectID   string
	CreatedAt   string
	CompletedAt string
}

// Normalize canonicalizes a Record into its Comparable form.
//
// It is a pure function: no I/O, deterministic for identical input.
// Priority is coerced into 1-4 (anything else becomes 4), labels are
// sorted ascending with nil treated as empty, and instants are rendered
// at second precision in UTC so sub-second and timezone-representation
// differences are not significant.
func Normalize(r Record) Comparable {
	return Comparable{
		ID:          r.ID,
		Content:     r.Content,
		Description: r.Description,
		IsCompleted: r.IsCompleted,
		Labels:      NormalizeLabels(r.Labels),
		Priority:    NormalizePriority(r.Priority),
		DueDate:     NormalizeInstant(r.DueDate),
		DueTime:     r.DueTime,
		URL:         r.URL,
		ProjectID:   r.ProjectID,
		CreatedAt:   NormalizeInstant(&r.CreatedAt),
		CompletedAt: NormalizeInstant(r.CompletedAt),
	}
}

// Equal reports whether two comparable records match field-by-field.
func (c Comparable) Equal(o Comparable) bool {
	if c.ID != o.ID ||
		c.Content != o.Content ||
		c.Description != o.Description ||
		c.IsCompleted != o.IsCompleted ||
		c.Priority != o.Priority ||
		c.DueDate != o.DueDate ||
		c.DueTime != o.DueTime ||
		c.URL != o.URL ||
		c.ProjectID != o.ProjectID ||
		c.CreatedAt != o.CreatedAt ||
		c.CompletedAt != o.CompletedAt {
		return false
	}
	if len(c.Labels) != len(o.Labels) {
		return false
	}
	for i := range c.Labels {
		if c.Labels[i] != o.Labels[i] {
			return false
		}
	}
	return true
}

// NormalizePriority coerces a priority into the canonical 1-4 range.
// Out-of-range or missing values map to DefaultPriority.
func NormalizePriority(p int) int {
	if p < 1 || p > 4 {
		return DefaultPriority
	}
	return p
}

// NormalizeLabels returns labels sorted ascending, never nil.
// The input slice is not modified.
func NormalizeLabels(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	sort.Strings(out)
	return out
}

// NormalizeInstant renders an instant at second precision in UTC,
// or "" when absent. The zero time also counts as absent.
func NormalizeInstant(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ParseInstant parses a remote date-like string into an instant.
// Date-only values resolve to midnight UTC. Malformed strings
// normalize to absent (nil) rather than failing.
func ParseInstant(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
