package model

import (
	"strings"
	"time"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

type Project struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Status    ProjectStatus `json:"status"`
	Color     string        `json:"color"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (p Project) Archived() bool { return p.Status == ProjectArchived }

type Task struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	ParentID  *int64 `json:"parentId,omitempty"`
	ProjectID *int64 `json:"projectId,omitempty"`

	// SortKey orders the task among its siblings (same parent, same project).
	SortKey string `json:"sortKey"`
	// SequentialLimit caps how many children are actionable at once. 0 means unlimited.
	SequentialLimit int `json:"sequentialLimit"`

	Someday     bool       `json:"someday"`
	StartAt     *time.Time `json:"startAt,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	// RecurrenceType is "scheduled" or "after_completion"; RecurrenceRule holds the
	// canonical RRULE. Completing a task with both set spawns the next instance.
	RecurrenceType string `json:"recurrenceType,omitempty"`
	RecurrenceRule string `json:"recurrenceRule,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t Task) Completed() bool { return t.CompletedAt != nil }

func (t Task) Recurring() bool { return t.RecurrenceType != "" && t.RecurrenceRule != "" }

func (t Task) HasTag(name string) bool {
	name = NormalizeTag(name)
	for _, tag := range t.Tags {
		if tag == name {
			return true
		}
	}
	return false
}

type SavedFilter struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Query     string    `json:"query"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Settings struct {
	ReviewIntervalDays int `json:"reviewIntervalDays"`
}

const DefaultReviewIntervalDays = 7

func DefaultSettings() Settings {
	return Settings{ReviewIntervalDays: DefaultReviewIntervalDays}
}

// NormalizeTag returns the identity of a tag: its trimmed, lowercased text.
func NormalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeTags normalizes and de-duplicates tag names, keeping first-seen order.
func NormalizeTags(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = NormalizeTag(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// SameRef reports whether two optional ids point at the same entity (both nil counts).
func SameRef(a, b *int64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func Ref(id int64) *int64 { return &id }

// Day truncates t to its calendar day in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
