// Package remote provides the Todoist REST client that taskmirror reads from.
//
// The API returns tasks in two distinct shapes: active tasks carry an "id"
// field and an optional due object, while completed tasks arrive flat with a
// "task_id" and no due object. RawTask is the tagged union resolving both to
// a single canonical id at the client boundary, so nothing downstream has to
// probe field presence.
package remote

// Due is the structured due field on an active task.
// Date is date-only ("2026-03-15"); Datetime, when present, carries the
// time component ("2026-03-15T18:30:00" or RFC3339 with offset).
type Due struct {
	Date        string `json:"date"`
	Datetime    string `json:"datetime,omitempty"`
	String      string `json:"string,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	IsRecurring bool   `json:"is_recurring,omitempty"`
}

// ActiveTask is the shape returned by the active task listing.
type ActiveTask struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	IsCompleted bool     `json:"is_completed"`
	Labels      []string `json:"labels,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	Due         *Due     `json:"due,omitempty"`
	URL         string   `json:"url,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// CompletedTask is the flat shape returned by the completed task listing.
// It has no due object and identifies the task via task_id.
type CompletedTask struct {
	TaskID      string `json:"task_id"`
	Content     string `json:"content"`
	ProjectID   string `json:"project_id,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Kind discriminates the two remote task shapes.
type Kind string

const (
	KindActive    Kind = "active"
	KindCompleted Kind = "completed"
)

// RawTask is a tagged union over the two remote shapes.
// Exactly one of Active or Completed is non-nil.
type RawTask struct {
	Active    *ActiveTask
	Completed *CompletedTask
}

// Kind returns which shape this task arrived in.
func (r RawTask) Kind() Kind {
	if r.Completed != nil {
		return KindCompleted
	}
	return KindActive
}

// ID resolves the canonical id string regardless of shape.
// Returns "" when neither shape carries an id; such records cannot be
// correlated and are skipped by the sync pipeline.
func (r RawTask) ID() string {
	switch {
	case r.Active != nil:
		return r.Active.ID
	case r.Completed != nil:
		return r.Completed.TaskID
	default:
		return ""
	}
}

// TaskURL derives the canonical task URL for an id, used when the remote
// record omits its own url field.
func TaskURL(id string) string {
	return "https://todoist.com/showTask?id=" + id
}
