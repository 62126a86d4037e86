package sync

import (
	"time"

	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/task"
)

// Mapper translates a remote-shaped record into the local persisted schema,
// applying the completion-transition rules and the timestamp policy.
type Mapper struct {
	now func() time.Time
}

// NewMapper creates a Mapper stamping records with the wall clock.
func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// newMapperAt pins the clock, for tests.
func newMapperAt(now func() time.Time) *Mapper {
	return &Mapper{now: now}
}

// MapToLocal computes the local record a remote record should persist as.
//
// existing is the currently persisted record for the same id, or nil when
// the task has never been seen. The Mapper always computes the full record;
// whether it is actually written is the Reconciler's decision.
//
// Field policy:
//   - created_at is preserved from existing when present, otherwise taken
//     from the remote record, defaulting to now.
//   - completed_at follows the completion state machine: stamped on the
//     false->true transition (preferring a remote-supplied completion time),
//     preserved unchanged while completed, cleared on reactivation.
//   - updated_at is stamped now on every invocation.
func (m *Mapper) MapToLocal(raw remote.RawTask, existing *task.Record) task.Record {
	now := m.now()

	r := task.Record{
		ID:            raw.ID(),
		UpdatedAt:     now,
		LastUpdatedBy: task.LastUpdatedBy,
		Source:        task.SourceTodoist,
	}

	var remoteCreated, remoteCompleted *time.Time

	switch raw.Kind() {
	case remote.KindActive:
		a := raw.Active
		r.Content = a.Content
		r.Description = a.Description
		r.IsCompleted = a.IsCompleted
		r.Labels = task.NormalizeLabels(a.Labels)
		r.Priority = task.NormalizePriority(a.Priority)
		r.DueDate, r.DueTime = mapDue(a.Due)
		r.URL = a.URL
		r.ProjectID = a.ProjectID
		remoteCreated = task.ParseInstant(a.CreatedAt)

	case remote.KindCompleted:
		c := raw.Completed
		r.Content = c.Content
		r.IsCompleted = true
		r.Labels = []string{}
		r.Priority = task.DefaultPriority
		r.ProjectID = c.ProjectID
		remoteCompleted = task.ParseInstant(c.CompletedAt)
	}

	if r.URL == "" && r.ID != "" {
		r.URL = remote.TaskURL(r.ID)
	}

	switch {
	case existing != nil:
		r.CreatedAt = existing.CreatedAt
	case remoteCreated != nil:
		r.CreatedAt = *remoteCreated
	default:
		r.CreatedAt = now
	}

	r.CompletedAt = m.completionTime(r.IsCompleted, existing, remoteCompleted, now)

	return r
}

// completionTime implements the two-state completion machine.
func (m *Mapper) completionTime(nowCompleted bool, existing *task.Record, remoteCompleted *time.Time, now time.Time) *time.Time {
	if !nowCompleted {
		// Active -> Active, or Completed -> Active (reactivation).
		return nil
	}

	if existing != nil && existing.IsCompleted && existing.CompletedAt != nil {
		// Completed -> Completed: do not re-stamp. The locally recorded
		// time stays authoritative even if the remote one drifts.
		t := *existing.CompletedAt
		return &t
	}

	// Active -> Completed, or first sight of an already-completed task.
	if remoteCompleted != nil {
		t := *remoteCompleted
		return &t
	}
	t := now
	return &t
}

// mapDue derives the canonical due instant and the display time component
// from the structured due field. A date-only due resolves to midnight UTC
// with an empty time component. A malformed datetime falls back to the
// date field when one is present; with neither parseable the due is absent.
func mapDue(d *remote.Due) (*time.Time, string) {
	if d == nil {
		return nil, ""
	}
	if d.Datetime != "" {
		if t := task.ParseInstant(d.Datetime); t != nil {
			return t, t.UTC().Format("15:04")
		}
	}
	if d.Date != "" {
		return task.ParseInstant(d.Date), ""
	}
	return nil, ""
}
