package sync

import (
	"testing"
	"time"

	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/task"
)

// snapshot builds an id-keyed remote snapshot from raw tasks.
func snapshot(raws ...remote.RawTask) map[string]remote.RawTask {
	m := make(map[string]remote.RawTask, len(raws))
	for _, r := range raws {
		m[r.ID()] = r
	}
	return m
}

func localSnapshot(records ...task.Record) map[string]task.Record {
	m := make(map[string]task.Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}

// mirrorOf maps a raw task to its persisted form with a pinned clock,
// simulating what a previous sync would have written.
func mirrorOf(raw remote.RawTask) task.Record {
	return frozenMapper().MapToLocal(raw, nil)
}

func TestReconcile_Classification(t *testing.T) {
	rec := NewReconciler(frozenMapper())

	unchanged := activeRaw("same", false)
	changed := activeRaw("changed", false)
	fresh := activeRaw("fresh", false)

	localChanged := mirrorOf(changed)
	localChanged.Content = "stale content"

	remoteSnap := snapshot(unchanged, changed, fresh)
	localSnap := localSnapshot(mirrorOf(unchanged), localChanged, mirrorOf(activeRaw("gone", false)))

	plan := rec.Reconcile(remoteSnap, localSnap)

	if len(plan.ToCreate) != 1 || plan.ToCreate[0].ID() != "fresh" {
		t.Errorf("ToCreate = %v, want [fresh]", plan.ToCreate)
	}
	if len(plan.ToUpdate) != 1 || plan.ToUpdate[0].ID != "changed" {
		t.Errorf("ToUpdate = %v, want [changed]", plan.ToUpdate)
	}
	if len(plan.ToDelete) != 1 || plan.ToDelete[0].ID != "gone" {
		t.Errorf("ToDelete = %v, want [gone]", plan.ToDelete)
	}

	s := plan.Summary
	if s.Created != 1 || s.Updated != 1 || s.Deleted != 1 || s.Unchanged != 1 {
		t.Errorf("Summary = %+v", s)
	}
	if s.TotalRemote != 3 || s.TotalLocal != 3 {
		t.Errorf("totals = %d/%d, want 3/3", s.TotalRemote, s.TotalLocal)
	}
}

func TestReconcile_EmptySides(t *testing.T) {
	rec := NewReconciler(frozenMapper())

	plan := rec.Reconcile(snapshot(), localSnapshot())
	if len(plan.ToCreate)+len(plan.ToUpdate)+len(plan.ToDelete) != 0 {
		t.Errorf("empty snapshots should produce empty plan: %+v", plan.Summary)
	}

	plan = rec.Reconcile(snapshot(activeRaw("1", false)), localSnapshot())
	if plan.Summary.Created != 1 {
		t.Errorf("remote-only record should create, got %+v", plan.Summary)
	}

	plan = rec.Reconcile(snapshot(), localSnapshot(mirrorOf(activeRaw("1", false))))
	if plan.Summary.Deleted != 1 {
		t.Errorf("local-only record should delete, got %+v", plan.Summary)
	}
}

func TestReconcile_LabelOrderIndependent(t *testing.T) {
	rec := NewReconciler(frozenMapper())

	raw := remote.RawTask{Active: &remote.ActiveTask{
		ID: "1", Content: "x", Labels: []string{"b", "a"},
	}}
	local := mirrorOf(remote.RawTask{Active: &remote.ActiveTask{
		ID: "1", Content: "x", Labels: []string{"a", "b"},
	}})

	plan := rec.Reconcile(snapshot(raw), localSnapshot(local))
	if plan.Summary.Unchanged != 1 || plan.Summary.Updated != 0 {
		t.Errorf("label order must not cause an update: %+v", plan.Summary)
	}
}

func TestReconcile_CompletedTimestampDriftIsUnchanged(t *testing.T) {
	rec := NewReconciler(frozenMapper())

	// Locally, the task completed and was stamped at a known time.
	stamped := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	local := existingRecord("1", true, &stamped)
	local.Content = "Old chore"
	local.Priority = task.DefaultPriority
	local.URL = remote.TaskURL("1")

	// Remote reports a different completion time for the same task.
	raw := remote.RawTask{Completed: &remote.CompletedTask{
		TaskID: "1", Content: "Old chore", CompletedAt: "2026-02-14T11:22:33Z",
	}}

	plan := rec.Reconcile(snapshot(raw), localSnapshot(local))
	if plan.Summary.Unchanged != 1 || plan.Summary.Updated != 0 {
		t.Errorf("completed-both-sides timestamp drift must classify unchanged: %+v", plan.Summary)
	}
}

func TestReconcile_CompletionChangeIsUpdate(t *testing.T) {
	rec := NewReconciler(frozenMapper())

	local := mirrorOf(activeRaw("1", false))
	plan := rec.Reconcile(snapshot(activeRaw("1", true)), localSnapshot(local))
	if plan.Summary.Updated != 1 {
		t.Errorf("completion transition must classify as update: %+v", plan.Summary)
	}
}

func TestReconcile_DeterministicOrder(t *testing.T) {
	rec := NewReconciler(frozenMapper())

	remoteSnap := snapshot(activeRaw("c", false), activeRaw("a", false), activeRaw("b", false))
	plan := rec.Reconcile(remoteSnap, localSnapshot())

	want := []string{"a", "b", "c"}
	for i, raw := range plan.ToCreate {
		if raw.ID() != want[i] {
			t.Fatalf("ToCreate order = %v at %d, want %v", raw.ID(), i, want)
		}
	}
}
