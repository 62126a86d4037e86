package sync

import (
	"context"
	"testing"
	"time"

	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/task"
)

func TestApply_MapsCreatesAndUpdates(t *testing.T) {
	st := newFakeStore()
	exec := NewExecutor(st, frozenMapper())

	stamped := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	existing := existingRecord("upd", true, &stamped)

	plan := Plan{
		ToCreate: []remote.RawTask{activeRaw("new", false)},
		ToUpdate: []UpdatePair{{
			ID:     "upd",
			Remote: activeRaw("upd", true),
			Local:  existing,
		}},
		ToDelete: []task.Record{existingRecord("old", false, nil)},
	}

	res, err := exec.Apply(context.Background(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Created != 1 || res.Updated != 1 || res.Deleted != 1 {
		t.Errorf("result = %+v", res)
	}

	created := st.records["new"]
	if created.ID != "new" || !created.CreatedAt.Equal(frozenNow) {
		t.Errorf("create not mapped fresh: %+v", created)
	}

	updated := st.records["upd"]
	if !updated.CreatedAt.Equal(existing.CreatedAt) {
		t.Errorf("update must preserve created_at: %+v", updated)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(stamped) {
		t.Errorf("update must preserve completed_at: %+v", updated)
	}
	if _, exists := st.records["old"]; exists {
		t.Error("delete not applied")
	}
}

func TestApply_EmptyPlanSkipsStore(t *testing.T) {
	st := newFakeStore()
	exec := NewExecutor(st, frozenMapper())

	res, err := exec.Apply(context.Background(), Plan{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res != (ExecutionResult{}) {
		t.Errorf("result = %+v, want zero", res)
	}
	if st.batches != 0 {
		t.Error("empty plan must not touch the store")
	}
}
