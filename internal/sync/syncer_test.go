package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"testing"

	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/store"
	"github.com/steveyegge/taskmirror/internal/task"
)

// fakeSource serves a settable remote snapshot.
type fakeSource struct {
	tasks []remote.RawTask
	err   error
}

func (f *fakeSource) FetchAll(ctx context.Context) ([]remote.RawTask, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks, nil
}

// fakeStore is an in-memory Store with upsert-by-id semantics.
type fakeStore struct {
	records  map[string]task.Record
	readErr  error
	writeErr error
	batches  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]task.Record)}
}

func (f *fakeStore) FindAll(ctx context.Context) ([]task.Record, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]task.Record, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) FindByIDs(ctx context.Context, ids []string) ([]task.Record, error) {
	var out []task.Record
	for _, id := range ids {
		if r, ok := f.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) BatchWrite(ctx context.Context, inserts, updates []task.Record, deletes []string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.batches++
	for _, r := range inserts {
		if _, exists := f.records[r.ID]; exists {
			return fmt.Errorf("duplicate insert %s", r.ID)
		}
		f.records[r.ID] = r
	}
	for _, r := range updates {
		f.records[r.ID] = r
	}
	for _, id := range deletes {
		delete(f.records, id)
	}
	return nil
}

func (f *fakeStore) Count(ctx context.Context, filter store.CountFilter) (int, error) {
	n := 0
	for _, r := range f.records {
		if filter.Completed != nil && r.IsCompleted != *filter.Completed {
			continue
		}
		n++
	}
	return n, nil
}

func newTestSyncer(src Source, st Store) *Syncer {
	return New(src, st, log.New(&bytes.Buffer{}, "", 0))
}

// TestSync_Lifecycle walks a task through creation, an idempotent re-run,
// completion, and remote removal.
func TestSync_Lifecycle(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{tasks: []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "Buy milk", Priority: 4}},
	}}
	st := newFakeStore()
	syncer := newTestSyncer(src, st)

	// First sync creates.
	stats, err := syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("sync 1 failed: %v", err)
	}
	if stats.Created != 1 || stats.Updated != 0 || stats.Deleted != 0 {
		t.Fatalf("sync 1 stats = %+v", stats)
	}
	if got := st.records["1"]; got.CompletedAt != nil {
		t.Errorf("new active task should have nil completed_at: %+v", got)
	}
	if stats.FinalCount != 1 || stats.CompletedCount != 0 {
		t.Errorf("sync 1 counts = %d/%d, want 1/0", stats.FinalCount, stats.CompletedCount)
	}

	// Second sync with identical remote is a no-op.
	stats, err = syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("sync 2 failed: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 0 || stats.Deleted != 0 || stats.Unchanged != 1 {
		t.Fatalf("sync 2 not idempotent: %+v", stats)
	}

	// Completing the task remotely produces an update with a stamp.
	src.tasks = []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "Buy milk", Priority: 4, IsCompleted: true}},
	}
	stats, err = syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("sync 3 failed: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("sync 3 stats = %+v, want one update", stats)
	}
	completedAt := st.records["1"].CompletedAt
	if !st.records["1"].IsCompleted || completedAt == nil {
		t.Fatalf("completion not recorded: %+v", st.records["1"])
	}
	if stats.CompletedCount != 1 {
		t.Errorf("completed count = %d, want 1", stats.CompletedCount)
	}

	// A further unchanged sync must not re-stamp completed_at.
	stats, err = syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("sync 4 failed: %v", err)
	}
	if stats.Updated != 0 {
		t.Fatalf("sync 4 should be unchanged: %+v", stats)
	}
	if got := st.records["1"].CompletedAt; got == nil || !got.Equal(*completedAt) {
		t.Errorf("completed_at re-stamped: %v, want %v", got, completedAt)
	}

	// Remote removal deletes locally.
	src.tasks = nil
	stats, err = syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("sync 5 failed: %v", err)
	}
	if stats.Deleted != 1 || stats.FinalCount != 0 {
		t.Fatalf("sync 5 stats = %+v", stats)
	}
	if len(st.records) != 0 {
		t.Errorf("store not empty after remote removal: %+v", st.records)
	}
}

func TestSync_Reactivation(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{tasks: []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "x", IsCompleted: true}},
	}}
	st := newFakeStore()
	syncer := newTestSyncer(src, st)

	if _, err := syncer.Sync(ctx); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if st.records["1"].CompletedAt == nil {
		t.Fatal("completed task should be stamped")
	}

	src.tasks = []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "x", IsCompleted: false}},
	}
	stats, err := syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("reactivation sync failed: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("stats = %+v, want one update", stats)
	}
	if got := st.records["1"]; got.IsCompleted || got.CompletedAt != nil {
		t.Errorf("reactivation must clear completed_at: %+v", got)
	}
}

func TestSync_SkipsRecordsWithoutID(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	src := &fakeSource{tasks: []remote.RawTask{
		{Active: &remote.ActiveTask{Content: "no id here"}},
		{Active: &remote.ActiveTask{ID: "1", Content: "fine"}},
	}}
	st := newFakeStore()
	syncer := New(src, st, log.New(&buf, "", 0))

	stats, err := syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if stats.Skipped != 1 || stats.Created != 1 {
		t.Errorf("stats = %+v, want 1 skipped and 1 created", stats)
	}
	if !strings.Contains(buf.String(), "WARNING") {
		t.Error("skip should log a warning")
	}
}

func TestSync_RemoteFailureAborts(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("%w: boom", remote.ErrUnavailable)}
	st := newFakeStore()
	syncer := newTestSyncer(src, st)

	_, err := syncer.Sync(context.Background())
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if st.batches != 0 {
		t.Error("no writes may happen when the fetch fails")
	}
}

func TestSync_LocalReadFailureAborts(t *testing.T) {
	src := &fakeSource{tasks: []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "x"}},
	}}
	st := newFakeStore()
	st.readErr = fmt.Errorf("%w: disk gone", store.ErrRead)
	syncer := newTestSyncer(src, st)

	_, err := syncer.Sync(context.Background())
	if !errors.Is(err, store.ErrRead) {
		t.Errorf("err = %v, want ErrRead", err)
	}
}

func TestSync_WriteFailureAborts(t *testing.T) {
	src := &fakeSource{tasks: []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "x"}},
	}}
	st := newFakeStore()
	st.writeErr = fmt.Errorf("%w: batch rejected", store.ErrWrite)
	syncer := newTestSyncer(src, st)

	_, err := syncer.Sync(context.Background())
	if !errors.Is(err, store.ErrWrite) {
		t.Errorf("err = %v, want ErrWrite", err)
	}
	if len(st.records) != 0 {
		t.Error("failed batch must apply nothing")
	}
}

func TestSync_NoWastedBatchWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{tasks: []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "x"}},
	}}
	st := newFakeStore()
	syncer := newTestSyncer(src, st)

	if _, err := syncer.Sync(ctx); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if _, err := syncer.Sync(ctx); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if st.batches != 1 {
		t.Errorf("batches = %d, want 1 (no-op plan must not hit the store)", st.batches)
	}
}

func TestCheckOnly_DoesNotWrite(t *testing.T) {
	src := &fakeSource{tasks: []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "x"}},
	}}
	st := newFakeStore()
	syncer := newTestSyncer(src, st)

	plan, err := syncer.CheckOnly(context.Background())
	if err != nil {
		t.Fatalf("CheckOnly failed: %v", err)
	}
	if plan.Summary.Created != 1 {
		t.Errorf("plan = %+v, want one create", plan.Summary)
	}
	if st.batches != 0 || len(st.records) != 0 {
		t.Error("CheckOnly must not write")
	}
}

func TestSync_BothShapesInOneSnapshot(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{tasks: []remote.RawTask{
		{Active: &remote.ActiveTask{ID: "1", Content: "active one", Priority: 2}},
		{Completed: &remote.CompletedTask{TaskID: "2", Content: "done one", CompletedAt: "2026-01-15T12:00:00Z"}},
	}}
	st := newFakeStore()
	syncer := newTestSyncer(src, st)

	stats, err := syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if stats.Created != 2 {
		t.Fatalf("stats = %+v, want 2 created", stats)
	}
	if st.records["2"].CompletedAt == nil || !st.records["2"].IsCompleted {
		t.Errorf("completed-shape record mismapped: %+v", st.records["2"])
	}

	// Re-run: the completed record's remote timestamp matches the stored
	// one, so nothing changes.
	stats, err = syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if stats.Unchanged != 2 {
		t.Errorf("stats = %+v, want 2 unchanged", stats)
	}
}
