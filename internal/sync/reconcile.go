package sync

import (
	"sort"

	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/task"
)

// UpdatePair couples a changed remote record with its local counterpart
// so the Executor can map it against the existing state.
type UpdatePair struct {
	ID     string
	Remote remote.RawTask
	Local  task.Record
}

// Summary counts the classification of one reconciliation pass.
type Summary struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deleted     int `json:"deleted"`
	Unchanged   int `json:"unchanged"`
	TotalRemote int `json:"total_remote"`
	TotalLocal  int `json:"total_local"`
}

// Plan is the minimal set of operations moving the local snapshot to the
// remote snapshot. Slices are ordered by id so repeated runs against the
// same snapshots produce identical plans.
type Plan struct {
	ToCreate []remote.RawTask
	ToUpdate []UpdatePair
	ToDelete []task.Record
	Summary  Summary
}

// Reconciler computes diff plans between a remote and a local snapshot.
// It needs a Mapper because change detection compares the record a remote
// task would persist as against the record already persisted.
type Reconciler struct {
	mapper *Mapper
}

// NewReconciler creates a Reconciler using the given Mapper.
func NewReconciler(mapper *Mapper) *Reconciler {
	return &Reconciler{mapper: mapper}
}

// Reconcile classifies every id across the two snapshots:
//
//   - present remotely, absent locally  -> create
//   - present on both sides, differing  -> update
//   - present on both sides, equal      -> unchanged
//   - absent remotely, present locally  -> delete
//
// Equality is field-by-field over the normalized forms, excluding
// updated_at. Because the Mapper preserves created_at and an existing
// completion timestamp, a task completed on both sides whose remote
// completion time merely drifted classifies as unchanged - remote
// completion times are not authoritative once locally recorded.
func (r *Reconciler) Reconcile(remoteSnap map[string]remote.RawTask, localSnap map[string]task.Record) Plan {
	plan := Plan{
		ToCreate: []remote.RawTask{},
		ToUpdate: []UpdatePair{},
		ToDelete: []task.Record{},
	}
	plan.Summary.TotalRemote = len(remoteSnap)
	plan.Summary.TotalLocal = len(localSnap)

	for _, id := range sortedKeys(remoteSnap) {
		raw := remoteSnap[id]
		existing, ok := localSnap[id]
		if !ok {
			plan.ToCreate = append(plan.ToCreate, raw)
			continue
		}

		candidate := r.mapper.MapToLocal(raw, &existing)
		if task.Normalize(candidate).Equal(task.Normalize(existing)) {
			plan.Summary.Unchanged++
			continue
		}
		plan.ToUpdate = append(plan.ToUpdate, UpdatePair{ID: id, Remote: raw, Local: existing})
	}

	for _, id := range sortedKeysRecords(localSnap) {
		if _, ok := remoteSnap[id]; !ok {
			plan.ToDelete = append(plan.ToDelete, localSnap[id])
		}
	}

	plan.Summary.Created = len(plan.ToCreate)
	plan.Summary.Updated = len(plan.ToUpdate)
	plan.Summary.Deleted = len(plan.ToDelete)

	return plan
}

func sortedKeys(m map[string]remote.RawTask) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysRecords(m map[string]task.Record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
