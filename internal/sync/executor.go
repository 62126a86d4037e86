package sync

import (
	"context"
	"fmt"

	"github.com/steveyegge/taskmirror/internal/task"
)

// ExecutionResult reports what a successfully applied plan wrote.
type ExecutionResult struct {
	Created int
	Updated int
	Deleted int
}

// Executor applies a reconciliation plan to the store as one batched write.
//
// The Executor does not deduplicate or re-check the plan: idempotence is a
// property of the full reconcile-then-apply loop, not of Apply in isolation.
type Executor struct {
	store  Store
	mapper *Mapper
}

// NewExecutor creates an Executor writing through the given store.
func NewExecutor(store Store, mapper *Mapper) *Executor {
	return &Executor{store: store, mapper: mapper}
}

// Apply maps every create and update through the Mapper and submits all
// operations as a single store batch. If the batch fails, no operations
// are considered applied and the zero result is returned with the error.
func (e *Executor) Apply(ctx context.Context, plan Plan) (ExecutionResult, error) {
	inserts := make([]task.Record, 0, len(plan.ToCreate))
	for _, raw := range plan.ToCreate {
		inserts = append(inserts, e.mapper.MapToLocal(raw, nil))
	}

	updates := make([]task.Record, 0, len(plan.ToUpdate))
	for _, pair := range plan.ToUpdate {
		local := pair.Local
		updates = append(updates, e.mapper.MapToLocal(pair.Remote, &local))
	}

	deletes := make([]string, 0, len(plan.ToDelete))
	for _, rec := range plan.ToDelete {
		deletes = append(deletes, rec.ID)
	}

	if len(inserts) == 0 && len(updates) == 0 && len(deletes) == 0 {
		return ExecutionResult{}, nil
	}

	if err := e.store.BatchWrite(ctx, inserts, updates, deletes); err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to apply batch: %w", err)
	}

	return ExecutionResult{
		Created: len(inserts),
		Updated: len(updates),
		Deleted: len(deletes),
	}, nil
}
