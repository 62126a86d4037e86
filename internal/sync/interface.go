package sync

import (
	"context"

	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/store"
	"github.com/steveyegge/taskmirror/internal/task"
)

// Source is the remote side of the mirror. *remote.Client satisfies it.
type Source interface {
	// FetchAll returns a full point-in-time snapshot of the remote
	// source, covering both the active and the completed task shapes.
	FetchAll(ctx context.Context) ([]remote.RawTask, error)
}

// Store is the local side of the mirror. *store.DB satisfies it.
type Store interface {
	// FindAll returns every locally persisted record.
	FindAll(ctx context.Context) ([]task.Record, error)

	// FindByIDs returns the records matching the given ids.
	FindByIDs(ctx context.Context, ids []string) ([]task.Record, error)

	// BatchWrite applies inserts, upserts-by-id, and deletes-by-id as
	// one batched call. A failed batch must apply nothing.
	BatchWrite(ctx context.Context, inserts, updates []task.Record, deletes []string) error

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter store.CountFilter) (int, error)
}
