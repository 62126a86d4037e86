package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/store"
	"github.com/steveyegge/taskmirror/internal/task"
)

// Stats summarizes one completed sync pass.
type Stats struct {
	Created        int           `json:"created"`
	Updated        int           `json:"updated"`
	Deleted        int           `json:"deleted"`
	Unchanged      int           `json:"unchanged"`
	Skipped        int           `json:"skipped"`
	TotalRemote    int           `json:"total_remote"`
	TotalLocal     int           `json:"total_local"`
	FinalCount     int           `json:"final_count"`
	CompletedCount int           `json:"completed_count"`
	Duration       time.Duration `json:"duration"`
}

// Syncer orchestrates one-way synchronization from a Source into a Store.
//
// Exactly one Sync must run at a time per store; overlapping calls are the
// caller's responsibility to serialize.
type Syncer struct {
	source     Source
	store      Store
	mapper     *Mapper
	reconciler *Reconciler
	executor   *Executor
	logger     *log.Logger
}

// New creates a Syncer.
//
// If logger is nil, a default logger writing to stderr is used.
func New(source Source, st Store, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	mapper := NewMapper()
	return &Syncer{
		source:     source,
		store:      st,
		mapper:     mapper,
		reconciler: NewReconciler(mapper),
		executor:   NewExecutor(st, mapper),
		logger:     logger,
	}
}

// Sync performs one full reconciliation pass: snapshot both sides,
// compute the plan, apply it, and report statistics.
//
// It fails fast: any fetch, read, or write failure aborts the pass and
// no partial stats are returned.
func (s *Syncer) Sync(ctx context.Context) (Stats, error) {
	start := time.Now()

	plan, skipped, err := s.plan(ctx)
	if err != nil {
		return Stats{}, err
	}

	if _, err := s.executor.Apply(ctx, plan); err != nil {
		return Stats{}, fmt.Errorf("failed to apply sync plan: %w", err)
	}

	final, err := s.store.Count(ctx, store.CountFilter{})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count records after sync: %w", err)
	}
	completed := true
	completedCount, err := s.store.Count(ctx, store.CountFilter{Completed: &completed})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count completed records after sync: %w", err)
	}

	stats := Stats{
		Created:        plan.Summary.Created,
		Updated:        plan.Summary.Updated,
		Deleted:        plan.Summary.Deleted,
		Unchanged:      plan.Summary.Unchanged,
		Skipped:        skipped,
		TotalRemote:    plan.Summary.TotalRemote,
		TotalLocal:     plan.Summary.TotalLocal,
		FinalCount:     final,
		CompletedCount: completedCount,
		Duration:       time.Since(start),
	}

	s.logger.Printf("Sync complete: created=%d updated=%d deleted=%d unchanged=%d skipped=%d (%v)",
		stats.Created, stats.Updated, stats.Deleted, stats.Unchanged, stats.Skipped,
		stats.Duration.Round(time.Millisecond))

	return stats, nil
}

// CheckOnly computes the reconciliation plan without writing anything,
// for preview purposes.
func (s *Syncer) CheckOnly(ctx context.Context) (Plan, error) {
	plan, _, err := s.plan(ctx)
	return plan, err
}

// plan snapshots both sides concurrently and reconciles them.
func (s *Syncer) plan(ctx context.Context) (Plan, int, error) {
	type remoteResult struct {
		tasks []remote.RawTask
		err   error
	}

	// The two snapshot reads are independent; fetch the remote side in
	// the background while the local read runs here.
	remoteCh := make(chan remoteResult, 1)
	go func() {
		tasks, err := s.source.FetchAll(ctx)
		remoteCh <- remoteResult{tasks: tasks, err: err}
	}()

	local, localErr := s.store.FindAll(ctx)
	rr := <-remoteCh

	if rr.err != nil {
		return Plan{}, 0, fmt.Errorf("failed to fetch remote snapshot: %w", rr.err)
	}
	if localErr != nil {
		return Plan{}, 0, fmt.Errorf("failed to read local snapshot: %w", localErr)
	}

	remoteSnap, skipped := s.keyRemote(rr.tasks)
	localSnap := keyLocal(local)

	return s.reconciler.Reconcile(remoteSnap, localSnap), skipped, nil
}

// keyRemote builds the id-keyed remote snapshot. Records that resolve to
// no id cannot be correlated and are skipped with a warning; on an id
// collision between the active and completed listings the first-seen
// (active) record wins.
func (s *Syncer) keyRemote(tasks []remote.RawTask) (map[string]remote.RawTask, int) {
	snap := make(map[string]remote.RawTask, len(tasks))
	skipped := 0
	for _, raw := range tasks {
		id := raw.ID()
		if id == "" {
			s.logger.Printf("WARNING: skipping remote %s record without id (content=%q)",
				raw.Kind(), rawContent(raw))
			skipped++
			continue
		}
		if _, exists := snap[id]; exists {
			continue
		}
		snap[id] = raw
	}
	return snap, skipped
}

func keyLocal(records []task.Record) map[string]task.Record {
	snap := make(map[string]task.Record, len(records))
	for _, r := range records {
		snap[r.ID] = r
	}
	return snap
}

func rawContent(raw remote.RawTask) string {
	switch {
	case raw.Active != nil:
		return raw.Active.Content
	case raw.Completed != nil:
		return raw.Completed.Content
	default:
		return ""
	}
}
