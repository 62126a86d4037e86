// Package sync implements the one-way reconciliation engine between the
// remote task source and the local mirror store.
//
// Overview
//
// A sync pass takes a full snapshot of both sides, keyed by the canonical
// task id, and computes the minimal set of writes that moves the local
// store to the remote state:
//
//	Remote source (active + completed listings)
//	     │                       Local store (SQLite)
//	     └────────┬──────────────────┘
//	              ▼
//	        Reconciler  →  Plan{ToCreate, ToUpdate, ToDelete}
//	              ▼
//	        Mapper (per create/update: shape resolution,
//	                completion transitions, timestamp policy)
//	              ▼
//	        Executor → one batched store write
//
// Records present remotely but absent locally are created, records that
// differ after normalization are updated, and records that vanished
// remotely are deleted. Repeating a sync against an unchanged remote is a
// no-op: the second pass classifies everything as unchanged.
//
// Error Handling
//
// A sync fails fast: any fetch, read, or write failure aborts the pass and
// is returned as a single error. The only tolerated per-record failure is
// a remote record that carries neither an "id" nor a "task_id" field; such
// records are skipped with a logged warning and counted in Stats.Skipped.
//
// Concurrency
//
// The two snapshot reads run concurrently (they are independent reads);
// everything after them is sequential. Exactly one sync pass must run at a
// time per store - callers such as the daemon and the HTTP server serialize
// their invocations.
package sync
