// Package store provides the local SQLite mirror of the remote task source.
//
// The database runs in embedded mode with WAL for concurrent reads. The
// tasks table is keyed by the canonical task id; labels are stored as a
// JSON array column and instants as RFC3339 text.
//
// All writes for one sync pass go through BatchWrite, which issues the
// inserts, upserts, and deletes of a reconciliation plan inside a single
// transaction: a failed batch applies nothing.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/steveyegge/taskmirror/internal/task"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Sentinel errors distinguishing read failures from write failures.
var (
	ErrRead  = errors.New("store: read failed")
	ErrWrite = errors.New("store: write failed")
)

// CountFilter narrows Count to a subset of records.
type CountFilter struct {
	// Completed, when non-nil, filters on is_completed.
	Completed *bool
}

// DB wraps the SQLite connection with mirror-specific functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema before
// first use. The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_completed INTEGER NOT NULL DEFAULT 0,
		labels TEXT,  -- JSON array
		priority INTEGER NOT NULL DEFAULT 4,
		due_date TEXT,
		due_time TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		project_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		completed_at TEXT,
		last_updated_by TEXT NOT NULL,
		source TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(is_completed);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %v", ErrWrite, err)
	}

	return nil
}

const recordColumns = `id, content, description, is_completed, labels, priority,
	       due_date, due_time, url, project_id,
	       created_at, updated_at, completed_at, last_updated_by, source`

// FindAll returns every record in the mirror, ordered by id.
func (db *DB) FindAll(ctx context.Context) ([]task.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM tasks ORDER BY id ASC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query tasks: %v", ErrRead, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FindByIDs returns the records matching the given ids, ordered by id.
// Missing ids are simply absent from the result.
func (db *DB) FindByIDs(ctx context.Context, ids []string) ([]task.Record, error) {
	if len(ids) == 0 {
		return []task.Record{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT ` + recordColumns + ` FROM tasks WHERE id IN (` + placeholders + `) ORDER BY id ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query tasks by id: %v", ErrRead, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Count returns the number of records matching the filter.
func (db *DB) Count(ctx context.Context, filter CountFilter) (int, error) {
	query := "SELECT COUNT(*) FROM tasks"
	var args []interface{}

	if filter.Completed != nil {
		query += " WHERE is_completed = ?"
		args = append(args, boolToInt(*filter.Completed))
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count tasks: %v", ErrRead, err)
	}
	return count, nil
}

// BatchWrite applies one reconciliation plan's writes in a single
// transaction: inserts for new records, upserts keyed by id for changed
// records, and deletes by id for vanished records.
//
// On any failure the transaction rolls back and no operation is applied.
func (db *DB) BatchWrite(ctx context.Context, inserts, updates []task.Record, deletes []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrWrite, err)
	}
	defer tx.Rollback()

	for i := range inserts {
		if err := execInsert(ctx, tx, &inserts[i]); err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrWrite, inserts[i].ID, err)
		}
	}
	for i := range updates {
		if err := execUpsert(ctx, tx, &updates[i]); err != nil {
			return fmt.Errorf("%w: update %s: %v", ErrWrite, updates[i].ID, err)
		}
	}
	for _, id := range deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("%w: delete %s: %v", ErrWrite, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit batch: %v", ErrWrite, err)
	}
	return nil
}

// execInsert writes a brand-new record. Fails on id collision so that a
// snapshot violating id uniqueness surfaces instead of silently merging.
func execInsert(ctx context.Context, tx *sql.Tx, r *task.Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid record: %v", err)
	}

	labelsJSON, err := json.Marshal(task.NormalizeLabels(r.Labels))
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %v", err)
	}

	query := `
	INSERT INTO tasks (` + recordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		r.ID,
		r.Content,
		r.Description,
		boolToInt(r.IsCompleted),
		string(labelsJSON),
		r.Priority,
		timeToNullString(r.DueDate),
		r.DueTime,
		r.URL,
		r.ProjectID,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
		timeToNullString(r.CompletedAt),
		r.LastUpdatedBy,
		r.Source,
	)
	return err
}

// execUpsert writes a changed record, keyed by id. created_at is never
// touched on conflict: first-seen wins for the record's lifetime.
func execUpsert(ctx context.Context, tx *sql.Tx, r *task.Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid record: %v", err)
	}

	labelsJSON, err := json.Marshal(task.NormalizeLabels(r.Labels))
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %v", err)
	}

	query := `
	INSERT INTO tasks (` + recordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		content = excluded.content,
		description = excluded.description,
		is_completed = excluded.is_completed,
		labels = excluded.labels,
		priority = excluded.priority,
		due_date = excluded.due_date,
		due_time = excluded.due_time,
		url = excluded.url,
		project_id = excluded.project_id,
		updated_at = excluded.updated_at,
		completed_at = excluded.completed_at,
		last_updated_by = excluded.last_updated_by,
		source = excluded.source
	`

	_, err = tx.ExecContext(ctx, query,
		r.ID,
		r.Content,
		r.Description,
		boolToInt(r.IsCompleted),
		string(labelsJSON),
		r.Priority,
		timeToNullString(r.DueDate),
		r.DueTime,
		r.URL,
		r.ProjectID,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
		timeToNullString(r.CompletedAt),
		r.LastUpdatedBy,
		r.Source,
	)
	return err
}

// scanRecords scans multiple records from query results.
func scanRecords(rows *sql.Rows) ([]task.Record, error) {
	records := []task.Record{}

	for rows.Next() {
		var r task.Record
		var labelsJSON sql.NullString
		var isCompleted int
		var createdAt, updatedAt string
		var dueDate, completedAt sql.NullString

		err := rows.Scan(
			&r.ID,
			&r.Content,
			&r.Description,
			&isCompleted,
			&labelsJSON,
			&r.Priority,
			&dueDate,
			&r.DueTime,
			&r.URL,
			&r.ProjectID,
			&createdAt,
			&updatedAt,
			&completedAt,
			&r.LastUpdatedBy,
			&r.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan task: %v", ErrRead, err)
		}

		r.IsCompleted = isCompleted != 0

		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			r.UpdatedAt = t
		}
		r.DueDate = nullStringToTime(dueDate)
		r.CompletedAt = nullStringToTime(completedAt)

		if labelsJSON.Valid && labelsJSON.String != "" && labelsJSON.String != "null" {
			if err := json.Unmarshal([]byte(labelsJSON.String), &r.Labels); err != nil {
				return nil, fmt.Errorf("%w: failed to unmarshal labels for %s: %v", ErrRead, r.ID, err)
			}
		} else {
			r.Labels = []string{}
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating tasks: %v", ErrRead, err)
	}

	return records, nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
