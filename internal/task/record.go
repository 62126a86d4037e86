// Package task provides the canonical task record mirrored from the remote
// source into the local store, plus the normalization rules used to compare
// records across the two sides.
package task

import (
	"fmt"
	"time"
)

const (
	// LastUpdatedBy tags every record written by this process.
	LastUpdatedBy = "taskmirror"

	// SourceTodoist marks records whose provenance is the Todoist API.
	SourceTodoist = "todoist"

	// DefaultPriority is assigned when the remote priority is missing or
	// outside the 1-4 range.
	DefaultPriority = 4
)

// Record is the canonical, source-agnostic task record persisted locally.
// Timestamps are stored with second precision; Labels compare as a set.
type Record struct {
	// ===== Core Identification =====
	ID string `json:"id"`

	// ===== Task Content =====
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`

	// ===== Completion State =====
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"` // set on false->true, cleared on true->false

	// ===== Classification =====
	Labels   []string `json:"labels,omitempty"`
	Priority int      `json:"priority"` // 1-4, canonical numeric

	// ===== Scheduling =====
	DueDate *time.Time `json:"due_date,omitempty"`
	DueTime string     `json:"due_time,omitempty"` // empty when DueDate has no time component

	// ===== Linkage =====
	URL       string `json:"url,omitempty"`
	ProjectID string `json:"project_id,omitempty"`

	// ===== Bookkeeping =====
	CreatedAt     time.Time `json:"created_at"` // immutable once set
	UpdatedAt     time.Time `json:"updated_at"`
	LastUpdatedBy string    `json:"last_updated_by"`
	Source        string    `json:"source"`
}

// Validate checks if the Record has valid field values.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Content == "" {
		return fmt.Errorf("content is required")
	}
	if r.Priority < 1 || r.Priority > 4 {
		return fmt.Errorf("priority must be between 1 and 4 (got %d)", r.Priority)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if r.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
// This ensures consistent behavior when fields are omitted.
func (r *Record) SetDefaults() {
	if r.Priority < 1 || r.Priority > 4 {
		r.Priority = DefaultPriority
	}
	if r.Labels == nil {
		r.Labels = []string{}
	}
	if r.LastUpdatedBy == "" {
		r.LastUpdatedBy = LastUpdatedBy
	}
	if r.Source == "" {
		r.Source = SourceTodoist
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
}
