// Package storage defines the durable interaction event log and the
// per-user preference state store.
package storage

import (
	"context"

	"github.com/papercomputeco/tastes/pkg/interaction"
)

// EventLog is the append-only record of raw interaction events. It is the
// source of truth for replay and audit.
type EventLog interface {
	// Append validates required fields, assigns a fresh ID and the ingestion
	// Timestamp, durably records the event, and returns its ID.
	// Appending the same event twice records two entries.
	Append(ctx context.Context, event *interaction.Event) (string, error)

	// List returns logged events in append order.
	List(ctx context.Context, opts ListOpts) ([]Entry, error)

	// Close releases any resources held by the log.
	Close() error
}

// StateStore holds one preference state per user and writes it with
// compare-and-swap semantics on State.Version.
type StateStore interface {
	// Read returns the user's state or a NotFoundError.
	Read(ctx context.Context, userID string) (*State, error)

	// Write stores state if the stored version still equals expectedVersion.
	// An expectedVersion of 0 inserts only when no row exists. Any mismatch,
	// including a missing row for a non-zero expectedVersion, returns
	// ErrVersionConflict. state.Version must be expectedVersion+1.
	Write(ctx context.Context, state *State, expectedVersion int64) error

	// Close releases any resources held by the store.
	Close() error
}

// Driver is a backend that provides both the event log and the state store.
type Driver interface {
	EventLog
	StateStore
}

// ListOpts filters and pages EventLog.List.
type ListOpts struct {
	// UserID limits results to one user's events when set.
	UserID string

	// After is the Cursor of the last entry already seen. Empty starts at
	// the beginning of the log.
	After string

	// Limit caps the page size. Zero uses DefaultListLimit.
	Limit int
}

// Entry is a logged event with its position in the log.
type Entry struct {
	// Cursor is an opaque, backend-specific position usable as ListOpts.After.
	Cursor string

	Event *interaction.Event
}

// DefaultListLimit is the page size used when ListOpts.Limit is zero.
const DefaultListLimit = 500

// PageLimit returns the effective page size for opts.
func (o ListOpts) PageLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
