// Package inmemory provides an in-memory storage.Driver for tests and
// single-process use.
package inmemory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding the log and states
	mu sync.RWMutex

	// events is the append-only log, indexed by position
	events []*interaction.Event

	// states maps user IDs to their current preference state
	states map[string]*storage.State
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		states: make(map[string]*storage.State),
	}
}

// Append records a copy of event.
func (d *Driver) Append(ctx context.Context, event *interaction.Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	entry, err := storage.PrepareAppend(event)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.events = append(d.events, entry)
	return entry.ID, nil
}

// List returns logged events in append order. Cursors are log positions.
func (d *Driver) List(ctx context.Context, opts storage.ListOpts) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	start := 0
	if opts.After != "" {
		pos, err := strconv.Atoi(opts.After)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", opts.After, err)
		}
		start = pos + 1
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	limit := opts.PageLimit()
	var entries []storage.Entry
	for i := start; i < len(d.events) && len(entries) < limit; i++ {
		e := d.events[i]
		if opts.UserID != "" && e.User() != opts.UserID {
			continue
		}
		entries = append(entries, storage.Entry{
			Cursor: strconv.Itoa(i),
			Event:  e.Clone(),
		})
	}
	return entries, nil
}

// Read returns a copy of the user's state.
func (d *Driver) Read(ctx context.Context, userID string) (*storage.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.states[userID]
	if !ok {
		return nil, storage.NotFoundError{UserID: userID}
	}
	return s.Clone(), nil
}

// Write stores a copy of state if the current version equals
// expectedVersion.
func (d *Driver) Write(ctx context.Context, state *storage.State, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	if err := storage.CheckWrite(state, expectedVersion); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.states[state.UserID]
	switch {
	case expectedVersion == 0 && ok:
		return fmt.Errorf("%w: state for %s already exists", storage.ErrVersionConflict, state.UserID)
	case expectedVersion > 0 && !ok:
		return fmt.Errorf("%w: no state for %s", storage.ErrVersionConflict, state.UserID)
	case ok && current.Version != expectedVersion:
		return fmt.Errorf("%w: %s is at version %d, expected %d",
			storage.ErrVersionConflict, state.UserID, current.Version, expectedVersion)
	}

	d.states[state.UserID] = state.Clone()
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
