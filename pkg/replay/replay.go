// Package replay re-applies logged interaction events to preference state.
//
// The event log is the source of truth. Replay rebuilds state after async
// updates were dropped, timed out, or the state store was reset. Applying an
// event folds it into the current state, so replaying a range that was
// already applied counts it twice; callers track progress with Result.Cursor.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/storage"
)

// Applier folds one event into its user's preference state.
type Applier interface {
	ApplyInteraction(ctx context.Context, event *interaction.Event) (*storage.State, error)
}

// Options configures replay behavior.
type Options struct {
	// UserID limits the replay to one user's events.
	UserID string

	// After resumes after this cursor. Empty starts at the beginning.
	After string

	// PageSize is the number of entries listed per page. Zero uses
	// storage.DefaultListLimit.
	PageSize int

	// ContinueOnError counts failed updates and keeps going instead of
	// stopping at the first one.
	ContinueOnError bool

	// DryRun lists and counts events without applying them.
	DryRun bool

	// OnPage is called after every page with the running result. An error
	// stops the replay.
	OnPage func(Result) error
}

// Replayer walks an event log and applies each event.
type Replayer struct {
	log     storage.EventLog
	engine  Applier
	options Options
	logger  *slog.Logger
}

// NewReplayer creates a Replayer over log that applies events with engine.
func NewReplayer(log storage.EventLog, engine Applier, opts Options, l *slog.Logger) (*Replayer, error) {
	if log == nil {
		return nil, errors.New("replay requires an event log")
	}
	if engine == nil && !opts.DryRun {
		return nil, errors.New("replay requires a preference engine")
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Replayer{log: log, engine: engine, options: opts, logger: l}, nil
}

// Run replays events in append order. On error the returned Result still
// reports progress up to the last event that was processed.
func (r *Replayer) Run(ctx context.Context) (*Result, error) {
	result := &Result{Cursor: r.options.After}

	for {
		entries, err := r.log.List(ctx, storage.ListOpts{
			UserID: r.options.UserID,
			After:  result.Cursor,
			Limit:  r.options.PageSize,
		})
		if err != nil {
			return result, fmt.Errorf("listing events: %w", err)
		}
		if len(entries) == 0 {
			return result, nil
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := r.apply(ctx, entry, result); err != nil {
				return result, err
			}
			result.Cursor = entry.Cursor
		}

		if r.options.OnPage != nil {
			if err := r.options.OnPage(*result); err != nil {
				return result, err
			}
		}

		if len(entries) < (storage.ListOpts{Limit: r.options.PageSize}).PageLimit() {
			return result, nil
		}
	}
}

func (r *Replayer) apply(ctx context.Context, entry storage.Entry, result *Result) error {
	result.Scanned++
	event := entry.Event

	if !event.HasUser() {
		result.Anonymous++
		return nil
	}
	if r.options.DryRun {
		result.Applied++
		return nil
	}

	state, err := r.engine.ApplyInteraction(ctx, event)
	if err != nil {
		result.Failed++
		r.logger.Warn("replay update failed",
			"event_id", event.ID,
			"user_id", event.User(),
			"error", err,
		)
		if r.options.ContinueOnError {
			return nil
		}
		return fmt.Errorf("applying event %s: %w", event.ID, err)
	}

	result.Applied++
	r.logger.Debug("replayed event",
		"event_id", event.ID,
		"user_id", state.UserID,
		"version", state.Version,
	)
	return nil
}
