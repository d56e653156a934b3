// Package preference maintains per-user preference vectors. Each interaction
// is embedded, merged into the user's stored vector with exponential decay,
// and committed with a compare-and-swap on the state's version.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/tastes/pkg/embeddings"
	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/vector"
)

// State is a user's committed preference vector.
type State = storage.State

// Config wires an Engine.
type Config struct {
	Store storage.StateStore

	// Embedder resolves events without a precomputed vector. When nil only
	// precomputed vectors are accepted.
	Embedder embeddings.Embedder

	// Tuning defaults to DefaultTuning when its zero value.
	Tuning Tuning

	Logger *slog.Logger
}

// Engine applies interactions to preference states. It holds no per-user
// state and no locks; concurrent calls for one user serialize through the
// store's compare-and-swap.
type Engine struct {
	store    storage.StateStore
	embedder embeddings.Embedder
	tuning   atomic.Pointer[Tuning]
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine validates c and returns an Engine.
func NewEngine(c Config) (*Engine, error) {
	if c.Store == nil {
		return nil, errors.New("preference engine requires a state store")
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Tuning.Weights == nil && c.Tuning.Decay == 0 {
		c.Tuning = DefaultTuning()
	}

	e := &Engine{
		store:    c.Store,
		embedder: c.Embedder,
		logger:   c.Logger,
		now:      time.Now,
	}
	if err := e.SetTuning(c.Tuning); err != nil {
		return nil, err
	}
	return e, nil
}

// SetTuning validates t and swaps it in for subsequent calls. Calls already
// in flight finish with the tuning they started with.
func (e *Engine) SetTuning(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t = t.clone()
	e.tuning.Store(&t)
	return nil
}

// Tuning returns a copy of the current tuning.
func (e *Engine) Tuning() Tuning {
	return e.tuning.Load().clone()
}

// ApplyInteraction merges event into its user's preference state and returns
// the committed state. Events without a user are a no-op and return
// (nil, nil). Failures are returned as *UpdateError.
func (e *Engine) ApplyInteraction(ctx context.Context, event *interaction.Event) (*State, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if !event.HasUser() {
		return nil, nil
	}

	t := e.tuning.Load()
	userID := event.User()
	fail := func(attempts int, err error) (*State, error) {
		return nil, &UpdateError{UserID: userID, Action: event.Action, Attempts: attempts, Err: err}
	}

	w, err := t.Weight(event)
	if err != nil {
		return fail(0, err)
	}

	emb, prov, err := e.embed(ctx, event, t)
	if err != nil {
		return fail(0, err)
	}

	for attempt := 1; attempt <= t.MaxAttempts; attempt++ {
		current, err := e.read(ctx, userID, t)
		if err != nil {
			return fail(attempt, err)
		}

		next, err := merge(current, emb, prov, w*t.WeightScale, t.Decay)
		if err != nil {
			return fail(attempt, err)
		}
		next.UserID = userID
		next.UpdatedAt = e.now().UTC()

		var expected int64
		if current != nil {
			expected = current.Version
		}

		err = e.write(ctx, next, expected, t)
		switch {
		case err == nil:
			e.logger.Debug("preference updated",
				"user_id", userID,
				"event_id", event.ID,
				"action", event.Action,
				"version", next.Version,
				"attempt", attempt,
			)
			return next, nil
		case errors.Is(err, storage.ErrVersionConflict):
			e.logger.Debug("preference update lost a version race, retrying",
				"user_id", userID,
				"event_id", event.ID,
				"expected_version", expected,
				"attempt", attempt,
			)
		default:
			return fail(attempt, err)
		}
	}

	return fail(t.MaxAttempts, fmt.Errorf("%w: %d attempts", ErrConcurrentUpdateConflict, t.MaxAttempts))
}

// GetPreferenceState returns the user's committed state, or (nil, nil) when
// the user has none.
func (e *Engine) GetPreferenceState(ctx context.Context, userID string) (*State, error) {
	return e.read(ctx, userID, e.tuning.Load())
}

func (e *Engine) embed(ctx context.Context, event *interaction.Event, t *Tuning) ([]float32, vector.Provenance, error) {
	if vc, ok := interaction.Precomputed(event); ok {
		if err := vc.Provenance.Validate(); err != nil {
			return nil, vector.Provenance{}, fmt.Errorf("%w: precomputed vector: %w", interaction.ErrInvalidEvent, err)
		}
		if len(vc.Vector) != vc.Provenance.Dims {
			return nil, vector.Provenance{}, fmt.Errorf("%w: precomputed vector has %d values for %d dims",
				interaction.ErrInvalidEvent, len(vc.Vector), vc.Provenance.Dims)
		}
		return vc.Vector, vc.Provenance, nil
	}

	if e.embedder == nil {
		return nil, vector.Provenance{}, fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)
	}

	if t.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.EmbedTimeout)
		defer cancel()
	}

	prov := e.embedder.Provenance()
	v, err := e.embedder.Embed(ctx, interaction.EmbeddingText(event))
	if err != nil {
		return nil, prov, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	if err := embeddings.CheckDims(prov, v); err != nil {
		return nil, prov, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	return v, prov, nil
}

func (e *Engine) read(ctx context.Context, userID string, t *Tuning) (*State, error) {
	if t.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.StoreTimeout)
		defer cancel()
	}

	s, err := e.store.Read(ctx, userID)
	switch {
	case err == nil:
		return s, nil
	case storage.IsNotFound(err):
		return nil, nil
	case errors.Is(err, storage.ErrCorruptState):
		return nil, fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}

func (e *Engine) write(ctx context.Context, s *State, expected int64, t *Tuning) error {
	if t.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.StoreTimeout)
		defer cancel()
	}

	err := e.store.Write(ctx, s, expected)
	switch {
	case err == nil, errors.Is(err, storage.ErrVersionConflict):
		return err
	case errors.Is(err, vector.ErrDimensionMismatch):
		return fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}

// merge computes the state that follows current after one weighted signal.
// A first signal, or one from another provider or model, replaces the vector
// outright with normalize(e). The same model reporting different dims is
// corruption, not a new embedding space.
func merge(current *State, e []float32, prov vector.Provenance, w, decay float64) (*State, error) {
	if len(e) != prov.Dims {
		return nil, fmt.Errorf("%w: incoming vector has %d values for %s",
			ErrDimensionMismatch, len(e), prov)
	}

	if current == nil {
		return &State{Vector: vector.Normalize(e), Provenance: prov, Version: 1}, nil
	}
	if !current.Provenance.SameModel(prov) {
		return &State{Vector: vector.Normalize(e), Provenance: prov, Version: current.Version + 1}, nil
	}
	if current.Provenance.Dims != prov.Dims {
		return nil, fmt.Errorf("%w: stored %s, incoming %s",
			ErrDimensionMismatch, current.Provenance, prov)
	}

	if len(current.Vector) != current.Provenance.Dims {
		return nil, fmt.Errorf("%w: stored vector has %d values for %s",
			ErrDimensionMismatch, len(current.Vector), current.Provenance)
	}

	v, err := vector.Blend(current.Vector, e, decay, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
	}
	return &State{Vector: v, Provenance: prov, Version: current.Version + 1}, nil
}
