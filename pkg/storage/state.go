package storage

import (
	"fmt"
	"time"

	"github.com/papercomputeco/tastes/pkg/vector"
)

// State is a user's current preference vector.
type State struct {
	UserID string `json:"user_id"`

	// Vector has Provenance.Dims values.
	Vector []float32 `json:"vector"`

	Provenance vector.Provenance `json:"provenance"`

	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic concurrency token. It starts at 1 and
	// increases by one on every successful write.
	Version int64 `json:"version"`
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Vector = append([]float32(nil), s.Vector...)
	return &c
}

// CheckWrite validates a state about to be written with expectedVersion.
func CheckWrite(s *State, expectedVersion int64) error {
	switch {
	case s == nil:
		return fmt.Errorf("cannot write nil state")
	case s.UserID == "":
		return fmt.Errorf("state is missing a user id")
	case expectedVersion < 0:
		return fmt.Errorf("invalid expected version %d", expectedVersion)
	case s.Version != expectedVersion+1:
		return fmt.Errorf("state version %d does not follow expected version %d", s.Version, expectedVersion)
	case len(s.Vector) != s.Provenance.Dims:
		return fmt.Errorf("%w: state has %d values for %d dims",
			vector.ErrDimensionMismatch, len(s.Vector), s.Provenance.Dims)
	}
	return nil
}
