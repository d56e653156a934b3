package preference

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/tastes/pkg/interaction"
)

var (
	// ErrEmbeddingUnavailable is returned when no embedding could be produced
	// for an event. Transient; callers may retry.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStorageUnavailable is returned when the state store could not be
	// read or written. Transient; callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConcurrentUpdateConflict is returned when every compare-and-swap
	// attempt lost to a concurrent writer.
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")

	// ErrDimensionMismatch is returned when a stored vector and an incoming
	// one claim the same embedding space but differ in length. The row needs
	// repair; retrying will not help.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidTuning is returned when merge parameters are out of range.
	ErrInvalidTuning = errors.New("invalid tuning")
)

// UpdateError reports a failed ApplyInteraction with the context a caller
// needs to decide on replay. It unwraps to one of the package sentinels.
type UpdateError struct {
	UserID   string
	Action   interaction.Action
	Attempts int
	Err      error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("apply %s for user %s failed after %d attempt(s): %v",
		e.Action, e.UserID, e.Attempts, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is a transient failure the caller may retry
// by replaying the event.
func Retryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrConcurrentUpdateConflict)
}
