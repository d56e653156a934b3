package storage

import "errors"

var (
	// ErrVersionConflict is returned by StateStore.Write when the stored
	// version is not the expected one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnavailable is returned when the backend cannot be reached or an
	// operation on it fails or times out.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrCorruptState is returned when a stored row cannot be decoded.
	ErrCorruptState = errors.New("corrupt preference state")
)

// NotFoundError is returned when a user has no preference state.
type NotFoundError struct {
	UserID string
}

func (e NotFoundError) Error() string {
	if e.UserID == "" {
		return "preference state not found"
	}

	return "preference state not found: " + e.UserID
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
