package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/tastes/pkg/interaction"
)

// PrepareAppend validates event and returns the copy a log should persist,
// stamped with a fresh ID and the ingestion time. Any ID or Timestamp the
// caller set is overwritten, and the caller's event gets the same values.
func PrepareAppend(event *interaction.Event) (*interaction.Event, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	// a re-append of an already logged event is a new entry
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()

	return event.Clone(), nil
}
