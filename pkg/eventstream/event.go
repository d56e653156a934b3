// Package eventstream defines the notifications emitted after interactions
// are logged and preference states are committed.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/vector"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeInteractionLogged is emitted after an interaction is appended
	// to the event log.
	EventTypeInteractionLogged = "tastes.interaction.logged"

	// EventTypePreferenceUpdated is emitted after a preference state commit.
	EventTypePreferenceUpdated = "tastes.preference.updated"
)

// Envelope holds the fields shared by every event payload.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
}

func newEnvelope(eventType string) Envelope {
	return Envelope{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
	}
}

// InteractionLoggedEvent is a transport-neutral payload for a logged
// interaction.
type InteractionLoggedEvent struct {
	Envelope
	Interaction *interaction.Event `json:"interaction"`
}

// NewInteractionLogged wraps a logged event.
func NewInteractionLogged(e *interaction.Event) *InteractionLoggedEvent {
	return &InteractionLoggedEvent{
		Envelope:    newEnvelope(EventTypeInteractionLogged),
		Interaction: e,
	}
}

// Key returns the partition key for the event.
func (e *InteractionLoggedEvent) Key() string {
	if e.Interaction == nil {
		return ""
	}
	if e.Interaction.HasUser() {
		return e.Interaction.User()
	}
	return e.Interaction.ProductID
}

// PreferenceUpdatedEvent is a transport-neutral payload for a committed
// preference state.
type PreferenceUpdatedEvent struct {
	Envelope
	UserID       string            `json:"user_id"`
	CauseEventID string            `json:"cause_event_id"`
	Version      int64             `json:"version"`
	Provenance   vector.Provenance `json:"provenance"`
	Vector       []float32         `json:"vector"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewPreferenceUpdated describes state as committed for the interaction
// identified by causeEventID.
func NewPreferenceUpdated(state *storage.State, causeEventID string) *PreferenceUpdatedEvent {
	return &PreferenceUpdatedEvent{
		Envelope:     newEnvelope(EventTypePreferenceUpdated),
		UserID:       state.UserID,
		CauseEventID: causeEventID,
		Version:      state.Version,
		Provenance:   state.Provenance,
		Vector:       state.Vector,
		UpdatedAt:    state.UpdatedAt,
	}
}

// Key returns the partition key for the event.
func (e *PreferenceUpdatedEvent) Key() string {
	return e.UserID
}
