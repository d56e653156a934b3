package eventstream

import "context"

// Publisher publishes interaction and preference events to an event stream
// backend. Publishing happens after the durable write and never decides its
// outcome.
type Publisher interface {
	PublishInteraction(ctx context.Context, event *InteractionLoggedEvent) error
	PublishPreference(ctx context.Context, event *PreferenceUpdatedEvent) error
	Close() error
}
