package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/tastes/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu           sync.Mutex
	interactions []*eventstream.InteractionLoggedEvent
	preferences  []*eventstream.PreferenceUpdatedEvent

	// Fail causes every publish to return an error.
	Fail bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishInteraction(_ context.Context, event *eventstream.InteractionLoggedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.New("mock publisher failure")
	}
	m.interactions = append(m.interactions, event)
	return nil
}

func (m *MockPublisher) PublishPreference(_ context.Context, event *eventstream.PreferenceUpdatedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.New("mock publisher failure")
	}
	m.preferences = append(m.preferences, event)
	return nil
}

// Interactions returns the interaction events published so far.
func (m *MockPublisher) Interactions() []*eventstream.InteractionLoggedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.InteractionLoggedEvent(nil), m.interactions...)
}

// Preferences returns the preference events published so far.
func (m *MockPublisher) Preferences() []*eventstream.PreferenceUpdatedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.PreferenceUpdatedEvent(nil), m.preferences...)
}

func (m *MockPublisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
