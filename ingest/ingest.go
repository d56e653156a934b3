// Package ingest accepts interaction events, records them in the event log,
// and applies them to preference states either inline or through the async
// worker pool.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tastes/ingest/worker"
	"github.com/papercomputeco/tastes/pkg/eventstream"
	"github.com/papercomputeco/tastes/pkg/eventstream/nop"
	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/preference"
	"github.com/papercomputeco/tastes/pkg/storage"
)

// ErrorCode classifies a failed ingestion for transport layers.
type ErrorCode string

const (
	CodeInvalidEvent             ErrorCode = "invalid_event"
	CodeEmbeddingUnavailable     ErrorCode = "embedding_unavailable"
	CodeStorageUnavailable       ErrorCode = "storage_unavailable"
	CodeConcurrentUpdateConflict ErrorCode = "concurrent_update_conflict"
	CodeDimensionMismatch        ErrorCode = "dimension_mismatch"
	CodeInvalidTuning            ErrorCode = "invalid_tuning"
	CodeInternal                 ErrorCode = "internal"
)

// Code maps err onto the ingestion error taxonomy. A nil err has no code.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, interaction.ErrInvalidEvent):
		return CodeInvalidEvent
	case errors.Is(err, preference.ErrEmbeddingUnavailable):
		return CodeEmbeddingUnavailable
	case errors.Is(err, preference.ErrStorageUnavailable), errors.Is(err, storage.ErrUnavailable):
		return CodeStorageUnavailable
	case errors.Is(err, preference.ErrConcurrentUpdateConflict):
		return CodeConcurrentUpdateConflict
	case errors.Is(err, preference.ErrDimensionMismatch):
		return CodeDimensionMismatch
	case errors.Is(err, preference.ErrInvalidTuning):
		return CodeInvalidTuning
	default:
		return CodeInternal
	}
}

// Options controls a single Ingest call.
type Options struct {
	// Sync applies the event before returning and reports the committed
	// state in the Ack.
	Sync bool
}

// Ack acknowledges a logged event.
type Ack struct {
	EventID string `json:"event_id"`

	// State is the committed preference state of a synchronous update.
	State *storage.State `json:"state,omitempty"`

	// ErrorCode is set when a synchronous update failed after the event was
	// logged.
	ErrorCode ErrorCode `json:"error_code,omitempty"`

	// Queued is true when the update was handed to the worker pool.
	Queued bool `json:"queued"`
}

// Config wires a Service.
type Config struct {
	Log    storage.EventLog
	Engine worker.Applier

	// Pool applies asynchronous updates. When nil every call is synchronous.
	Pool *worker.Pool

	// Publisher defaults to a no-op publisher.
	Publisher eventstream.Publisher

	Logger *slog.Logger
}

// Service is the ingestion entry point.
type Service struct {
	log       storage.EventLog
	engine    worker.Applier
	pool      *worker.Pool
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// NewService validates c and returns a Service.
func NewService(c Config) (*Service, error) {
	if c.Log == nil {
		return nil, errors.New("ingest service requires an event log")
	}
	if c.Engine == nil {
		return nil, errors.New("ingest service requires a preference engine")
	}
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Service{
		log:       c.Log,
		engine:    c.Engine,
		pool:      c.Pool,
		publisher: c.Publisher,
		logger:    c.Logger,
	}, nil
}

// Ingest logs event and applies it to the user's preference state.
//
// A nil Ack means nothing was logged. A non-nil Ack with a non-nil error
// means the event is durable but its synchronous update failed; the event
// remains available for replay.
func (s *Service) Ingest(ctx context.Context, event *interaction.Event, opts Options) (*Ack, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: nil event", interaction.ErrInvalidEvent)
	}

	id, err := s.log.Append(ctx, event)
	if err != nil {
		s.logger.Error("failed to log interaction",
			"product_id", event.ProductID,
			"action", event.Action,
			"error", err,
		)
		return nil, err
	}

	ack := &Ack{EventID: id}
	s.logger.Debug("interaction logged",
		"event_id", id,
		"user_id", event.User(),
		"action", event.Action,
		"source", event.Source,
	)

	if err := s.publisher.PublishInteraction(ctx, eventstream.NewInteractionLogged(event.Clone())); err != nil {
		s.logger.Warn("failed to publish interaction", "event_id", id, "error", err)
	}

	if !event.HasUser() {
		return ack, nil
	}

	if !opts.Sync && s.pool != nil {
		ack.Queued = s.pool.Enqueue(worker.Job{Event: event.Clone()})
		return ack, nil
	}

	state, err := s.engine.ApplyInteraction(ctx, event)
	if err != nil {
		ack.ErrorCode = Code(err)
		s.logger.Error("preference update failed",
			"event_id", id,
			"user_id", event.User(),
			"error_code", ack.ErrorCode,
			"error", err,
		)
		return ack, err
	}
	ack.State = state

	if err := s.publisher.PublishPreference(ctx, eventstream.NewPreferenceUpdated(state, id)); err != nil {
		s.logger.Warn("failed to publish preference update", "event_id", id, "error", err)
	}
	return ack, nil
}
