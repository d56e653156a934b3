// Package worker provides an asynchronous worker pool that applies logged
// interactions to preference states off the ingestion hot path.
//
// An interaction is durable once it is in the event log, so a job dropped
// from a full queue only delays the user's preference state until the next
// replay.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/tastes/pkg/eventstream"
	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Applier merges an interaction into its user's preference state.
// preference.Engine satisfies it.
type Applier interface {
	ApplyInteraction(ctx context.Context, event *interaction.Event) (*storage.State, error)
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Event is the interaction as appended to the event log.
	Event *interaction.Event
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Engine applies each queued interaction.
	Engine Applier

	// Publisher receives a preference.updated event after each commit.
	// Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool applies interactions asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Engine == nil {
		return nil, errors.New("worker pool requires an engine")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed, job dropped", "event_id", job.Event.ID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"event_id", job.Event.ID,
			"action", job.Event.Action,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"event_id", job.Event.ID,
			"user_id", job.Event.User(),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("preference worker stopped", "worker_id", id)
}

// processJob applies a queued interaction and announces the committed state.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	state, err := p.config.Engine.ApplyInteraction(ctx, job.Event)
	if err != nil {
		p.logger.Error("async preference update failed",
			"event_id", job.Event.ID,
			"user_id", job.Event.User(),
			"error", err,
		)
		return
	}
	if state == nil {
		return
	}

	p.logger.Info("preference updated",
		"event_id", job.Event.ID,
		"user_id", state.UserID,
		"version", state.Version,
	)

	if p.config.Publisher == nil {
		return
	}
	if err := p.config.Publisher.PublishPreference(ctx, eventstream.NewPreferenceUpdated(state, job.Event.ID)); err != nil {
		p.logger.Warn("failed to publish preference update",
			"event_id", job.Event.ID,
			"user_id", state.UserID,
			"error", err,
		)
	}
}
