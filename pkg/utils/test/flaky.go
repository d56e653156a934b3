package testutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/tastes/pkg/storage"
)

// FlakyStore wraps a StateStore and injects failures.
type FlakyStore struct {
	storage.StateStore

	mu sync.Mutex

	// conflicts is the number of upcoming writes that lose a race to a
	// competing writer.
	conflicts int

	// ReadErr and WriteErr, when set, are returned instead of delegating.
	ReadErr  error
	WriteErr error

	// Delay makes every operation block until it elapses or the context
	// is done.
	Delay time.Duration

	reads  atomic.Int64
	writes atomic.Int64
}

func NewFlakyStore(inner storage.StateStore) *FlakyStore {
	return &FlakyStore{StateStore: inner}
}

// InjectConflicts makes the next n writes lose to a concurrent writer that
// commits first.
func (f *FlakyStore) InjectConflicts(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts = n
}

func (f *FlakyStore) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, ctx.Err())
	}
}

func (f *FlakyStore) Read(ctx context.Context, userID string) (*storage.State, error) {
	f.reads.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return f.StateStore.Read(ctx, userID)
}

func (f *FlakyStore) Write(ctx context.Context, s *storage.State, expectedVersion int64) error {
	f.writes.Add(1)
	if err := f.wait(ctx); err != nil {
		return err
	}
	if f.WriteErr != nil {
		return f.WriteErr
	}

	f.mu.Lock()
	compete := f.conflicts > 0
	if compete {
		f.conflicts--
	}
	f.mu.Unlock()

	if compete {
		if err := f.competingWrite(ctx, s, expectedVersion); err != nil {
			return err
		}
	}
	return f.StateStore.Write(ctx, s, expectedVersion)
}

// competingWrite commits a copy of s one version ahead of the caller.
func (f *FlakyStore) competingWrite(ctx context.Context, s *storage.State, expectedVersion int64) error {
	return f.StateStore.Write(ctx, s.Clone(), expectedVersion)
}

// Reads returns the number of Read calls.
func (f *FlakyStore) Reads() int {
	return int(f.reads.Load())
}

// Writes returns the number of Write calls.
func (f *FlakyStore) Writes() int {
	return int(f.writes.Load())
}
