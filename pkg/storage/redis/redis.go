// Package redis provides a Redis-backed storage.Driver. Events are kept in
// streams and each user's state in a hash written under WATCH/MULTI.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/vector"
)

// DefaultPrefix namespaces every key the driver touches.
const DefaultPrefix = "tastes"

// appendScript adds the event to the global stream and, for named users, to
// the user's stream under the same ID.
var appendScript = goredis.NewScript(`
local id = redis.call('XADD', KEYS[1], '*', 'event', ARGV[1])
if #KEYS > 1 then
	redis.call('XADD', KEYS[2], id, 'event', ARGV[1])
end
return id
`)

// Config holds configuration for the Redis driver.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix defaults to DefaultPrefix.
	Prefix string
}

// Driver implements storage.Driver on Redis.
type Driver struct {
	rdb    *goredis.Client
	prefix string
}

// NewDriver connects to Redis and verifies the connection.
func NewDriver(ctx context.Context, c Config) (*Driver, error) {
	if c.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	prefix := c.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: 5 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %w", storage.ErrUnavailable, err)
	}

	return &Driver{rdb: rdb, prefix: prefix}, nil
}

func (d *Driver) logKey() string {
	return d.prefix + ":interactions"
}

func (d *Driver) userLogKey(userID string) string {
	return d.prefix + ":interactions:user:" + userID
}

func (d *Driver) stateKey(userID string) string {
	return d.prefix + ":state:" + userID
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", storage.ErrUnavailable, op, err)
}

// Append adds event to the interaction streams.
func (d *Driver) Append(ctx context.Context, event *interaction.Event) (string, error) {
	e, err := storage.PrepareAppend(event)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal interaction: %w", err)
	}

	keys := []string{d.logKey()}
	if e.HasUser() {
		keys = append(keys, d.userLogKey(e.User()))
	}
	if err := appendScript.Run(ctx, d.rdb, keys, string(payload)).Err(); err != nil {
		return "", unavailable("append interaction", err)
	}
	return e.ID, nil
}

// List returns logged events in stream order. Cursors are stream IDs.
func (d *Driver) List(ctx context.Context, opts storage.ListOpts) ([]storage.Entry, error) {
	key := d.logKey()
	if opts.UserID != "" {
		key = d.userLogKey(opts.UserID)
	}
	start := "-"
	if opts.After != "" {
		start = "(" + opts.After
	}

	msgs, err := d.rdb.XRangeN(ctx, key, start, "+", int64(opts.PageLimit())).Result()
	if err != nil {
		return nil, unavailable("list interactions", err)
	}

	entries := make([]storage.Entry, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			return nil, fmt.Errorf("stream entry %s has no event", msg.ID)
		}
		var e interaction.Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding stream entry %s: %w", msg.ID, err)
		}
		entries = append(entries, storage.Entry{Cursor: msg.ID, Event: &e})
	}
	return entries, nil
}

// Read returns the user's preference state.
func (d *Driver) Read(ctx context.Context, userID string) (*storage.State, error) {
	fields, err := d.rdb.HGetAll(ctx, d.stateKey(userID)).Result()
	if err != nil {
		return nil, unavailable("read preference state", err)
	}
	if len(fields) == 0 {
		return nil, storage.NotFoundError{UserID: userID}
	}
	return decodeState(userID, fields)
}

func decodeState(userID string, fields map[string]string) (*storage.State, error) {
	corrupt := func(field string, err error) error {
		return fmt.Errorf("%w: %s: field %s: %w", storage.ErrCorruptState, userID, field, err)
	}

	s := &storage.State{
		UserID: userID,
		Provenance: vector.Provenance{
			Provider: fields["provider"],
			Model:    fields["model"],
		},
	}

	var err error
	if s.Vector, err = vector.Decode([]byte(fields["vector"])); err != nil {
		return nil, corrupt("vector", err)
	}
	if s.Provenance.Dims, err = strconv.Atoi(fields["dims"]); err != nil {
		return nil, corrupt("dims", err)
	}
	if s.Version, err = strconv.ParseInt(fields["version"], 10, 64); err != nil {
		return nil, corrupt("version", err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, corrupt("updated_at", err)
	}
	return s, nil
}

// Write replaces the user's hash inside a WATCH/MULTI transaction that
// aborts when the stored version moves.
func (d *Driver) Write(ctx context.Context, state *storage.State, expectedVersion int64) error {
	if err := storage.CheckWrite(state, expectedVersion); err != nil {
		return err
	}

	key := d.stateKey(state.UserID)
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	err := d.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Int64()
		switch {
		case errors.Is(err, goredis.Nil):
			current = 0
		case err != nil:
			return unavailable("read version", err)
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: %s is at version %d, expected %d",
				storage.ErrVersionConflict, state.UserID, current, expectedVersion)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]any{
				"vector":     vector.Encode(state.Vector),
				"provider":   state.Provenance.Provider,
				"model":      state.Provenance.Model,
				"dims":       state.Provenance.Dims,
				"version":    state.Version,
				"updated_at": updatedAt.UTC().Format(time.RFC3339Nano),
			})
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.TxFailedErr):
		return fmt.Errorf("%w: %s changed during write", storage.ErrVersionConflict, state.UserID)
	case errors.Is(err, storage.ErrVersionConflict), errors.Is(err, storage.ErrUnavailable):
		return err
	default:
		return unavailable("write preference state", err)
	}
}

// Close closes the Redis client.
func (d *Driver) Close() error {
	return d.rdb.Close()
}

var _ storage.Driver = (*Driver)(nil)
