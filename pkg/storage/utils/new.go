// Package storageutils builds a storage.Driver from configuration.
package storageutils

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/storage/inmemory"
	"github.com/papercomputeco/tastes/pkg/storage/postgres"
	"github.com/papercomputeco/tastes/pkg/storage/redis"
	"github.com/papercomputeco/tastes/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// Driver is one of "sqlite", "postgres", "redis", or "inmemory".
	Driver string

	SQLitePath    string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// NewDriver opens the configured backend. An empty Driver picks sqlite when
// a path is set and inmemory otherwise.
func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	name := o.Driver
	if name == "" {
		name = "inmemory"
		if o.SQLitePath != "" {
			name = "sqlite"
		}
	}

	switch name {
	case "sqlite":
		if o.SQLitePath == "" {
			return nil, errors.New("sqlite storage requires a database path")
		}
		return sqlite.NewSQLiteDriver(ctx, o.SQLitePath)
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a connection string")
		}
		return postgres.NewDriver(ctx, o.PostgresDSN)
	case "redis":
		return redis.NewDriver(ctx, redis.Config{
			Addr:     o.RedisAddr,
			Password: o.RedisPassword,
			DB:       o.RedisDB,
			Prefix:   o.RedisPrefix,
		})
	case "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", name)
	}
}
