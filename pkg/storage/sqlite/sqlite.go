// Package sqlite stores the interaction log and preference states in a single
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/mattn/go-sqlite3"

	entdriver "github.com/papercomputeco/tastes/pkg/storage/ent/driver"
	"github.com/papercomputeco/tastes/pkg/storage/ent/migrate"
)

// SQLiteDriver is a storage.Driver over a go-sqlite3 connection.
type SQLiteDriver struct {
	*entdriver.EntDriver
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
}

// NewSQLiteDriver opens (or creates) the database at dbPath and ensures the
// interactions and preference_states tables exist. dbPath may be ":memory:".
func NewSQLiteDriver(ctx context.Context, dbPath string) (*SQLiteDriver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection shares ":memory:" databases and serializes the
	// version check inside CompareAndSwap.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	if err := migrate.Create(ctx, drv); err != nil {
		drv.Close()
		return nil, err
	}

	return &SQLiteDriver{EntDriver: &entdriver.EntDriver{Driver: drv}}, nil
}
