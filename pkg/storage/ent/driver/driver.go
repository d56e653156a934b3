// Package entdriver implements storage.Driver on ent's SQL dialect layer.
package entdriver

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/storage/ent/migrate"
	"github.com/papercomputeco/tastes/pkg/vector"
)

// EntDriver provides storage operations using an ent SQL driver.
// It is database-agnostic and can be embedded by specific drivers.
type EntDriver struct {
	Driver *sql.Driver
}

var interactionColumns = []string{
	"seq", "id", "user_id", "recipient_id", "product_id",
	"action", "source", "weight", "context", "occurred_at",
}

var stateColumns = []string{
	"user_id", "vector", "provider", "model", "dims", "version", "updated_at",
}

func (ed *EntDriver) builder() *sql.DialectBuilder {
	return sql.Dialect(ed.Driver.Dialect())
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", storage.ErrUnavailable, op, err)
}

// Append records event in the interactions table.
func (ed *EntDriver) Append(ctx context.Context, event *interaction.Event) (string, error) {
	e, err := storage.PrepareAppend(event)
	if err != nil {
		return "", err
	}

	var contextJSON any
	if e.Context != nil {
		b, err := interaction.MarshalContext(e.Context)
		if err != nil {
			return "", fmt.Errorf("failed to marshal context: %w", err)
		}
		contextJSON = string(b)
	}

	query, args := ed.builder().
		Insert(migrate.InteractionsTable).
		Columns(interactionColumns[1:]...).
		Values(e.ID, e.UserID, e.RecipientID, e.ProductID,
			string(e.Action), string(e.Source), e.Weight, contextJSON, e.Timestamp).
		Query()

	if _, err := ed.Driver.DB().ExecContext(ctx, query, args...); err != nil {
		return "", unavailable("append interaction", err)
	}
	return e.ID, nil
}

// List returns logged events ordered by insertion sequence.
func (ed *EntDriver) List(ctx context.Context, opts storage.ListOpts) ([]storage.Entry, error) {
	b := ed.builder()
	sel := b.Select(interactionColumns...).From(b.Table(migrate.InteractionsTable))

	var preds []*sql.Predicate
	if opts.After != "" {
		seq, err := strconv.ParseInt(opts.After, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", opts.After, err)
		}
		preds = append(preds, sql.GT("seq", seq))
	}
	if opts.UserID != "" {
		preds = append(preds, sql.EQ("user_id", opts.UserID))
	}
	if len(preds) > 0 {
		sel.Where(sql.And(preds...))
	}
	query, args := sel.OrderBy("seq").Limit(opts.PageLimit()).Query()

	rows, err := ed.Driver.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list interactions", err)
	}
	defer rows.Close()

	var entries []storage.Entry
	for rows.Next() {
		var (
			seq                 int64
			e                   interaction.Event
			userID, recipientID stdsql.NullString
			action, source      string
			weight              stdsql.NullFloat64
			contextJSON         []byte
		)
		if err := rows.Scan(&seq, &e.ID, &userID, &recipientID, &e.ProductID,
			&action, &source, &weight, &contextJSON, &e.Timestamp); err != nil {
			return nil, unavailable("scan interaction", err)
		}

		e.Action = interaction.Action(action)
		e.Source = interaction.Source(source)
		e.Timestamp = e.Timestamp.UTC()
		if userID.Valid {
			e.UserID = interaction.String(userID.String)
		}
		if recipientID.Valid {
			e.RecipientID = interaction.String(recipientID.String)
		}
		if weight.Valid {
			e.Weight = interaction.Float(weight.Float64)
		}
		if e.Context, err = interaction.UnmarshalContext(contextJSON); err != nil {
			return nil, fmt.Errorf("decoding context of interaction %s: %w", e.ID, err)
		}

		entries = append(entries, storage.Entry{
			Cursor: strconv.FormatInt(seq, 10),
			Event:  &e,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate interactions", err)
	}
	return entries, nil
}

// Read returns the user's preference state.
func (ed *EntDriver) Read(ctx context.Context, userID string) (*storage.State, error) {
	b := ed.builder()
	query, args := b.Select(stateColumns...).
		From(b.Table(migrate.PreferenceStatesTable)).
		Where(sql.EQ("user_id", userID)).
		Query()

	var (
		s    storage.State
		blob []byte
	)
	err := ed.Driver.DB().QueryRowContext(ctx, query, args...).Scan(
		&s.UserID, &blob, &s.Provenance.Provider, &s.Provenance.Model,
		&s.Provenance.Dims, &s.Version, &s.UpdatedAt,
	)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, storage.NotFoundError{UserID: userID}
	}
	if err != nil {
		return nil, unavailable("read preference state", err)
	}

	if s.Vector, err = vector.Decode(blob); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrCorruptState, userID, err)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

// Write inserts or conditionally updates the user's state in one statement.
func (ed *EntDriver) Write(ctx context.Context, state *storage.State, expectedVersion int64) error {
	if err := storage.CheckWrite(state, expectedVersion); err != nil {
		return err
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	updatedAt = updatedAt.UTC()
	blob := vector.Encode(state.Vector)

	var (
		query string
		args  []any
	)
	if expectedVersion == 0 {
		query, args = ed.builder().
			Insert(migrate.PreferenceStatesTable).
			Columns(stateColumns...).
			Values(state.UserID, blob, state.Provenance.Provider, state.Provenance.Model,
				state.Provenance.Dims, state.Version, updatedAt).
			OnConflict(sql.ConflictColumns("user_id"), sql.DoNothing()).
			Query()
	} else {
		query, args = ed.builder().
			Update(migrate.PreferenceStatesTable).
			Set("vector", blob).
			Set("provider", state.Provenance.Provider).
			Set("model", state.Provenance.Model).
			Set("dims", state.Provenance.Dims).
			Set("version", state.Version).
			Set("updated_at", updatedAt).
			Where(sql.And(
				sql.EQ("user_id", state.UserID),
				sql.EQ("version", expectedVersion),
			)).
			Query()
	}

	res, err := ed.Driver.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable("write preference state", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("write preference state", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s expected version %d", storage.ErrVersionConflict, state.UserID, expectedVersion)
	}
	return nil
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

var _ storage.Driver = (*EntDriver)(nil)
