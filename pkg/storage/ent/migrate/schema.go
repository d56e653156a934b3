// Package migrate holds the relational schema for the event log and the
// preference state store and applies it with ent's migration engine.
package migrate

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	// InteractionsTable holds the append-only event log.
	InteractionsTable = "interactions"

	// PreferenceStatesTable holds one row per user.
	PreferenceStatesTable = "preference_states"
)

var (
	// InteractionsColumns holds the columns for the "interactions" table.
	InteractionsColumns = []*schema.Column{
		{Name: "seq", Type: field.TypeInt64, Increment: true},
		{Name: "id", Type: field.TypeString, Unique: true, Size: 36},
		{Name: "user_id", Type: field.TypeString, Nullable: true},
		{Name: "recipient_id", Type: field.TypeString, Nullable: true},
		{Name: "product_id", Type: field.TypeString},
		{Name: "action", Type: field.TypeString},
		{Name: "source", Type: field.TypeString, Default: ""},
		{Name: "weight", Type: field.TypeFloat64, Nullable: true},
		{Name: "context", Type: field.TypeJSON, Nullable: true},
		{Name: "occurred_at", Type: field.TypeTime},
	}
	// InteractionsTableSchema holds the schema information for the "interactions" table.
	InteractionsTableSchema = &schema.Table{
		Name:       InteractionsTable,
		Columns:    InteractionsColumns,
		PrimaryKey: []*schema.Column{InteractionsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "interaction_user_id_seq",
				Unique:  false,
				Columns: []*schema.Column{InteractionsColumns[2], InteractionsColumns[0]},
			},
		},
	}

	// PreferenceStatesColumns holds the columns for the "preference_states" table.
	PreferenceStatesColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString},
		{Name: "vector", Type: field.TypeBytes},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "dims", Type: field.TypeInt},
		{Name: "version", Type: field.TypeInt64},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// PreferenceStatesTableSchema holds the schema information for the "preference_states" table.
	PreferenceStatesTableSchema = &schema.Table{
		Name:       PreferenceStatesTable,
		Columns:    PreferenceStatesColumns,
		PrimaryKey: []*schema.Column{PreferenceStatesColumns[0]},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		InteractionsTableSchema,
		PreferenceStatesTableSchema,
	}
)

// Create runs ent's auto-migration for Tables against drv. It only applies
// additive changes (new tables, columns, indexes).
func Create(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
