// Package sqlitevec provides a SQLite-backed product index using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/tastes/pkg/vector"
)

const provenanceKey = "provenance"

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db         *sql.DB
	provenance vector.Provenance
	logger     *slog.Logger
}

// Config holds configuration for the sqlite-vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Provenance is the embedding space of the product vectors. The first
	// open records it; later opens must match.
	Provenance vector.Provenance
}

// NewDriver opens or creates a sqlite-vec product index.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if err := c.Provenance.Validate(); err != nil {
		return nil, fmt.Errorf("sqlite-vec index: %w", err)
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// vec0 tables and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	if err := migrate(db, c.Provenance); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite-vec product index initialized",
		"db_path", c.DBPath,
		"provenance", c.Provenance.String(),
		"vec_version", vecVersion,
	)

	return &Driver{
		db:         db,
		provenance: c.Provenance,
		logger:     logger,
	}, nil
}

func migrate(db *sql.DB, p vector.Provenance) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vec_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		// vec0 virtual tables use integer rowids, so product IDs map to rowids.
		`CREATE TABLE IF NOT EXISTS vec_products (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL UNIQUE
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`, p.Dims),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrating sqlite-vec index: %w", err)
		}
	}

	var raw string
	err := db.QueryRow(`SELECT value FROM vec_meta WHERE key = ?`, provenanceKey).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO vec_meta(key, value) VALUES (?, ?)`, provenanceKey, string(b)); err != nil {
			return fmt.Errorf("recording index provenance: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading index provenance: %w", err)
	}

	var existing vector.Provenance
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return fmt.Errorf("decoding index provenance: %w", err)
	}
	if !existing.Equal(p) {
		return fmt.Errorf("%w: index was built with %s, configured %s",
			vector.ErrProvenanceMismatch, existing, p)
	}
	return nil
}

// Add stores product vectors. Existing products are replaced.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := vector.CheckDocuments(d.provenance, docs); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		blob := vector.Encode(doc.Embedding)

		var rowID int64
		err := tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_products WHERE product_id = ?`, doc.ProductID,
		).Scan(&rowID)

		switch {
		case err == nil:
			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for product %s: %w", doc.ProductID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO vec_products(product_id) VALUES (?)`, doc.ProductID,
			)
			if err != nil {
				return fmt.Errorf("inserting product %s: %w", doc.ProductID, err)
			}
			if rowID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("getting rowid for product %s: %w", doc.ProductID, err)
			}
		default:
			return fmt.Errorf("looking up product %s: %w", doc.ProductID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`, rowID, blob,
		); err != nil {
			return fmt.Errorf("inserting embedding for product %s: %w", doc.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added products to sqlite-vec", "count", len(docs))
	return nil
}

// Query returns the products nearest to q.Vector by cosine distance.
func (d *Driver) Query(ctx context.Context, q vector.Query) ([]vector.QueryResult, error) {
	if err := vector.CheckQuery(d.provenance, q); err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT p.product_id, ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_products p ON p.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, vector.Encode(q.Vector), topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var productID string
		var distance float64
		if err := rows.Scan(&productID, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		results = append(results, vector.QueryResult{
			ProductID: productID,
			Score:     float32(1.0 / (1.0 + distance)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "results", len(results))
	return results, nil
}

// Delete removes products from the index.
func (d *Driver) Delete(ctx context.Context, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(productIDs))
	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	in := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM vec_embeddings WHERE rowid IN (SELECT rowid FROM vec_products WHERE product_id IN (%s))`, in,
	), args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM vec_products WHERE product_id IN (%s)`, in,
	), args...); err != nil {
		return fmt.Errorf("deleting products: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted products from sqlite-vec", "count", len(productIDs))
	return nil
}

// Provenance returns the embedding space the index was built against.
func (d *Driver) Provenance() vector.Provenance {
	return d.provenance
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}
