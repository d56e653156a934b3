// Package qdrant provides a product index backed by a Qdrant collection.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/tastes/pkg/vector"
)

const (
	payloadProductID  = "product_id"
	payloadProvenance = "provenance"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334
)

// pointNamespace derives stable point UUIDs from product IDs, since Qdrant
// only accepts unsigned integers or UUIDs as point IDs.
var pointNamespace = uuid.MustParse("6f1c8a3e-2d4b-4e57-9a61-0c3f5e7d9b21")

// Config holds configuration for the Qdrant driver.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string

	// Provenance is the embedding space of the product vectors.
	Provenance vector.Provenance
}

// Driver implements vector.Driver against a Qdrant collection.
type Driver struct {
	client     *qdrant.Client
	collection string
	provenance vector.Provenance
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and ensures the collection exists with the
// configured vector size.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	if c.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}
	if err := c.Provenance.Validate(); err != nil {
		return nil, fmt.Errorf("qdrant index: %w", err)
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: c.Collection,
		provenance: c.Provenance,
		logger:     logger,
	}
	if err := d.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("qdrant product index initialized",
		"host", c.Host,
		"collection", c.Collection,
		"provenance", c.Provenance.String(),
	)
	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %w", vector.ErrConnection, err)
	}

	if !exists {
		err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: d.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(d.provenance.Dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", d.collection, err)
		}
		return nil
	}

	info, err := d.client.GetCollectionInfo(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("reading collection %s: %w", d.collection, err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && int(size) != d.provenance.Dims {
		return fmt.Errorf("%w: collection %s has %d dimensions, configured %d",
			vector.ErrDimensionMismatch, d.collection, size, d.provenance.Dims)
	}
	return nil
}

func pointID(productID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(pointNamespace, []byte(productID)).String())
}

// Add upserts product vectors tagged with the index provenance.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := vector.CheckDocuments(d.provenance, docs); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(doc.ProductID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadProductID:  doc.ProductID,
				payloadProvenance: d.provenance.String(),
			}),
		})
	}

	if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added products to qdrant", "count", len(docs))
	return nil
}

// Query returns the nearest products whose vectors share the index provenance.
func (d *Driver) Query(ctx context.Context, q vector.Query) ([]vector.QueryResult, error) {
	if err := vector.CheckQuery(d.provenance, q); err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(payloadProvenance, d.provenance.String()),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		productID := p.GetPayload()[payloadProductID].GetStringValue()
		if productID == "" {
			continue
		}
		results = append(results, vector.QueryResult{
			ProductID: productID,
			// cosine similarity in [-1, 1] rescaled to match sqlite-vec's range
			Score: (1 + p.GetScore()) / 2,
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

// Delete removes products from the collection.
func (d *Driver) Delete(ctx context.Context, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, 0, len(productIDs))
	for _, id := range productIDs {
		ids = append(ids, pointID(id))
	}

	if _, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(ids...),
	}); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted products from qdrant", "count", len(productIDs))
	return nil
}

// Provenance returns the embedding space the index was built against.
func (d *Driver) Provenance() vector.Provenance {
	return d.provenance
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
