// Package vectorutils builds a product index driver from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/papercomputeco/tastes/pkg/vector"
	"github.com/papercomputeco/tastes/pkg/vector/qdrant"
	"github.com/papercomputeco/tastes/pkg/vector/sqlitevec"
)

// ProviderNone disables the product index.
const ProviderNone = "none"

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is the sqlite-vec database path or the qdrant host[:port].
	TargetURL  string
	Collection string
	APIKey     string

	// Provenance is the embedding space of the indexed product vectors.
	Provenance vector.Provenance
	Logger     *slog.Logger
}

// NewVectorDriver returns nil, nil for ProviderNone.
func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite", "sqlitevec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Provenance: o.Provenance,
		}, o.Logger)
	case "qdrant":
		host, port, err := splitHostPort(o.TargetURL)
		if err != nil {
			return nil, err
		}
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:       host,
			Port:       port,
			APIKey:     o.APIKey,
			Collection: o.Collection,
			Provenance: o.Provenance,
		}, o.Logger)
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// splitHostPort accepts "host" or "host:port". A zero port lets the driver
// apply its default.
func splitHostPort(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port present.
		return target, 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}
