// Package api provides the HTTP API for logging interactions and reading
// preference vectors and recommendations.
package api

import (
	"net/http"

	"github.com/papercomputeco/tastes/ingest"
	"github.com/papercomputeco/tastes/pkg/recommend"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string
}

// Dependencies are the components the API serves.
type Dependencies struct {
	// Ingest logs and applies interactions.
	Ingest *ingest.Service

	// States reads committed preference states.
	States recommend.StateReader

	// Recommender ranks products. When nil the recommendations route
	// responds 503.
	Recommender *recommend.Recommender

	// MCP is mounted at /mcp when set.
	MCP http.Handler
}
