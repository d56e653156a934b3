// Package mcp provides an MCP (Model Context Protocol) server exposing user
// preference vectors and recommendations as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tastes/pkg/recommend"
	"github.com/papercomputeco/tastes/pkg/utils"
)

type Config struct {
	// States reads committed preference states
	States recommend.StateReader

	// Recommender ranks products (optional, enables the recommend tool)
	Recommender *recommend.Recommender

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the preference tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "tastes",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.States == nil {
			return nil, errors.New("state reader is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        getPreferenceToolName,
			Description: getPreferenceDescription,
		}, s.handleGetPreference)

		if c.Recommender != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        recommendToolName,
				Description: recommendDescription,
			}, s.handleRecommend)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
