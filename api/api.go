package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// Server is the API server for the tastes service.
type Server struct {
	config Config
	deps   Dependencies
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The dependencies are injected so the same engine and stores can back the
// worker pool and the MCP server.
func NewServer(config Config, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if deps.Ingest == nil {
		return nil, errors.New("ingest service is required")
	}
	if deps.States == nil {
		return nil, errors.New("state reader is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/interactions", s.handleIngest)
	v1.Get("/users/:id/preference", s.handleGetPreference)
	v1.Get("/users/:id/recommendations", s.handleRecommendations)

	if deps.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(deps.MCP))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
