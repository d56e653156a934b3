package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tastes/ingest"
	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/recommend"
	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/vector"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string           `json:"error"`
	Code  ingest.ErrorCode `json:"code,omitempty"`

	// EventID is set when the event was logged but its update failed.
	EventID string `json:"event_id,omitempty"`
}

// PreferenceResponse is the readout of a user's preference state.
type PreferenceResponse struct {
	State *storage.State `json:"state"`
}

// RecommendationsResponse lists ranked products for a user.
type RecommendationsResponse struct {
	UserID   string          `json:"user_id"`
	Products []RankedProduct `json:"products"`
	Count    int             `json:"count"`
}

// RankedProduct is a single recommended product.
type RankedProduct struct {
	ProductID string  `json:"product_id"`
	Score     float32 `json:"score"`
}

// statusFor maps an error onto an HTTP status. Transient failures are 503,
// exhausted compare-and-swap retries are 409, corrupt state is 500.
func statusFor(code ingest.ErrorCode) int {
	switch code {
	case ingest.CodeInvalidEvent:
		return fiber.StatusBadRequest
	case ingest.CodeEmbeddingUnavailable, ingest.CodeStorageUnavailable:
		return fiber.StatusServiceUnavailable
	case ingest.CodeConcurrentUpdateConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIngest logs an interaction. With ?sync=true the preference update is
// applied before responding and the committed state is returned.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	var event interaction.Event
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  ingest.CodeInvalidEvent,
		})
	}
	if event.Source == "" {
		event.Source = interaction.SourceAPI
	}

	ack, err := s.deps.Ingest.Ingest(c.UserContext(), &event, ingest.Options{Sync: c.QueryBool("sync")})
	if err != nil {
		code := ingest.Code(err)
		resp := ErrorResponse{Error: err.Error(), Code: code}
		if ack != nil {
			resp.EventID = ack.EventID
		}
		return c.Status(statusFor(code)).JSON(resp)
	}

	status := fiber.StatusCreated
	if ack.Queued {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(ack)
}

// handleGetPreference returns the user's committed preference state.
func (s *Server) handleGetPreference(c *fiber.Ctx) error {
	userID := c.Params("id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user id required"})
	}

	state, err := s.deps.States.GetPreferenceState(c.UserContext(), userID)
	if err != nil {
		s.logger.Error("failed to read preference state", "user_id", userID, "error", err)
		code := ingest.Code(err)
		return c.Status(statusFor(code)).JSON(ErrorResponse{Error: "failed to read preference state", Code: code})
	}
	if state == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no preference state for user"})
	}

	return c.JSON(PreferenceResponse{State: state})
}

// handleRecommendations ranks products against the user's preference vector.
func (s *Server) handleRecommendations(c *fiber.Ctx) error {
	if s.deps.Recommender == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "no vector store configured"})
	}

	userID := c.Params("id")
	topK := c.QueryInt("top_k", vector.DefaultTopK)

	var exclude []string
	if raw := c.Query("exclude"); raw != "" {
		for id := range strings.SplitSeq(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				exclude = append(exclude, id)
			}
		}
	}

	results, err := s.deps.Recommender.Recommend(c.UserContext(), userID, topK, exclude)
	switch {
	case errors.Is(err, recommend.ErrNoPreference):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, vector.ErrProvenanceMismatch), errors.Is(err, vector.ErrDimensionMismatch):
		s.logger.Error("preference state does not match the product index", "user_id", userID, "error", err)
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Error("failed to rank products", "user_id", userID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "failed to rank products"})
	}

	products := make([]RankedProduct, 0, len(results))
	for _, r := range results {
		products = append(products, RankedProduct{ProductID: r.ProductID, Score: r.Score})
	}

	return c.JSON(RecommendationsResponse{
		UserID:   userID,
		Products: products,
		Count:    len(products),
	})
}
