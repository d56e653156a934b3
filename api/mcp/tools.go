package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tastes/pkg/recommend"
)

var (
	getPreferenceToolName    = "get_preference"
	getPreferenceDescription = "Get a user's current preference vector and the embedding space (provider, model, dims) it belongs to."

	recommendToolName    = "recommend"
	recommendDescription = "Rank catalog products by similarity to a user's preference vector. Returns product IDs with scores, most similar first."
)

// GetPreferenceInput represents the input arguments for the get_preference tool.
type GetPreferenceInput struct {
	UserID string `json:"user_id" jsonschema:"the user whose preference vector to read"`
}

// PreferenceOutput represents the output of the get_preference tool.
type PreferenceOutput struct {
	UserID    string    `json:"user_id"`
	Found     bool      `json:"found"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Dims      int       `json:"dims,omitempty"`
	Version   int64     `json:"version,omitempty"`
	UpdatedAt string    `json:"updated_at,omitempty"`
	Vector    []float32 `json:"vector,omitempty"`
}

// RecommendInput represents the input arguments for the recommend tool.
type RecommendInput struct {
	UserID  string   `json:"user_id" jsonschema:"the user to recommend products for"`
	TopK    int      `json:"top_k,omitempty" jsonschema:"number of products to return (default: 10)"`
	Exclude []string `json:"exclude,omitempty" jsonschema:"product IDs to leave out, e.g. already purchased"`
}

// RecommendedProduct represents a single ranked product.
type RecommendedProduct struct {
	ProductID string  `json:"product_id"`
	Score     float32 `json:"score"`
}

// RecommendOutput represents the output of the recommend tool.
type RecommendOutput struct {
	UserID   string               `json:"user_id"`
	Products []RecommendedProduct `json:"products"`
	Count    int                  `json:"count"`
}

func emptyRecommendOutput(userID string) RecommendOutput {
	return RecommendOutput{UserID: userID, Products: []RecommendedProduct{}}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// textResult mirrors the structured output as JSON text for clients that
// only read content blocks.
func textResult(output any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, nil
}

// handleGetPreference reads a user's preference state.
func (s *Server) handleGetPreference(ctx context.Context, _ *mcp.CallToolRequest, input GetPreferenceInput) (*mcp.CallToolResult, PreferenceOutput, error) {
	logger := s.config.Logger

	if input.UserID == "" {
		return toolError("user_id is required"), PreferenceOutput{}, nil
	}

	logger.Debug("MCP get_preference request", "user_id", input.UserID)

	state, err := s.config.States.GetPreferenceState(ctx, input.UserID)
	if err != nil {
		logger.Error("failed to read preference state", "user_id", input.UserID, "error", err)
		return toolError("Failed to read preference state: %v", err), PreferenceOutput{}, nil
	}

	output := PreferenceOutput{UserID: input.UserID}
	if state != nil {
		output.Found = true
		output.Provider = state.Provenance.Provider
		output.Model = state.Provenance.Model
		output.Dims = state.Provenance.Dims
		output.Version = state.Version
		output.UpdatedAt = state.UpdatedAt.Format(time.RFC3339Nano)
		output.Vector = state.Vector
	}

	res, err := textResult(output)
	if err != nil {
		logger.Error("failed to marshal preference output", "error", err)
		return toolError("Failed to serialize preference: %v", err), PreferenceOutput{}, nil
	}
	return res, output, nil
}

// handleRecommend ranks products for a user.
func (s *Server) handleRecommend(ctx context.Context, _ *mcp.CallToolRequest, input RecommendInput) (*mcp.CallToolResult, RecommendOutput, error) {
	logger := s.config.Logger

	if input.UserID == "" {
		return toolError("user_id is required"), emptyRecommendOutput(input.UserID), nil
	}

	logger.Debug("MCP recommend request",
		"user_id", input.UserID,
		"top_k", input.TopK,
		"exclude", len(input.Exclude),
	)

	results, err := s.config.Recommender.Recommend(ctx, input.UserID, input.TopK, input.Exclude)
	if errors.Is(err, recommend.ErrNoPreference) {
		return toolError("User %s has no preference vector yet", input.UserID), emptyRecommendOutput(input.UserID), nil
	}
	if err != nil {
		logger.Error("failed to rank products", "user_id", input.UserID, "error", err)
		return toolError("Failed to rank products: %v", err), emptyRecommendOutput(input.UserID), nil
	}

	products := make([]RecommendedProduct, 0, len(results))
	for _, r := range results {
		products = append(products, RecommendedProduct{ProductID: r.ProductID, Score: r.Score})
	}

	output := RecommendOutput{
		UserID:   input.UserID,
		Products: products,
		Count:    len(products),
	}

	res, err := textResult(output)
	if err != nil {
		logger.Error("failed to marshal recommend output", "error", err)
		return toolError("Failed to serialize results: %v", err), emptyRecommendOutput(input.UserID), nil
	}
	return res, output, nil
}
