// Package catalog reads product catalogs and loads their vectors into the
// product index used for recommendations.
package catalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/vector"
)

// Product is one line of a JSONL catalog.
type Product struct {
	ProductID   string   `json:"product_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Vector is a precomputed embedding. When set, Provenance must name
	// the index's embedding space.
	Vector     []float32          `json:"vector,omitempty"`
	Provenance *vector.Provenance `json:"provenance,omitempty"`
}

// Text returns the text embedded for the product. It matches what an
// interaction with a product context embeds, so product vectors and
// preference vectors share one space.
func (p *Product) Text() string {
	return interaction.EmbeddingText(&interaction.Event{
		ProductID: p.ProductID,
		Context: interaction.ProductContext{
			Title:       p.Title,
			Description: p.Description,
			Tags:        p.Tags,
		},
	})
}

// ParseResult is a parsed catalog.
type ParseResult struct {
	// Products are deduplicated by ProductID in order of first appearance,
	// keeping the last line for each ID.
	Products []Product

	// Malformed counts lines that were not valid product JSON or had no
	// product_id.
	Malformed int
}

// ParseFile reads a JSONL catalog from path.
func ParseFile(path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a JSONL catalog. Blank lines are ignored.
func Parse(r io.Reader) (*ParseResult, error) {
	byID := make(map[string]Product)
	var order []string
	result := &ParseResult{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB max line

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var p Product
		if err := json.Unmarshal([]byte(line), &p); err != nil || p.ProductID == "" {
			result.Malformed++
			continue
		}

		if _, seen := byID[p.ProductID]; !seen {
			order = append(order, p.ProductID)
		}
		byID[p.ProductID] = p
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	result.Products = make([]Product, 0, len(order))
	for _, id := range order {
		result.Products = append(result.Products, byID[id])
	}
	return result, nil
}
