// ABOUTME: Product capability backed by the catalog store
// ABOUTME: Searches by keyword, id, category, and stock status

package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/store"
)

const (
	searchLimit   = 10
	categoryLimit = 15
)

// Capability answers product questions from the local catalog.
type Capability struct {
	products store.ProductStore
	logger   *slog.Logger
}

// New creates the product capability over the given catalog store.
func New(products store.ProductStore) *Capability {
	return &Capability{
		products: products,
		logger:   slog.Default().With("component", "capability.product"),
	}
}

func (c *Capability) Name() string { return "product" }

func (c *Capability) Description() string {
	return "Product catalog search by name, description, category, or brand"
}

// Validate fails discovery when no catalog store is wired in.
func (c *Capability) Validate() error {
	if c.products == nil {
		return errors.New("product store not configured")
	}
	return nil
}

func (c *Capability) Schemas() []capability.OperationSchema {
	return []capability.OperationSchema{
		{
			Name:        "find_products",
			Description: "Search for products in the database by name, description, category, or brand",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "Product name, description, category, or brand to search for"
					}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "get_product_by_id",
			Description: "Get detailed information about a specific product by ID",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"product_id": {
						"type": "integer",
						"description": "Product ID to look up"
					}
				},
				"required": ["product_id"]
			}`),
		},
		{
			Name:        "get_products_by_category",
			Description: "Get all products in a specific category",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"category": {
						"type": "string",
						"description": "Product category to search for"
					}
				},
				"required": ["category"]
			}`),
		},
		{
			Name:        "get_products_in_stock",
			Description: "Get all products that are currently in stock",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
}

func (c *Capability) Operations() map[string]capability.Handler {
	return map[string]capability.Handler{
		"find_products":            c.findProducts,
		"get_product_by_id":        c.getProductByID,
		"get_products_by_category": c.getProductsByCategory,
		"get_products_in_stock":    c.getProductsInStock,
	}
}

func (c *Capability) findProducts(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "Please provide a search term for products.", nil
	}

	c.logger.Debug("searching products", "query", query)
	products, err := c.products.Search(ctx, query, searchLimit)
	if err != nil {
		return "", fmt.Errorf("searching products: %w", err)
	}
	if len(products) == 0 {
		return fmt.Sprintf("No products found matching '%s'. Try searching with different keywords.", query), nil
	}
	return formatProductList(products, "'"+query+"'"), nil
}

func (c *Capability) getProductByID(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		ProductID int64 `json:"product_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}

	product, err := c.products.Get(ctx, params.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("No product found with ID %d.", params.ProductID), nil
	}
	if err != nil {
		return "", fmt.Errorf("getting product: %w", err)
	}
	return formatProduct(product), nil
}

func (c *Capability) getProductsByCategory(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	category := strings.TrimSpace(params.Category)
	if category == "" {
		return "Please provide a valid category name.", nil
	}

	products, err := c.products.SearchByCategory(ctx, category, categoryLimit)
	if err != nil {
		return "", fmt.Errorf("searching by category: %w", err)
	}
	if len(products) == 0 {
		return fmt.Sprintf("No products found in category '%s'.", category), nil
	}
	return formatProductList(products, fmt.Sprintf("category '%s'", category)), nil
}

func (c *Capability) getProductsInStock(ctx context.Context, args json.RawMessage) (string, error) {
	products, err := c.products.ListInStock(ctx, categoryLimit)
	if err != nil {
		return "", fmt.Errorf("listing products: %w", err)
	}
	if len(products) == 0 {
		return "No products are currently in stock.", nil
	}
	return formatProductList(products, "in stock"), nil
}

func formatProductList(products []store.Product, searchTerm string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛍️ **Products found for %s (%d results)**\n\n", searchTerm, len(products))

	inStockCount := 0
	for _, p := range products {
		if p.InStock() {
			inStockCount++
		}

		fmt.Fprintf(&b, "**%s**\n", p.Name)
		fmt.Fprintf(&b, "🏷️ *Category*: %s", p.Category)
		if p.Brand != "" {
			fmt.Fprintf(&b, " | 🏢 *Brand*: %s", p.Brand)
		}
		fmt.Fprintf(&b, "\n💰 *Price*: $%.2f | %s", p.Price, stockStatus(p))
		if p.InStock() {
			fmt.Fprintf(&b, " (%d available)", p.Stock)
		}
		b.WriteString("\n")

		if p.Description != "" {
			fmt.Fprintf(&b, "📝 *Description*: %s\n", truncate(p.Description, 100))
		}
		fmt.Fprintf(&b, "🆔 *Product ID*: %d\n\n", p.ID)
	}

	fmt.Fprintf(&b, "📊 **Summary**: %d products found, %d in stock", len(products), inStockCount)
	return strings.TrimSpace(b.String())
}

func formatProduct(p store.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛍️ **%s**\n\n", p.Name)
	fmt.Fprintf(&b, "🏷️ **Category**: %s\n", p.Category)
	if p.Brand != "" {
		fmt.Fprintf(&b, "🏢 **Brand**: %s\n", p.Brand)
	}
	fmt.Fprintf(&b, "💰 **Price**: $%.2f\n", p.Price)
	fmt.Fprintf(&b, "📦 **Stock Status**: %s", stockStatus(p))
	if p.InStock() {
		fmt.Fprintf(&b, " (%d available)", p.Stock)
	}
	fmt.Fprintf(&b, "\n🆔 **Product ID**: %d\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(&b, "\n📝 **Description**:\n%s\n", p.Description)
	}
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "\n📅 **Added**: %s", p.CreatedAt.Format("2006-01-02"))
	}
	return strings.TrimSpace(b.String())
}

// truncate shortens s to at most max runes, appending an ellipsis.
// Cutting on runes keeps multi-byte text valid.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func stockStatus(p store.Product) string {
	if p.InStock() {
		return "✅ In Stock"
	}
	return "❌ Out of Stock"
}
