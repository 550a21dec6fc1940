// ABOUTME: Product catalog model and the ProductStore contract
// ABOUTME: Backs the product capability's database lookups

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no product.
var ErrNotFound = errors.New("store: product not found")

// Product is one catalog entry.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

// InStock reports whether the product can currently be purchased.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// ProductStore provides catalog persistence and search.
type ProductStore interface {
	// Search returns products whose name, description, category, or
	// brand matches the query, case-insensitively. An empty query
	// returns the full catalog up to limit.
	Search(ctx context.Context, query string, limit int) ([]Product, error)

	// SearchByCategory returns products whose category matches the
	// given term, case-insensitively.
	SearchByCategory(ctx context.Context, category string, limit int) ([]Product, error)

	// ListInStock returns products with stock remaining.
	ListInStock(ctx context.Context, limit int) ([]Product, error)

	// Get returns the product with the given id, or ErrNotFound.
	Get(ctx context.Context, id int64) (Product, error)

	// Insert adds a product and returns it with its assigned id.
	Insert(ctx context.Context, p Product) (Product, error)

	// Count returns the number of products in the catalog.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
