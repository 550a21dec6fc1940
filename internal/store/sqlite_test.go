// ABOUTME: Tests for the SQLite product store
// ABOUTME: Covers search matching, lookups, seeding, and idempotent bootstrap

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "products.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedProducts(t *testing.T, store *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	products := []Product{
		{Name: "Trail Runner Pro", Description: "Lightweight running shoe", Category: "Footwear", Brand: "Stride", Price: 129.90, Stock: 12},
		{Name: "Alpine Jacket", Description: "Waterproof shell for hiking", Category: "Outerwear", Brand: "NorthPeak", Price: 249.00, Stock: 5},
		{Name: "Summit Backpack", Description: "35L hiking backpack", Category: "Bags", Brand: "NorthPeak", Price: 89.50, Stock: 20},
	}
	for _, p := range products {
		if _, err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert %q: %v", p.Name, err)
		}
	}
}

func TestSearch_MatchesNameDescriptionCategory(t *testing.T) {
	store := newTestStore(t)
	seedProducts(t, store)
	ctx := context.Background()

	tests := []struct {
		query string
		want  []string
	}{
		{"runner", []string{"Trail Runner Pro"}},
		{"hiking", []string{"Alpine Jacket", "Summit Backpack"}},
		{"footwear", []string{"Trail Runner Pro"}},
		{"JACKET", []string{"Alpine Jacket"}},
		{"northpeak", []string{"Alpine Jacket", "Summit Backpack"}},
		{"nonexistent", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := store.Search(ctx, tt.query, 10)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d products, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("result %d = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestSearch_EmptyQueryReturnsCatalog(t *testing.T) {
	store := newTestStore(t)
	seedProducts(t, store)

	got, err := store.Search(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("limit not applied: got %d products", len(got))
	}
}

func TestSearchByCategory_MatchesCategoryColumnOnly(t *testing.T) {
	store := newTestStore(t)
	seedProducts(t, store)
	ctx := context.Background()

	// Mentions "outerwear" only in its description.
	if _, err := store.Insert(ctx, Product{
		Name: "Care Kit", Description: "Spray for outerwear", Category: "Accessories", Stock: 3,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.SearchByCategory(ctx, "OUTERWEAR", 10)
	if err != nil {
		t.Fatalf("SearchByCategory: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Alpine Jacket" {
		t.Errorf("unexpected results %+v", got)
	}
}

func TestListInStock_FiltersInSQL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Out-of-stock rows that fill an alphabetical page ahead of the
	// stocked items.
	for i := 0; i < 22; i++ {
		if _, err := store.Insert(ctx, Product{Name: fmt.Sprintf("A-Item-%02d", i), Stock: 0}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := store.Insert(ctx, Product{Name: fmt.Sprintf("Z-Item-%d", i), Stock: 2}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := store.ListInStock(ctx, 15)
	if err != nil {
		t.Fatalf("ListInStock: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d products, want 3: %+v", len(got), got)
	}
	for i, p := range got {
		if want := fmt.Sprintf("Z-Item-%d", i); p.Name != want {
			t.Errorf("result %d = %q, want %q", i, p.Name, want)
		}
	}
}

func TestGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, Product{Name: "Trail Runner Pro", Price: 129.90})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := store.Get(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Trail Runner Pro" || got.Price != 129.90 {
		t.Errorf("unexpected product %+v", got)
	}

	_, err = store.Get(ctx, 99999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSeedFromFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedPath := filepath.Join(t.TempDir(), "seed.json")
	seed := `[
		{"name": "Trail Runner Pro", "description": "Running shoe", "category": "Footwear", "price": 129.90, "stock": 12},
		{"name": "Alpine Jacket", "description": "Waterproof shell", "category": "Outerwear", "price": 249.00, "stock": 5}
	]`
	if err := os.WriteFile(seedPath, []byte(seed), 0644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}

	n, err := store.SeedFromFile(ctx, seedPath)
	if err != nil {
		t.Fatalf("SeedFromFile: %v", err)
	}
	if n != 2 {
		t.Errorf("seeded %d products, want 2", n)
	}

	// A second bootstrap leaves the catalog alone.
	n, err = store.SeedFromFile(ctx, seedPath)
	if err != nil {
		t.Fatalf("SeedFromFile (second): %v", err)
	}
	if n != 0 {
		t.Errorf("second seed inserted %d products, want 0", n)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestSeedFromFile_InvalidJSON(t *testing.T) {
	store := newTestStore(t)
	seedPath := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(seedPath, []byte("not json"), 0644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	if _, err := store.SeedFromFile(context.Background(), seedPath); err == nil {
		t.Error("expected error for invalid seed file")
	}
}
