// ABOUTME: SQLite implementation of the ProductStore using modernc.org/sqlite
// ABOUTME: Provides catalog persistence with automatic schema creation and seeding

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements ProductStore using a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a product store at the given path. The schema
// is created automatically; parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite product store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			brand TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			stock INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
		CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 20
	}

	var (
		rows *sql.Rows
		err  error
	)
	if query == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, name, description, category, brand, price, stock, created_at
			FROM products ORDER BY name ASC LIMIT ?`, limit)
	} else {
		pattern := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, name, description, category, brand, price, stock, created_at
			FROM products
			WHERE name LIKE ? COLLATE NOCASE
			   OR description LIKE ? COLLATE NOCASE
			   OR category LIKE ? COLLATE NOCASE
			   OR brand LIKE ? COLLATE NOCASE
			ORDER BY name ASC LIMIT ?`, pattern, pattern, pattern, pattern, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	return collectProducts(rows)
}

func (s *SQLiteStore) SearchByCategory(ctx context.Context, category string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, brand, price, stock, created_at
		FROM products
		WHERE category LIKE ? COLLATE NOCASE
		ORDER BY name ASC LIMIT ?`, "%"+category+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("searching by category: %w", err)
	}
	return collectProducts(rows)
}

func (s *SQLiteStore) ListInStock(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, brand, price, stock, created_at
		FROM products
		WHERE stock > 0
		ORDER BY name ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing in-stock products: %w", err)
	}
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]Product, error) {
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Brand, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, brand, price, stock, created_at
		FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Brand, &p.Price, &p.Stock, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, p Product) (Product, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO products (name, description, category, brand, price, stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Category, p.Brand, p.Price, p.Stock, p.CreatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("inserting product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Product{}, fmt.Errorf("reading insert id: %w", err)
	}
	p.ID = id
	return p, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SeedFromFile loads products from a JSON file (an array of Product
// objects) into an empty catalog. A non-empty catalog is left alone so
// repeated bootstraps stay idempotent.
func (s *SQLiteStore) SeedFromFile(ctx context.Context, path string) (int, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("catalog already seeded", "products", count)
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}

	for _, p := range products {
		if _, err := s.Insert(ctx, p); err != nil {
			return 0, err
		}
	}
	s.logger.Info("catalog seeded", "products", len(products), "path", path)
	return len(products), nil
}
