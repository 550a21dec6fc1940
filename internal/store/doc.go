// ABOUTME: Package documentation for the product catalog store
// ABOUTME: Describes the ProductStore contract and the SQLite backend

// Package store provides persistence for the product catalog consulted
// by the product capability.
//
// The ProductStore interface exposes case-insensitive search over name,
// description, category, and brand, plus id lookup, insertion, and counting.
// SQLiteStore is the only backend; it creates its schema on first open
// and can seed an empty catalog from a JSON file during bootstrap.
package store
