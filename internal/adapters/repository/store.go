// Package repository holds the brand document store consulted by the
// ranking orchestrator.
package repository

import (
	"context"
	"strings"

	"github.com/okian/brandmatch/internal/domain/model"
)

// BrandStore provides read/write access to brand documents.
type BrandStore interface {
	// Get returns the brand named name. Returns ErrNotFound if it is unknown.
	Get(ctx context.Context, name string) (model.Brand, error)

	// Upsert creates or replaces a brand. UpdatedAt is set by the store.
	Upsert(ctx context.Context, brand model.Brand) (model.Brand, error)

	// List returns all brands ordered by name.
	List(ctx context.Context) ([]model.Brand, error)

	// Count returns the number of stored brands.
	Count(ctx context.Context) (int, error)

	Close() error
}

// nameKey is the lookup key for a brand name: names match case-insensitively.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validate(b model.Brand) error {
	if nameKey(b.Name) == "" {
		return ErrInvalidBrand
	}
	return nil
}
