package cache

import (
	"context"

	"github.com/hqtrung/foodapp-odoo-bridge/catalog"
)

// Store persists and serves the denormalized catalog snapshot. Writes replace
// whole collections; readers observe either the old or the new collection,
// never a mix. Cross-collection consistency during a concurrent reload is not
// guaranteed.
type Store interface {
	Write(ctx context.Context, snapshot *catalog.Snapshot) (catalog.Metadata, error)
	ReadCategories(ctx context.Context) ([]catalog.Category, error)
	ReadProducts(ctx context.Context) ([]catalog.Product, error)
	ReadProductsByCategory(ctx context.Context, categoryID int) ([]catalog.Product, error)
	ReadAttributes(ctx context.Context) ([]catalog.Attribute, error)
	ReadAttributeValues(ctx context.Context) ([]catalog.AttributeValue, error)
	ReadProductAttributes(ctx context.Context) (map[string]catalog.ProductAttributes, error)
	ReadMetadata(ctx context.Context) (catalog.Metadata, error)
	IsEmpty(ctx context.Context) bool
}

// HealthChecker is implemented by stores that can probe their backend without
// touching cache state.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
