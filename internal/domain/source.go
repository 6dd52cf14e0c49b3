package domain

import (
	"context"
)

// CatalogSource is the source of record for the catalog: the relational
// database. The cache layer treats it as an external collaborator; a failure
// here is a genuine error because there is no further fallback.
type CatalogSource interface {
	// ListProducts fetches one page of products filtered by category and
	// featured flag, ordered by the query's sort key and direction.
	ListProducts(ctx context.Context, q ListQuery) ([]Product, error)

	// GetProduct fetches a single product by slug with images and variants.
	GetProduct(ctx context.Context, slug string) (*Product, error)

	// ListCategories fetches every active category, optionally with images.
	ListCategories(ctx context.Context, withImages bool) ([]Category, error)

	// CategoryOptions fetches the slim category list for filter dropdowns.
	CategoryOptions(ctx context.Context) ([]CategoryOption, error)

	// ListRatings fetches every rating row, ungrouped.
	ListRatings(ctx context.Context) ([]Rating, error)

	// RatingSummaries fetches rating aggregates grouped by product.
	RatingSummaries(ctx context.Context) ([]RatingSummary, error)

	// RatingSummary fetches the rating aggregate for one product.
	RatingSummary(ctx context.Context, productID string) (*RatingSummary, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
