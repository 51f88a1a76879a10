package repositories

import (
	"context"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
)

// CatalogReader reads listings owned by the catalog service.
type CatalogReader interface {
	// FindProductByID retrieves a product listing.
	FindProductByID(ctx context.Context, productID string) (*domain.Product, error)

	// CountActiveListings counts a user's active listings.
	CountActiveListings(ctx context.Context, userID string) (int, error)
}
