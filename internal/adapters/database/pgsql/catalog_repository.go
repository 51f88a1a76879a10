package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	"github.com/SscSPs/takas_swap_engine/internal/models"
)

// PgxCatalogRepository reads the local products table, a read model fed by the catalog service.
type PgxCatalogRepository struct {
	pool *pgxpool.Pool
}

func newPgxCatalogRepository(pool *pgxpool.Pool) *PgxCatalogRepository {
	return &PgxCatalogRepository{pool: pool}
}

var _ portsrepo.CatalogReader = (*PgxCatalogRepository)(nil)

// FindProductByID retrieves a product listing.
func (r *PgxCatalogRepository) FindProductByID(ctx context.Context, productID string) (*domain.Product, error) {
	query := `SELECT product_id, owner_id, title, category, valor_price, status, created_at FROM products WHERE product_id = $1`
	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", productID, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", apperrors.ErrNotFound, productID)
		}
		return nil, fmt.Errorf("failed to scan product %s: %w", productID, err)
	}
	return &domain.Product{
		ProductID:  m.ProductID,
		OwnerID:    m.OwnerID,
		Title:      m.Title,
		Category:   m.Category,
		ValorPrice: m.ValorPrice,
		Status:     domain.ProductStatus(m.Status),
	}, nil
}

// CountActiveListings counts a user's active listings.
func (r *PgxCatalogRepository) CountActiveListings(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE owner_id = $1 AND status = 'active'`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings of %s: %w", userID, err)
	}
	return n, nil
}
