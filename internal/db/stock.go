package db

import (
	"context"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
)

// StockRepository stores inventory products.
type StockRepository struct {
	*Repository[models.StockProduct, *models.StockProduct]
}

// NewStockRepository creates the product repository.
func NewStockRepository(s *Store) *StockRepository {
	return &StockRepository{NewRepository[models.StockProduct](s)}
}

// AdjustStock adds delta to a product's quantity, flooring at zero.
func (r *StockRepository) AdjustStock(ctx context.Context, productID string, delta float64) (*models.StockProduct, error) {
	return r.Update(ctx, productID, func(p *models.StockProduct) {
		p.Quantity += delta
		if p.Quantity < 0 {
			p.Quantity = 0
		}
	})
}

// ListLow returns live products at or below their restock threshold.
func (r *StockRepository) ListLow(ctx context.Context) ([]*models.StockProduct, error) {
	return r.Find(ctx, "json_extract(data, '$.minQuantity') > 0 AND "+
		"COALESCE(json_extract(data, '$.quantity'), 0) <= json_extract(data, '$.minQuantity')")
}

// StockRoutineRepository stores consumption routines.
type StockRoutineRepository struct {
	*Repository[models.StockRoutine, *models.StockRoutine]
}

// NewStockRoutineRepository creates the routine repository.
func NewStockRoutineRepository(s *Store) *StockRoutineRepository {
	return &StockRoutineRepository{NewRepository[models.StockRoutine](s)}
}

// ListByProduct returns the live routines consuming a product.
func (r *StockRoutineRepository) ListByProduct(ctx context.Context, productID string) ([]*models.StockRoutine, error) {
	return r.Find(ctx, "json_extract(data, '$.productId') = ?", productID)
}
