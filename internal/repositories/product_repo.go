package repositories

import (
	"context"

	"apotek/internal/models"
)

// ProductRepository defines the interface for product data access,
// including the inventory ledger operations used by the confirm protocol.
type ProductRepository interface {
	GetByID(id string) (*models.Product, error)
	// GetOwned returns the product only if it belongs to the given pharmacy.
	GetOwned(id, pharmacyID string) (*models.Product, error)
	ListByPharmacy(pharmacyID string, params ListParams) ([]models.Product, Pagination, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id, pharmacyID string) error

	// ReserveStock atomically decrements stock by quantity if sufficient and
	// returns the product's name and price as of that instant. The decrement
	// and the sufficiency check are a single read-check-write unit, so stock
	// never goes negative under concurrent reservations.
	ReserveStock(ctx context.Context, productID string, quantity int) (*models.Product, error)
	// ReleaseStock re-increments stock, compensating a reservation that
	// belongs to an aborted confirmation.
	ReleaseStock(ctx context.Context, productID string, quantity int) error
}
