package repositories

import (
	"context"
	"fmt"

	"apotek/internal/apperrors"
	"apotek/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &apperrors.NotFoundError{Resource: "product", ID: id}
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// GetOwned retrieves a product only if it belongs to the given pharmacy.
func (r *GORMProductRepository) GetOwned(id, pharmacyID string) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, "id = ? AND pharmacy_id = ?", id, pharmacyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &apperrors.NotFoundError{Resource: "product", ID: id}
		}
		return nil, fmt.Errorf("failed to get product %s for pharmacy %s: %w", id, pharmacyID, err)
	}
	return &product, nil
}

// ListByPharmacy retrieves a page of the pharmacy's products, optionally
// searched by name/description and filtered by category.
func (r *GORMProductRepository) ListByPharmacy(pharmacyID string, params ListParams) ([]models.Product, Pagination, error) {
	params = params.Normalize()

	query := r.db.Model(&models.Product{}).Where("pharmacy_id = ?", pharmacyID)
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}
	if params.Filter != "" {
		query = query.Where("category LIKE ?", "%"+params.Filter+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	if err := query.Order("created_at DESC").Offset(params.Offset()).Limit(params.Limit).Find(&products).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list products: %w", err)
	}
	return products, NewPagination(params, total), nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update updates an existing product in the database.
func (r *GORMProductRepository) Update(product *models.Product) error {
	res := r.db.Save(product) // Save will update all fields, including zero values
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// GORM's Save doesn't return ErrRecordNotFound if no rows affected
		// for an update, so we check RowsAffected.
		return &apperrors.NotFoundError{Resource: "product", ID: product.ID}
	}
	return nil
}

// Delete deletes a product by its ID, scoped to the owning pharmacy.
func (r *GORMProductRepository) Delete(id, pharmacyID string) error {
	res := r.db.Delete(&models.Product{}, "id = ? AND pharmacy_id = ?", id, pharmacyID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &apperrors.NotFoundError{Resource: "product", ID: id}
	}
	return nil
}

// ReserveStock decrements stock by quantity through a conditional update
// guarded by a minimum-quantity predicate, so concurrent confirmations can
// never oversell. Returns the product snapshot taken after the decrement.
func (r *GORMProductRepository) ReserveStock(ctx context.Context, productID string, quantity int) (*models.Product, error) {
	db := r.db.WithContext(ctx)

	res := db.Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", productID, quantity).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to reserve stock for product %s: %w", productID, res.Error)
	}

	if res.RowsAffected == 0 {
		// Either the product is missing or the stock is short; load to tell.
		var product models.Product
		if err := db.First(&product, "id = ?", productID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, &apperrors.NotFoundError{Resource: "product", ID: productID}
			}
			return nil, fmt.Errorf("failed to inspect product %s after reservation: %w", productID, err)
		}
		return nil, &apperrors.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.Quantity,
		}
	}

	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		return nil, fmt.Errorf("failed to load product %s after reservation: %w", productID, err)
	}
	return &product, nil
}

// ReleaseStock re-increments stock after an aborted confirmation.
func (r *GORMProductRepository) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to release stock for product %s: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &apperrors.NotFoundError{Resource: "product", ID: productID}
	}
	return nil
}
