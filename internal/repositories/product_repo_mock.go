package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"

	"apotek/internal/apperrors"
	"apotek/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
	}
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "product", ID: id}
	}
	return &product, nil
}

// GetOwned returns a product only if it belongs to the given pharmacy.
func (r *MockProductRepository) GetOwned(id, pharmacyID string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok || product.PharmacyID != pharmacyID {
		return nil, &apperrors.NotFoundError{Resource: "product", ID: id}
	}
	return &product, nil
}

// ListByPharmacy returns a page of the pharmacy's products.
func (r *MockProductRepository) ListByPharmacy(pharmacyID string, params ListParams) ([]models.Product, Pagination, error) {
	params = params.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.Product
	for _, p := range r.products {
		if p.PharmacyID != pharmacyID {
			continue
		}
		if params.Search != "" && !containsFold(p.Name, params.Search) && !containsFold(p.Description, params.Search) {
			continue
		}
		if params.Filter != "" && !containsFold(p.Category, params.Filter) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return pageOf(matched, params), NewPagination(params, int64(len(matched))), nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.products[product.ID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "product", ID: product.ID}
	}
	r.products[product.ID] = *product
	return nil
}

// Delete removes a product by its ID, scoped to the owning pharmacy.
func (r *MockProductRepository) Delete(id, pharmacyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok || product.PharmacyID != pharmacyID {
		return &apperrors.NotFoundError{Resource: "product", ID: id}
	}
	delete(r.products, id)
	return nil
}

// ReserveStock performs the check-and-decrement as one unit under the lock.
func (r *MockProductRepository) ReserveStock(ctx context.Context, productID string, quantity int) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "product", ID: productID}
	}
	if product.Quantity < quantity {
		return nil, &apperrors.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.Quantity,
		}
	}
	product.Quantity -= quantity
	r.products[productID] = product
	return &product, nil
}

// ReleaseStock re-increments stock for a reverted reservation.
func (r *MockProductRepository) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "product", ID: productID}
	}
	product.Quantity += quantity
	r.products[productID] = product
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func pageOf(products []models.Product, params ListParams) []models.Product {
	start := params.Offset()
	if start >= len(products) {
		return []models.Product{}
	}
	end := start + params.Limit
	if end > len(products) {
		end = len(products)
	}
	return products[start:end]
}
