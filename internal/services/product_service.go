package services

import (
	"context"
	"io"
	"log"

	"apotek/internal/models"
	"apotek/internal/repositories"
	"apotek/pkg/blobstore"
)

// ProductInput carries the fields a pharmacy supplies when adding a product.
type ProductInput struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Category    string  `json:"category" validate:"required,max=100"`
	Price       float64 `json:"price" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
}

// ProductUpdate carries a partial product edit; nil fields are left as-is.
type ProductUpdate struct {
	Name        *string  `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Quantity    *int     `json:"quantity" validate:"omitempty,gte=0"`
}

// ProductService handles a pharmacy's inventory management. All operations
// are scoped to the owning pharmacy.
type ProductService struct {
	repo  repositories.ProductRepository
	blobs blobstore.Store
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, blobs blobstore.Store) *ProductService {
	return &ProductService{
		repo:  repo,
		blobs: blobs,
	}
}

// ListInventory retrieves a page of the pharmacy's products.
func (s *ProductService) ListInventory(pharmacyID string, params repositories.ListParams) ([]models.Product, repositories.Pagination, error) {
	return s.repo.ListByPharmacy(pharmacyID, params)
}

// GetProduct retrieves one of the pharmacy's products.
func (s *ProductService) GetProduct(id, pharmacyID string) (*models.Product, error) {
	return s.repo.GetOwned(id, pharmacyID)
}

// AddProduct creates a product for the pharmacy. The image upload is
// best-effort: a failed upload must not block the product record.
func (s *ProductService) AddProduct(ctx context.Context, pharmacyID string, input ProductInput, image io.Reader, imageName string) (*models.Product, error) {
	var imageURL string
	if image != nil {
		result, err := s.blobs.Upload(ctx, image, imageName)
		if err != nil {
			log.Printf("Image upload failed, proceeding without image: %v", err)
		} else {
			imageURL = result.URL
		}
	}

	product := &models.Product{
		PharmacyID:  pharmacyID,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Quantity:    input.Quantity,
		ImageURL:    imageURL,
	}
	if err := s.repo.Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct applies a partial edit to one of the pharmacy's products.
// A replacement image upload is best-effort; when it succeeds the old blob
// is deleted, also best-effort.
func (s *ProductService) UpdateProduct(ctx context.Context, pharmacyID, id string, update ProductUpdate, image io.Reader, imageName string) (*models.Product, error) {
	product, err := s.repo.GetOwned(id, pharmacyID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Category != nil {
		product.Category = *update.Category
	}
	if update.Price != nil {
		product.Price = *update.Price
	}
	if update.Quantity != nil {
		product.Quantity = *update.Quantity
	}

	if image != nil {
		result, err := s.blobs.Upload(ctx, image, imageName)
		if err != nil {
			log.Printf("Image upload failed, keeping old image: %v", err)
		} else {
			oldURL := product.ImageURL
			product.ImageURL = result.URL
			if oldURL != "" {
				s.deleteBlob(ctx, oldURL)
			}
		}
	}

	if err := s.repo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes one of the pharmacy's products and its image blob.
func (s *ProductService) DeleteProduct(ctx context.Context, pharmacyID, id string) error {
	product, err := s.repo.GetOwned(id, pharmacyID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id, pharmacyID); err != nil {
		return err
	}
	if product.ImageURL != "" {
		s.deleteBlob(ctx, product.ImageURL)
	}
	return nil
}

func (s *ProductService) deleteBlob(ctx context.Context, url string) {
	publicID := s.blobs.IDFromURL(url)
	if publicID == "" {
		return
	}
	if err := s.blobs.Delete(ctx, publicID); err != nil {
		log.Printf("Failed to delete blob %s: %v", publicID, err)
	}
}
