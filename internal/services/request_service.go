package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"apotek/internal/apperrors"
	"apotek/internal/models"
	"apotek/internal/repositories"
	"apotek/pkg/blobstore"
)

// PhotoFile is one uploaded photo in a photo-request submission.
type PhotoFile struct {
	Name   string
	Reader io.Reader
}

// RequestWithOrder pairs a processed request with its derived order, when
// one exists.
type RequestWithOrder struct {
	models.DrugRequest
	Order *models.Order `json:"order,omitempty"`
}

// RequestService handles the creation and review of drug requests.
type RequestService struct {
	requests repositories.RequestRepository
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	blobs    blobstore.Store
}

// NewRequestService creates a new RequestService.
func NewRequestService(requests repositories.RequestRepository, orders repositories.OrderRepository, products repositories.ProductRepository, blobs blobstore.Store) *RequestService {
	return &RequestService{
		requests: requests,
		orders:   orders,
		products: products,
		blobs:    blobs,
	}
}

// SubmitPhotoRequest creates a photo-type request for the clinic. Each
// upload is best-effort, but if not a single photo lands the submission
// fails: a photo request without photos is useless to the pharmacy.
func (s *RequestService) SubmitPhotoRequest(ctx context.Context, clinic Principal, files []PhotoFile, deliveryAddress, patientInfo string) (*models.DrugRequest, error) {
	if deliveryAddress == "" {
		return nil, apperrors.NewValidation("delivery address is required")
	}
	if len(files) == 0 {
		return nil, apperrors.NewValidation("at least one photo file is required")
	}

	var photoURLs []string
	var lastErr error
	for _, file := range files {
		result, err := s.blobs.Upload(ctx, file.Reader, file.Name)
		if err != nil {
			log.Printf("Photo upload failed for %s: %v", file.Name, err)
			lastErr = err
			continue
		}
		photoURLs = append(photoURLs, result.URL)
	}
	if len(photoURLs) == 0 {
		return nil, &apperrors.UpstreamError{Op: "photo upload", Err: lastErr}
	}

	request := &models.DrugRequest{
		ClinicID:        clinic.ID,
		ClinicName:      clinic.Name,
		Type:            models.RequestTypePhoto,
		PhotoURLs:       photoURLs,
		DeliveryAddress: deliveryAddress,
		PatientInfo:     patientInfo,
		Status:          models.RequestStatusPending,
	}
	if err := s.requests.Create(request); err != nil {
		return nil, err
	}
	return request, nil
}

// SubmitInventoryRequest creates an inventory-type request for the clinic.
// Every referenced product must exist; a single bad reference aborts the
// whole creation and no partial request is stored.
func (s *RequestService) SubmitInventoryRequest(clinic Principal, items []models.RequestItem, deliveryAddress, patientInfo string) (*models.DrugRequest, error) {
	if deliveryAddress == "" {
		return nil, apperrors.NewValidation("delivery address is required")
	}
	enriched, err := s.enrichItems(items)
	if err != nil {
		return nil, err
	}

	request := &models.DrugRequest{
		ClinicID:         clinic.ID,
		ClinicName:       clinic.Name,
		Type:             models.RequestTypeInventory,
		SelectedProducts: enriched,
		DeliveryAddress:  deliveryAddress,
		PatientInfo:      patientInfo,
		Status:           models.RequestStatusPending,
	}
	if err := s.requests.Create(request); err != nil {
		return nil, err
	}
	return request, nil
}

// AmendPhotoItems replaces the product lines on a photo request. Any
// pharmacy account may amend any photo request; the request type never
// changes.
func (s *RequestService) AmendPhotoItems(requestID string, items []models.RequestItem, actor Principal) (*models.DrugRequest, error) {
	request, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if request.Type != models.RequestTypePhoto {
		return nil, apperrors.NewInvalidState("only photo requests can have items added")
	}
	if actor.Role != models.RolePharmacy {
		return nil, &apperrors.AuthorizationError{Message: "only a pharmacy may add items to a request"}
	}
	enriched, err := s.enrichItems(items)
	if err != nil {
		return nil, err
	}

	request.SelectedProducts = enriched
	if err := s.requests.Update(request); err != nil {
		return nil, err
	}
	return request, nil
}

// RejectRequest marks the request rejected with the given reason.
// Re-rejecting overwrites the reason; a rejected request can never be
// confirmed afterwards.
func (s *RequestService) RejectRequest(requestID, reason string) (*models.DrugRequest, error) {
	return s.requests.Reject(requestID, reason)
}

// GetPendingRequests retrieves the pharmacy review queue.
func (s *RequestService) GetPendingRequests(params repositories.ListParams) ([]models.DrugRequest, repositories.Pagination, error) {
	return s.requests.ListPending(params)
}

// GetClinicRequests retrieves the clinic's own requests.
func (s *RequestService) GetClinicRequests(clinicID string, params repositories.ListParams) ([]models.DrugRequest, repositories.Pagination, error) {
	return s.requests.ListByClinic(clinicID, params)
}

// GetClinicHistory retrieves the clinic's processed requests, each paired
// with its derived order where one exists.
func (s *RequestService) GetClinicHistory(clinicID string, params repositories.ListParams) ([]RequestWithOrder, repositories.Pagination, error) {
	requests, pagination, err := s.requests.ListClinicHistory(clinicID, params)
	if err != nil {
		return nil, repositories.Pagination{}, err
	}

	history := make([]RequestWithOrder, 0, len(requests))
	for _, request := range requests {
		entry := RequestWithOrder{DrugRequest: request}
		if request.Status != models.RequestStatusRejected {
			order, err := s.orders.GetByRequestID(request.ID)
			if err == nil {
				entry.Order = order
			} else if !apperrors.IsNotFound(err) {
				return nil, repositories.Pagination{}, err
			}
		}
		history = append(history, entry)
	}
	return history, pagination, nil
}

// DownloadPhoto streams one photo of a photo request. Only a pharmacy or
// the owning clinic may download.
func (s *RequestService) DownloadPhoto(ctx context.Context, requestID string, index int, actor Principal) ([]byte, string, error) {
	request, err := s.photoRequestFor(requestID, actor)
	if err != nil {
		return nil, "", err
	}
	if index < 0 || index >= len(request.PhotoURLs) {
		return nil, "", &apperrors.NotFoundError{Resource: "photo", ID: fmt.Sprintf("%s/%d", requestID, index)}
	}

	data, err := s.blobs.Fetch(ctx, request.PhotoURLs[index])
	if err != nil {
		return nil, "", &apperrors.UpstreamError{Op: "photo fetch", Err: err}
	}
	filename := fmt.Sprintf("drug-photo-%s-%d.jpg", request.ID, index+1)
	return data, filename, nil
}

// DownloadAllPhotos bundles every photo of a photo request into a ZIP
// archive. A photo that fails to fetch is skipped rather than failing the
// whole archive.
func (s *RequestService) DownloadAllPhotos(ctx context.Context, requestID string, actor Principal) ([]byte, string, error) {
	request, err := s.photoRequestFor(requestID, actor)
	if err != nil {
		return nil, "", err
	}
	if len(request.PhotoURLs) == 0 {
		return nil, "", &apperrors.NotFoundError{Resource: "photos for request", ID: requestID}
	}

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	for i, url := range request.PhotoURLs {
		data, err := s.blobs.Fetch(ctx, url)
		if err != nil {
			log.Printf("Skipping photo %d of request %s: %v", i+1, requestID, err)
			continue
		}
		entry, err := archive.Create(fmt.Sprintf("photo-%d.jpg", i+1))
		if err != nil {
			return nil, "", fmt.Errorf("failed to add archive entry: %w", err)
		}
		if _, err := entry.Write(data); err != nil {
			return nil, "", fmt.Errorf("failed to write archive entry: %w", err)
		}
	}
	if err := archive.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	filename := fmt.Sprintf("drug-photos-%s.zip", request.ID)
	return buf.Bytes(), filename, nil
}

func (s *RequestService) photoRequestFor(requestID string, actor Principal) (*models.DrugRequest, error) {
	request, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if request.Type != models.RequestTypePhoto {
		return nil, &apperrors.NotFoundError{Resource: "photos for request", ID: requestID}
	}
	if actor.Role != models.RolePharmacy && request.ClinicID != actor.ID {
		return nil, &apperrors.AuthorizationError{Message: "not authorized to download these photos"}
	}
	return request, nil
}

// enrichItems validates every line and snapshots the current product name
// onto it. Quantity must be at least 1 and every product must exist.
func (s *RequestService) enrichItems(items []models.RequestItem) ([]models.RequestItem, error) {
	if len(items) == 0 {
		return nil, apperrors.NewValidation("selectedProducts must be a non-empty array")
	}

	enriched := make([]models.RequestItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, apperrors.NewValidation("quantity for product %s must be at least 1", item.ProductID)
		}
		product, err := s.products.GetByID(item.ProductID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.NewValidation("product %s not found", item.ProductID)
			}
			return nil, err
		}
		enriched = append(enriched, models.RequestItem{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			ProductName: product.Name,
		})
	}
	return enriched, nil
}
