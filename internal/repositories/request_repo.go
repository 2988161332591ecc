package repositories

import (
	"apotek/internal/models"
)

// RequestRepository defines the interface for drug request data access.
// All status changes go through status-guarded operations so that
// concurrent confirm/reject races cannot silently overwrite each other.
type RequestRepository interface {
	GetByID(id string) (*models.DrugRequest, error)
	Create(request *models.DrugRequest) error
	// Update persists item amendments on a photo request.
	Update(request *models.DrugRequest) error
	// Transition moves the request from one status to another only if it is
	// currently in the expected status; otherwise it fails with
	// InvalidStateError.
	Transition(id, from, to string) (*models.DrugRequest, error)
	// Reject moves the request to rejected and records the reason. Allowed
	// from pending and from rejected (re-rejecting overwrites the reason).
	Reject(id, reason string) (*models.DrugRequest, error)

	ListPending(params ListParams) ([]models.DrugRequest, Pagination, error)
	ListByClinic(clinicID string, params ListParams) ([]models.DrugRequest, Pagination, error)
	// ListClinicHistory returns the clinic's non-pending requests, newest
	// updated first.
	ListClinicHistory(clinicID string, params ListParams) ([]models.DrugRequest, Pagination, error)
}
