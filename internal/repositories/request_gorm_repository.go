package repositories

import (
	"fmt"
	"time"

	"apotek/internal/apperrors"
	"apotek/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMRequestRepository is a GORM implementation of RequestRepository.
type GORMRequestRepository struct {
	db *gorm.DB
}

// NewGORMRequestRepository creates a new instance of GORMRequestRepository.
func NewGORMRequestRepository(db *gorm.DB) *GORMRequestRepository {
	return &GORMRequestRepository{
		db: db,
	}
}

// GetByID retrieves a single request by its ID from the database.
func (r *GORMRequestRepository) GetByID(id string) (*models.DrugRequest, error) {
	var request models.DrugRequest
	if err := r.db.First(&request, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &apperrors.NotFoundError{Resource: "request", ID: id}
		}
		return nil, fmt.Errorf("failed to get request by ID %s: %w", id, err)
	}
	return &request, nil
}

// Create creates a new request in the database.
func (r *GORMRequestRepository) Create(request *models.DrugRequest) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now
	if err := r.db.Create(request).Error; err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an existing request.
func (r *GORMRequestRepository) Update(request *models.DrugRequest) error {
	request.UpdatedAt = time.Now()
	res := r.db.Save(request)
	if res.Error != nil {
		return fmt.Errorf("failed to update request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &apperrors.NotFoundError{Resource: "request", ID: request.ID}
	}
	return nil
}

// Transition performs a status-guarded update: the request moves to the new
// status only if it is currently in the expected one.
func (r *GORMRequestRepository) Transition(id, from, to string) (*models.DrugRequest, error) {
	res := r.db.Model(&models.DrugRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to transition request %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		request, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.NewInvalidState(
			"request %s is %s, expected %s", id, request.Status, from)
	}
	return r.GetByID(id)
}

// Reject marks the request rejected with the given reason. Re-rejecting is
// allowed and overwrites the reason; any other current status fails.
func (r *GORMRequestRepository) Reject(id, reason string) (*models.DrugRequest, error) {
	res := r.db.Model(&models.DrugRequest{}).
		Where("id = ? AND status IN ?", id, []string{models.RequestStatusPending, models.RequestStatusRejected}).
		Updates(map[string]interface{}{
			"status":           models.RequestStatusRejected,
			"rejection_reason": reason,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to reject request %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		request, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.NewInvalidState(
			"request %s is %s and can no longer be rejected", id, request.Status)
	}
	return r.GetByID(id)
}

// ListPending retrieves a page of pending requests for the pharmacy review
// queue, searched by clinic name, address, or patient info and filtered by
// request type.
func (r *GORMRequestRepository) ListPending(params ListParams) ([]models.DrugRequest, Pagination, error) {
	params = params.Normalize()

	query := r.db.Model(&models.DrugRequest{}).Where("status = ?", models.RequestStatusPending)
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("clinic_name LIKE ? OR delivery_address LIKE ? OR patient_info LIKE ?", like, like, like)
	}
	if params.Filter == models.RequestTypePhoto || params.Filter == models.RequestTypeInventory {
		query = query.Where("type = ?", params.Filter)
	}
	return r.page(query, params, "created_at DESC")
}

// ListByClinic retrieves a page of the clinic's own requests, filtered by
// status.
func (r *GORMRequestRepository) ListByClinic(clinicID string, params ListParams) ([]models.DrugRequest, Pagination, error) {
	params = params.Normalize()

	query := r.db.Model(&models.DrugRequest{}).Where("clinic_id = ?", clinicID)
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("delivery_address LIKE ? OR patient_info LIKE ?", like, like)
	}
	if params.Filter != "" {
		query = query.Where("status = ?", params.Filter)
	}
	return r.page(query, params, "created_at DESC")
}

// ListClinicHistory retrieves the clinic's processed requests (everything
// except pending), newest updated first. The filter matches either a
// request type or a status.
func (r *GORMRequestRepository) ListClinicHistory(clinicID string, params ListParams) ([]models.DrugRequest, Pagination, error) {
	params = params.Normalize()

	query := r.db.Model(&models.DrugRequest{}).
		Where("clinic_id = ? AND status <> ?", clinicID, models.RequestStatusPending)
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("delivery_address LIKE ? OR patient_info LIKE ? OR rejection_reason LIKE ?", like, like, like)
	}
	if params.Filter == models.RequestTypePhoto || params.Filter == models.RequestTypeInventory {
		query = query.Where("type = ?", params.Filter)
	} else if params.Filter != "" {
		query = query.Where("status = ?", params.Filter)
	}
	return r.page(query, params, "updated_at DESC")
}

func (r *GORMRequestRepository) page(query *gorm.DB, params ListParams, order string) ([]models.DrugRequest, Pagination, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count requests: %w", err)
	}
	var requests []models.DrugRequest
	if err := query.Order(order).Offset(params.Offset()).Limit(params.Limit).Find(&requests).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, NewPagination(params, total), nil
}
