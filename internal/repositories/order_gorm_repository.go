package repositories

import (
	"fmt"
	"time"

	"apotek/internal/apperrors"
	"apotek/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery statuses an order can be advanced from. pending requires an
// accept first and delivered is terminal.
var advanceableStatuses = []string{
	models.OrderStatusAssigned,
	models.OrderStatusPickedUp,
	models.OrderStatusInTransit,
}

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// GetByID retrieves a single order by its ID from the database.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &apperrors.NotFoundError{Resource: "order", ID: id}
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// GetByRequestID retrieves the order derived from the given request.
func (r *GORMOrderRepository) GetByRequestID(requestID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "request_id = ?", requestID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &apperrors.NotFoundError{Resource: "order for request", ID: requestID}
		}
		return nil, fmt.Errorf("failed to get order for request %s: %w", requestID, err)
	}
	return &order, nil
}

// Create creates a new order in the database.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	if err := r.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// Accept assigns the rider to a pending order and mirrors the assigned
// status onto the linked request, all inside one transaction. The update is
// guarded on status = pending so only the first rider wins the race.
func (r *GORMOrderRepository) Accept(orderID, riderID string) (*models.Order, error) {
	var accepted models.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &apperrors.NotFoundError{Resource: "order", ID: orderID}
			}
			return fmt.Errorf("failed to load order %s: %w", orderID, err)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
			Updates(map[string]interface{}{
				"rider_id":   riderID,
				"status":     models.OrderStatusAssigned,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to accept order %s: %w", orderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NewInvalidState(
				"order %s is %s and can no longer be accepted", orderID, order.Status)
		}

		if err := r.mirrorRequestStatus(tx, order.RequestID, models.RequestStatusAssigned); err != nil {
			return err
		}
		return tx.First(&accepted, "id = ?", orderID).Error
	})
	if err != nil {
		return nil, err
	}
	return &accepted, nil
}

// AdvanceStatus moves an accepted order to the given delivery status and
// mirrors it onto the linked request inside one transaction.
func (r *GORMOrderRepository) AdvanceStatus(orderID, riderID, status string) (*models.Order, error) {
	var advanced models.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &apperrors.NotFoundError{Resource: "order", ID: orderID}
			}
			return fmt.Errorf("failed to load order %s: %w", orderID, err)
		}
		if order.RiderID != riderID {
			return &apperrors.AuthorizationError{
				Message: fmt.Sprintf("order %s is not held by this rider", orderID),
			}
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status IN ?", orderID, advanceableStatuses).
			Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
		if res.Error != nil {
			return fmt.Errorf("failed to advance order %s: %w", orderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NewInvalidState(
				"order %s is %s and cannot be advanced", orderID, order.Status)
		}

		if err := r.mirrorRequestStatus(tx, order.RequestID, status); err != nil {
			return err
		}
		return tx.First(&advanced, "id = ?", orderID).Error
	})
	if err != nil {
		return nil, err
	}
	return &advanced, nil
}

func (r *GORMOrderRepository) mirrorRequestStatus(tx *gorm.DB, requestID, status string) error {
	if err := tx.Model(&models.DrugRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error; err != nil {
		return fmt.Errorf("failed to mirror status onto request %s: %w", requestID, err)
	}
	return nil
}

// ListAvailable retrieves a page of unassigned orders for the rider feed.
func (r *GORMOrderRepository) ListAvailable(params ListParams) ([]models.Order, Pagination, error) {
	params = params.Normalize()

	status := models.OrderStatusPending
	if params.Filter != "" {
		status = params.Filter
	}
	query := r.db.Model(&models.Order{}).Where("status = ?", status)
	if params.Search != "" {
		query = query.Where("delivery_address LIKE ?", "%"+params.Search+"%")
	}
	return r.page(query, params)
}

// ListByRider retrieves a page of the rider's orders.
func (r *GORMOrderRepository) ListByRider(riderID string, params ListParams) ([]models.Order, Pagination, error) {
	params = params.Normalize()
	return r.page(r.scopedQuery("rider_id", riderID, params), params)
}

// ListByClinic retrieves a page of the clinic's orders.
func (r *GORMOrderRepository) ListByClinic(clinicID string, params ListParams) ([]models.Order, Pagination, error) {
	params = params.Normalize()
	return r.page(r.scopedQuery("clinic_id", clinicID, params), params)
}

// ListByPharmacy retrieves a page of the pharmacy's orders.
func (r *GORMOrderRepository) ListByPharmacy(pharmacyID string, params ListParams) ([]models.Order, Pagination, error) {
	params = params.Normalize()
	return r.page(r.scopedQuery("pharmacy_id", pharmacyID, params), params)
}

func (r *GORMOrderRepository) scopedQuery(column, id string, params ListParams) *gorm.DB {
	query := r.db.Model(&models.Order{}).Where(column+" = ?", id)
	if params.Search != "" {
		query = query.Where("delivery_address LIKE ?", "%"+params.Search+"%")
	}
	if params.Filter != "" {
		query = query.Where("status = ?", params.Filter)
	}
	return query
}

func (r *GORMOrderRepository) page(query *gorm.DB, params ListParams) ([]models.Order, Pagination, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count orders: %w", err)
	}
	var orders []models.Order
	if err := query.Order("created_at DESC").Offset(params.Offset()).Limit(params.Limit).Find(&orders).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, NewPagination(params, total), nil
}
