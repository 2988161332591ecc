package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"apotek/internal/apperrors"
	"apotek/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// When given a MockRequestRepository it mirrors delivery statuses onto the
// linked request, matching the GORM implementation's transactional mirror.
type MockOrderRepository struct {
	orders   map[string]models.Order
	requests *MockRequestRepository
	mu       sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
// requests may be nil when mirroring is not needed.
func NewMockOrderRepository(requests *MockRequestRepository) *MockOrderRepository {
	return &MockOrderRepository{
		orders:   make(map[string]models.Order),
		requests: requests,
	}
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "order", ID: id}
	}
	return &order, nil
}

// GetByRequestID returns the order derived from the given request.
func (r *MockOrderRepository) GetByRequestID(requestID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.RequestID == requestID {
			return &order, nil
		}
	}
	return nil, &apperrors.NotFoundError{Resource: "order for request", ID: requestID}
}

// Create adds a new order.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = *order
	return nil
}

// Accept assigns the rider if the order is still pending.
func (r *MockOrderRepository) Accept(orderID, riderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "order", ID: orderID}
	}
	if order.Status != models.OrderStatusPending {
		return nil, apperrors.NewInvalidState(
			"order %s is %s and can no longer be accepted", orderID, order.Status)
	}
	order.RiderID = riderID
	order.Status = models.OrderStatusAssigned
	order.UpdatedAt = time.Now()
	r.orders[orderID] = order

	if r.requests != nil {
		r.requests.setStatus(order.RequestID, models.RequestStatusAssigned)
	}
	return &order, nil
}

// AdvanceStatus moves an accepted order held by the rider to a new status.
func (r *MockOrderRepository) AdvanceStatus(orderID, riderID, status string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "order", ID: orderID}
	}
	if order.RiderID != riderID {
		return nil, &apperrors.AuthorizationError{
			Message: fmt.Sprintf("order %s is not held by this rider", orderID),
		}
	}
	switch order.Status {
	case models.OrderStatusAssigned, models.OrderStatusPickedUp, models.OrderStatusInTransit:
	default:
		return nil, apperrors.NewInvalidState(
			"order %s is %s and cannot be advanced", orderID, order.Status)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	r.orders[orderID] = order

	if r.requests != nil {
		r.requests.setStatus(order.RequestID, status)
	}
	return &order, nil
}

// ListAvailable returns a page of unassigned orders.
func (r *MockOrderRepository) ListAvailable(params ListParams) ([]models.Order, Pagination, error) {
	params = params.Normalize()
	status := models.OrderStatusPending
	if params.Filter != "" {
		status = params.Filter
	}
	return r.list(params, func(o models.Order) bool {
		if o.Status != status {
			return false
		}
		return params.Search == "" || containsFold(o.DeliveryAddress, params.Search)
	})
}

// ListByRider returns a page of the rider's orders.
func (r *MockOrderRepository) ListByRider(riderID string, params ListParams) ([]models.Order, Pagination, error) {
	params = params.Normalize()
	return r.list(params, func(o models.Order) bool {
		return o.RiderID == riderID && r.matchesScoped(o, params)
	})
}

// ListByClinic returns a page of the clinic's orders.
func (r *MockOrderRepository) ListByClinic(clinicID string, params ListParams) ([]models.Order, Pagination, error) {
	params = params.Normalize()
	return r.list(params, func(o models.Order) bool {
		return o.ClinicID == clinicID && r.matchesScoped(o, params)
	})
}

// ListByPharmacy returns a page of the pharmacy's orders.
func (r *MockOrderRepository) ListByPharmacy(pharmacyID string, params ListParams) ([]models.Order, Pagination, error) {
	params = params.Normalize()
	return r.list(params, func(o models.Order) bool {
		return o.PharmacyID == pharmacyID && r.matchesScoped(o, params)
	})
}

func (r *MockOrderRepository) matchesScoped(o models.Order, params ListParams) bool {
	if params.Search != "" && !containsFold(o.DeliveryAddress, params.Search) {
		return false
	}
	return params.Filter == "" || o.Status == params.Filter
}

func (r *MockOrderRepository) list(params ListParams, match func(models.Order) bool) ([]models.Order, Pagination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.Order
	for _, order := range r.orders {
		if match(order) {
			matched = append(matched, order)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start := params.Offset()
	if start >= len(matched) {
		return []models.Order{}, NewPagination(params, int64(len(matched))), nil
	}
	end := start + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], NewPagination(params, int64(len(matched))), nil
}
