package repositories

import (
	"apotek/internal/models"
)

// OrderRepository defines the interface for order data access. Accept and
// AdvanceStatus are status-guarded and mirror the resulting status onto the
// linked request as one unit, so the two records cannot diverge.
type OrderRepository interface {
	GetByID(id string) (*models.Order, error)
	GetByRequestID(requestID string) (*models.Order, error)
	Create(order *models.Order) error
	// Accept assigns a rider to a pending order. A second rider racing for
	// the same order fails with InvalidStateError.
	Accept(orderID, riderID string) (*models.Order, error)
	// AdvanceStatus moves an accepted order to a new delivery status. Only
	// the assigned rider may advance it; delivered is terminal.
	AdvanceStatus(orderID, riderID, status string) (*models.Order, error)

	ListAvailable(params ListParams) ([]models.Order, Pagination, error)
	ListByRider(riderID string, params ListParams) ([]models.Order, Pagination, error)
	ListByClinic(clinicID string, params ListParams) ([]models.Order, Pagination, error)
	ListByPharmacy(pharmacyID string, params ListParams) ([]models.Order, Pagination, error)
}
