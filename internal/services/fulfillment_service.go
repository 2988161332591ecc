package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"apotek/internal/apperrors"
	"apotek/internal/models"
	"apotek/internal/repositories"
)

// EventPublisher publishes fulfillment lifecycle events. A nil publisher
// disables publication; failures are logged, never surfaced.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// reservationTimeout bounds the whole multi-line reservation; stock
// correctness depends on it completing promptly.
const reservationTimeout = 10 * time.Second

// FulfillmentService orchestrates the request-to-order pipeline: the
// confirm protocol that reserves stock and spawns the order, and the
// rider-driven delivery lifecycle.
type FulfillmentService struct {
	requests repositories.RequestRepository
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	events   EventPublisher
}

// NewFulfillmentService creates a new FulfillmentService.
func NewFulfillmentService(requests repositories.RequestRepository, orders repositories.OrderRepository, products repositories.ProductRepository, events EventPublisher) *FulfillmentService {
	return &FulfillmentService{
		requests: requests,
		orders:   orders,
		products: products,
		events:   events,
	}
}

// ConfirmRequest runs the confirm protocol for the acting pharmacy:
//
//  1. load the request; it must still be pending
//  2. reserve every selected line through the inventory ledger, in array
//     order; the first failure releases everything reserved so far and
//     aborts, leaving stock exactly as it was
//  3. flip the request pending -> confirmed (status-guarded, so a
//     concurrent confirm or reject loses cleanly)
//  4. create the order with the frozen line snapshots
//
// An empty selection confirms into a degenerate order with zero items and
// zero total.
func (s *FulfillmentService) ConfirmRequest(ctx context.Context, requestID string, pharmacy Principal) (*models.Order, error) {
	request, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, apperrors.NewInvalidState(
			"request %s is %s and cannot be confirmed", requestID, request.Status)
	}

	ctx, cancel := context.WithTimeout(ctx, reservationTimeout)
	defer cancel()

	items, totalAmount, err := s.reserveLines(ctx, request.SelectedProducts)
	if err != nil {
		return nil, err
	}

	if _, err := s.requests.Transition(requestID, models.RequestStatusPending, models.RequestStatusConfirmed); err != nil {
		// Lost a confirm/reject race after reserving; put the stock back.
		s.releaseLines(ctx, items)
		return nil, err
	}

	order := &models.Order{
		RequestID:       request.ID,
		ClinicID:        request.ClinicID,
		ClinicName:      request.ClinicName,
		PharmacyID:      pharmacy.ID,
		PharmacyName:    pharmacy.Name,
		Items:           items,
		TotalAmount:     totalAmount,
		DeliveryAddress: request.DeliveryAddress,
		Status:          models.OrderStatusPending,
	}
	if err := s.orders.Create(order); err != nil {
		// Undo both sides so the request is not stuck confirmed without an
		// order. Reverting the transition can itself fail; that leftover is
		// logged for reconciliation.
		s.releaseLines(ctx, items)
		if _, revertErr := s.requests.Transition(requestID, models.RequestStatusConfirmed, models.RequestStatusPending); revertErr != nil {
			log.Printf("Failed to revert confirmation of request %s: %v", requestID, revertErr)
		}
		return nil, err
	}

	s.publish("order.created", map[string]interface{}{
		"order_id":   order.ID,
		"request_id": order.RequestID,
		"clinic_id":  order.ClinicID,
		"status":     order.Status,
		"total":      order.TotalAmount,
	})
	return order, nil
}

// reserveLines reserves each selected line in array order, freezing name
// and price as of the reservation instant. On failure every line reserved
// so far is released before the error surfaces.
func (s *FulfillmentService) reserveLines(ctx context.Context, selected []models.RequestItem) ([]models.OrderItem, float64, error) {
	items := make([]models.OrderItem, 0, len(selected))
	var totalAmount float64

	for _, line := range selected {
		product, err := s.products.ReserveStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			s.releaseLines(ctx, items)
			return nil, 0, err
		}
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       product.Price,
		})
		totalAmount += product.Price * float64(line.Quantity)
	}
	return items, totalAmount, nil
}

func (s *FulfillmentService) releaseLines(ctx context.Context, items []models.OrderItem) {
	// The release must run even when the reservation deadline is what
	// aborted the confirm, so it detaches from the caller's cancellation.
	ctx = context.WithoutCancel(ctx)
	for _, item := range items {
		if err := s.products.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("Failed to release %d of product %s: %v", item.Quantity, item.ProductID, err)
		}
	}
}

// AcceptOrder claims a pending order for the rider. The order moves to
// assigned and the linked request mirrors it.
func (s *FulfillmentService) AcceptOrder(orderID string, rider Principal) (*models.Order, error) {
	order, err := s.orders.Accept(orderID, rider.ID)
	if err != nil {
		return nil, err
	}

	s.publish("order.status_changed", map[string]interface{}{
		"order_id": order.ID,
		"rider_id": order.RiderID,
		"status":   order.Status,
	})
	return order, nil
}

// UpdateOrderStatus advances the rider's order to a new delivery status and
// mirrors it onto the linked request.
func (s *FulfillmentService) UpdateOrderStatus(orderID string, rider Principal, status string) (*models.Order, error) {
	switch status {
	case models.OrderStatusPickedUp, models.OrderStatusInTransit, models.OrderStatusDelivered:
	default:
		return nil, apperrors.NewValidation("invalid order status: %s", status)
	}

	order, err := s.orders.AdvanceStatus(orderID, rider.ID, status)
	if err != nil {
		return nil, err
	}

	s.publish("order.status_changed", map[string]interface{}{
		"order_id": order.ID,
		"rider_id": order.RiderID,
		"status":   order.Status,
	})
	return order, nil
}

// GetAvailableOrders retrieves the unassigned order feed for riders.
func (s *FulfillmentService) GetAvailableOrders(params repositories.ListParams) ([]models.Order, repositories.Pagination, error) {
	return s.orders.ListAvailable(params)
}

// GetUserOrders retrieves the orders visible to the principal: a rider sees
// the orders it holds, a clinic its own, a pharmacy the ones it spawned.
func (s *FulfillmentService) GetUserOrders(actor Principal, params repositories.ListParams) ([]models.Order, repositories.Pagination, error) {
	switch actor.Role {
	case models.RoleRider:
		return s.orders.ListByRider(actor.ID, params)
	case models.RoleClinic:
		return s.orders.ListByClinic(actor.ID, params)
	case models.RolePharmacy:
		return s.orders.ListByPharmacy(actor.ID, params)
	default:
		return nil, repositories.Pagination{}, &apperrors.AuthorizationError{
			Message: "unknown role " + actor.Role,
		}
	}
}

func (s *FulfillmentService) publish(routingKey string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}
	if err := s.events.Publish(routingKey, body); err != nil {
		log.Printf("Warning: Failed to publish %s event: %v", routingKey, err)
	}
}
