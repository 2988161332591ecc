package services_test

import (
	"context"
	"sync"
	"testing"

	"apotek/internal/apperrors"
	"apotek/internal/models"
	"apotek/internal/repositories"
	"apotek/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario wires the real in-memory repositories together so the confirm
// protocol and the delivery lifecycle run against actual stock state.
type scenario struct {
	requests *repositories.MockRequestRepository
	orders   *repositories.MockOrderRepository
	products *repositories.MockProductRepository
	service  *services.FulfillmentService
}

func newScenario() *scenario {
	requests := repositories.NewMockRequestRepository()
	orders := repositories.NewMockOrderRepository(requests)
	products := repositories.NewMockProductRepository()
	return &scenario{
		requests: requests,
		orders:   orders,
		products: products,
		service:  services.NewFulfillmentService(requests, orders, products, nil),
	}
}

func (s *scenario) seedProduct(t *testing.T, id, name string, price float64, quantity int) {
	t.Helper()
	require.NoError(t, s.products.Create(&models.Product{
		ID:         id,
		PharmacyID: "pharm-1",
		Name:       name,
		Price:      price,
		Quantity:   quantity,
	}))
}

func (s *scenario) seedRequest(t *testing.T, items ...models.RequestItem) *models.DrugRequest {
	t.Helper()
	request := &models.DrugRequest{
		ClinicID:         "clinic-1",
		ClinicName:       "Klinik Sehat",
		Type:             models.RequestTypeInventory,
		SelectedProducts: items,
		DeliveryAddress:  "Jl. Merdeka 10",
		Status:           models.RequestStatusPending,
	}
	require.NoError(t, s.requests.Create(request))
	return request
}

func (s *scenario) stockOf(t *testing.T, productID string) int {
	t.Helper()
	product, err := s.products.GetByID(productID)
	require.NoError(t, err)
	return product.Quantity
}

func TestConfirmThenDeliver_FullLifecycle(t *testing.T) {
	s := newScenario()
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy, Name: "Apotek Jaya"}
	rider := services.Principal{ID: "rider-1", Role: models.RoleRider}

	s.seedProduct(t, "P1", "Paracetamol", 10.0, 5)
	request := s.seedRequest(t, models.RequestItem{ProductID: "P1", Quantity: 3})

	order, err := s.service.ConfirmRequest(context.Background(), request.ID, pharmacy)
	require.NoError(t, err)
	assert.Equal(t, 30.0, order.TotalAmount)
	assert.Equal(t, "Klinik Sehat", order.ClinicName)
	assert.Equal(t, "Apotek Jaya", order.PharmacyName)
	assert.Equal(t, 2, s.stockOf(t, "P1"))

	confirmed, err := s.requests.GetByID(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusConfirmed, confirmed.Status)

	// Rider claims and walks the order to delivered; the request mirrors
	// each hop.
	order, err = s.service.AcceptOrder(order.ID, rider)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAssigned, order.Status)

	for _, status := range []string{
		models.OrderStatusPickedUp,
		models.OrderStatusInTransit,
		models.OrderStatusDelivered,
	} {
		order, err = s.service.UpdateOrderStatus(order.ID, rider, status)
		require.NoError(t, err)
		assert.Equal(t, status, order.Status)

		mirrored, err := s.requests.GetByID(request.ID)
		require.NoError(t, err)
		assert.Equal(t, status, mirrored.Status)
	}

	// Delivered is terminal.
	_, err = s.service.UpdateOrderStatus(order.ID, rider, models.OrderStatusInTransit)
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestConfirm_InsufficientStockKeepsRequestPending(t *testing.T) {
	s := newScenario()
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	s.seedProduct(t, "P1", "Paracetamol", 10.0, 2)
	request := s.seedRequest(t, models.RequestItem{ProductID: "P1", Quantity: 3})

	order, err := s.service.ConfirmRequest(context.Background(), request.ID, pharmacy)

	assert.Nil(t, order)
	var stockErr *apperrors.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "P1", stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	assert.Equal(t, 2, s.stockOf(t, "P1"))
	unchanged, getErr := s.requests.GetByID(request.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.RequestStatusPending, unchanged.Status)

	_, orderErr := s.orders.GetByRequestID(request.ID)
	assert.True(t, apperrors.IsNotFound(orderErr))
}

func TestConfirm_PartialFailureRestoresEarlierLines(t *testing.T) {
	s := newScenario()
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	s.seedProduct(t, "P1", "Paracetamol", 10.0, 5)
	s.seedProduct(t, "P2", "Amoxicillin", 25.0, 1)
	request := s.seedRequest(t,
		models.RequestItem{ProductID: "P1", Quantity: 2},
		models.RequestItem{ProductID: "P2", Quantity: 4},
	)

	_, err := s.service.ConfirmRequest(context.Background(), request.ID, pharmacy)

	assert.True(t, apperrors.IsInsufficientStock(err))
	assert.Equal(t, 5, s.stockOf(t, "P1"))
	assert.Equal(t, 1, s.stockOf(t, "P2"))
}

func TestConfirm_ConcurrentConfirmsOnlyOneWins(t *testing.T) {
	s := newScenario()
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	s.seedProduct(t, "P1", "Paracetamol", 10.0, 100)
	request := s.seedRequest(t, models.RequestItem{ProductID: "P1", Quantity: 3})

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.ConfirmRequest(context.Background(), request.ID, pharmacy)
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.True(t, apperrors.IsInvalidState(err))
		}
	}
	assert.Equal(t, 1, won)
	// Exactly one reservation stuck; the losers released theirs.
	assert.Equal(t, 97, s.stockOf(t, "P1"))
}

func TestConfirm_RejectedRequestCannotBeConfirmed(t *testing.T) {
	s := newScenario()
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	s.seedProduct(t, "P1", "Paracetamol", 10.0, 5)
	request := s.seedRequest(t, models.RequestItem{ProductID: "P1", Quantity: 1})
	_, err := s.requests.Reject(request.ID, "prescription unreadable")
	require.NoError(t, err)

	_, err = s.service.ConfirmRequest(context.Background(), request.ID, pharmacy)

	assert.True(t, apperrors.IsInvalidState(err))
	assert.Equal(t, 5, s.stockOf(t, "P1"))
}

func TestAcceptOrder_SecondRiderLoses(t *testing.T) {
	s := newScenario()
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	s.seedProduct(t, "P1", "Paracetamol", 10.0, 5)
	request := s.seedRequest(t, models.RequestItem{ProductID: "P1", Quantity: 1})
	order, err := s.service.ConfirmRequest(context.Background(), request.ID, pharmacy)
	require.NoError(t, err)

	first, err := s.service.AcceptOrder(order.ID, services.Principal{ID: "rider-1", Role: models.RoleRider})
	require.NoError(t, err)
	assert.Equal(t, "rider-1", first.RiderID)

	_, err = s.service.AcceptOrder(order.ID, services.Principal{ID: "rider-2", Role: models.RoleRider})
	assert.True(t, apperrors.IsInvalidState(err))

	// The winner is untouched by the losing attempt.
	kept, err := s.orders.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "rider-1", kept.RiderID)
	assert.Equal(t, models.OrderStatusAssigned, kept.Status)
}

func TestUpdateOrderStatus_WrongRiderIsRefused(t *testing.T) {
	s := newScenario()
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	s.seedProduct(t, "P1", "Paracetamol", 10.0, 5)
	request := s.seedRequest(t, models.RequestItem{ProductID: "P1", Quantity: 1})
	order, err := s.service.ConfirmRequest(context.Background(), request.ID, pharmacy)
	require.NoError(t, err)
	_, err = s.service.AcceptOrder(order.ID, services.Principal{ID: "rider-1", Role: models.RoleRider})
	require.NoError(t, err)

	_, err = s.service.UpdateOrderStatus(order.ID, services.Principal{ID: "rider-2", Role: models.RoleRider}, models.OrderStatusPickedUp)
	assert.True(t, apperrors.IsAuthorization(err))
}
