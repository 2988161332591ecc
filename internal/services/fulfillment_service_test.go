package services_test

import (
	"context"
	"testing"

	"apotek/internal/apperrors"
	"apotek/internal/models"
	"apotek/internal/repositories"
	"apotek/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRequestRepo is a mock implementation of repositories.RequestRepository
type MockRequestRepo struct {
	mock.Mock
}

func (m *MockRequestRepo) GetByID(id string) (*models.DrugRequest, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrugRequest), args.Error(1)
}

func (m *MockRequestRepo) Create(request *models.DrugRequest) error {
	args := m.Called(request)
	return args.Error(0)
}

func (m *MockRequestRepo) Update(request *models.DrugRequest) error {
	args := m.Called(request)
	return args.Error(0)
}

func (m *MockRequestRepo) Transition(id, from, to string) (*models.DrugRequest, error) {
	args := m.Called(id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrugRequest), args.Error(1)
}

func (m *MockRequestRepo) Reject(id, reason string) (*models.DrugRequest, error) {
	args := m.Called(id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrugRequest), args.Error(1)
}

func (m *MockRequestRepo) ListPending(params repositories.ListParams) ([]models.DrugRequest, repositories.Pagination, error) {
	args := m.Called(params)
	return args.Get(0).([]models.DrugRequest), args.Get(1).(repositories.Pagination), args.Error(2)
}

func (m *MockRequestRepo) ListByClinic(clinicID string, params repositories.ListParams) ([]models.DrugRequest, repositories.Pagination, error) {
	args := m.Called(clinicID, params)
	return args.Get(0).([]models.DrugRequest), args.Get(1).(repositories.Pagination), args.Error(2)
}

func (m *MockRequestRepo) ListClinicHistory(clinicID string, params repositories.ListParams) ([]models.DrugRequest, repositories.Pagination, error) {
	args := m.Called(clinicID, params)
	return args.Get(0).([]models.DrugRequest), args.Get(1).(repositories.Pagination), args.Error(2)
}

// MockOrderRepo is a mock implementation of repositories.OrderRepository
type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) GetByID(id string) (*models.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepo) GetByRequestID(requestID string) (*models.Order, error) {
	args := m.Called(requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepo) Create(order *models.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderRepo) Accept(orderID, riderID string) (*models.Order, error) {
	args := m.Called(orderID, riderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepo) AdvanceStatus(orderID, riderID, status string) (*models.Order, error) {
	args := m.Called(orderID, riderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepo) ListAvailable(params repositories.ListParams) ([]models.Order, repositories.Pagination, error) {
	args := m.Called(params)
	return args.Get(0).([]models.Order), args.Get(1).(repositories.Pagination), args.Error(2)
}

func (m *MockOrderRepo) ListByRider(riderID string, params repositories.ListParams) ([]models.Order, repositories.Pagination, error) {
	args := m.Called(riderID, params)
	return args.Get(0).([]models.Order), args.Get(1).(repositories.Pagination), args.Error(2)
}

func (m *MockOrderRepo) ListByClinic(clinicID string, params repositories.ListParams) ([]models.Order, repositories.Pagination, error) {
	args := m.Called(clinicID, params)
	return args.Get(0).([]models.Order), args.Get(1).(repositories.Pagination), args.Error(2)
}

func (m *MockOrderRepo) ListByPharmacy(pharmacyID string, params repositories.ListParams) ([]models.Order, repositories.Pagination, error) {
	args := m.Called(pharmacyID, params)
	return args.Get(0).([]models.Order), args.Get(1).(repositories.Pagination), args.Error(2)
}

// MockProductRepo is a mock implementation of repositories.ProductRepository
type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) GetByID(id string) (*models.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepo) GetOwned(id, pharmacyID string) (*models.Product, error) {
	args := m.Called(id, pharmacyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepo) ListByPharmacy(pharmacyID string, params repositories.ListParams) ([]models.Product, repositories.Pagination, error) {
	args := m.Called(pharmacyID, params)
	return args.Get(0).([]models.Product), args.Get(1).(repositories.Pagination), args.Error(2)
}

func (m *MockProductRepo) Create(product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepo) Update(product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepo) Delete(id, pharmacyID string) error {
	args := m.Called(id, pharmacyID)
	return args.Error(0)
}

func (m *MockProductRepo) ReserveStock(ctx context.Context, productID string, quantity int) (*models.Product, error) {
	args := m.Called(productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepo) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	args := m.Called(productID, quantity)
	return args.Error(0)
}

func newFulfillment(t *testing.T) (*services.FulfillmentService, *MockRequestRepo, *MockOrderRepo, *MockProductRepo) {
	t.Helper()
	requests := new(MockRequestRepo)
	orders := new(MockOrderRepo)
	products := new(MockProductRepo)
	return services.NewFulfillmentService(requests, orders, products, nil), requests, orders, products
}

func pendingRequest(items ...models.RequestItem) *models.DrugRequest {
	return &models.DrugRequest{
		ID:               "req-1",
		ClinicID:         "clinic-1",
		ClinicName:       "Klinik Sehat",
		Type:             models.RequestTypeInventory,
		SelectedProducts: items,
		DeliveryAddress:  "Jl. Merdeka 10",
		Status:           models.RequestStatusPending,
	}
}

func TestConfirmRequest_ReservesAndCreatesOrder(t *testing.T) {
	service, requests, orders, products := newFulfillment(t)
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy, Name: "Apotek Jaya"}

	request := pendingRequest(models.RequestItem{ProductID: "P1", Quantity: 3})
	requests.On("GetByID", "req-1").Return(request, nil).Once()
	// Snapshot as of reservation: 5 in stock, 3 reserved, price 10.
	products.On("ReserveStock", "P1", 3).
		Return(&models.Product{ID: "P1", Name: "Paracetamol", Price: 10.0, Quantity: 2}, nil).Once()
	requests.On("Transition", "req-1", models.RequestStatusPending, models.RequestStatusConfirmed).
		Return(&models.DrugRequest{ID: "req-1", Status: models.RequestStatusConfirmed}, nil).Once()
	orders.On("Create", mock.AnythingOfType("*models.Order")).Return(nil).Once()

	order, err := service.ConfirmRequest(context.Background(), "req-1", pharmacy)

	assert.NoError(t, err)
	assert.Equal(t, "req-1", order.RequestID)
	assert.Equal(t, "clinic-1", order.ClinicID)
	assert.Equal(t, "Klinik Sehat", order.ClinicName)
	assert.Equal(t, "pharm-1", order.PharmacyID)
	assert.Equal(t, "Apotek Jaya", order.PharmacyName)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, []models.OrderItem{
		{ProductID: "P1", ProductName: "Paracetamol", Quantity: 3, Price: 10.0},
	}, order.Items)
	assert.Equal(t, 30.0, order.TotalAmount)
	requests.AssertExpectations(t)
	orders.AssertExpectations(t)
	products.AssertExpectations(t)
}

func TestConfirmRequest_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	service, requests, orders, products := newFulfillment(t)
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	request := pendingRequest(models.RequestItem{ProductID: "P1", Quantity: 3})
	requests.On("GetByID", "req-1").Return(request, nil).Once()
	stockErr := &apperrors.InsufficientStockError{ProductID: "P1", ProductName: "Paracetamol", Requested: 3, Available: 2}
	products.On("ReserveStock", "P1", 3).Return(nil, stockErr).Once()

	order, err := service.ConfirmRequest(context.Background(), "req-1", pharmacy)

	assert.Nil(t, order)
	assert.True(t, apperrors.IsInsufficientStock(err))
	assert.Contains(t, err.Error(), "Paracetamol")
	// The request stays pending and no order is created.
	requests.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "Create", mock.Anything)
	products.AssertNotCalled(t, "ReleaseStock", mock.Anything, mock.Anything)
	requests.AssertExpectations(t)
	products.AssertExpectations(t)
}

func TestConfirmRequest_RollsBackEarlierLinesOnFailure(t *testing.T) {
	service, requests, orders, products := newFulfillment(t)
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	request := pendingRequest(
		models.RequestItem{ProductID: "P1", Quantity: 2},
		models.RequestItem{ProductID: "P2", Quantity: 4},
	)
	requests.On("GetByID", "req-1").Return(request, nil).Once()
	products.On("ReserveStock", "P1", 2).
		Return(&models.Product{ID: "P1", Name: "Paracetamol", Price: 10.0}, nil).Once()
	products.On("ReserveStock", "P2", 4).
		Return(nil, &apperrors.InsufficientStockError{ProductID: "P2", ProductName: "Amoxicillin", Requested: 4, Available: 1}).Once()
	// The already-reserved first line is released before the error surfaces.
	products.On("ReleaseStock", "P1", 2).Return(nil).Once()

	order, err := service.ConfirmRequest(context.Background(), "req-1", pharmacy)

	assert.Nil(t, order)
	assert.True(t, apperrors.IsInsufficientStock(err))
	orders.AssertNotCalled(t, "Create", mock.Anything)
	products.AssertExpectations(t)
}

func TestConfirmRequest_EmptySelectionYieldsDegenerateOrder(t *testing.T) {
	service, requests, orders, products := newFulfillment(t)
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	request := pendingRequest()
	request.Type = models.RequestTypePhoto
	requests.On("GetByID", "req-1").Return(request, nil).Once()
	requests.On("Transition", "req-1", models.RequestStatusPending, models.RequestStatusConfirmed).
		Return(&models.DrugRequest{ID: "req-1", Status: models.RequestStatusConfirmed}, nil).Once()
	orders.On("Create", mock.AnythingOfType("*models.Order")).Return(nil).Once()

	order, err := service.ConfirmRequest(context.Background(), "req-1", pharmacy)

	assert.NoError(t, err)
	assert.Empty(t, order.Items)
	assert.Equal(t, 0.0, order.TotalAmount)
	products.AssertNotCalled(t, "ReserveStock", mock.Anything, mock.Anything)
	requests.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestConfirmRequest_AlreadyConfirmedIsRejected(t *testing.T) {
	service, requests, orders, products := newFulfillment(t)
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	request := pendingRequest(models.RequestItem{ProductID: "P1", Quantity: 1})
	request.Status = models.RequestStatusConfirmed
	requests.On("GetByID", "req-1").Return(request, nil).Once()

	order, err := service.ConfirmRequest(context.Background(), "req-1", pharmacy)

	assert.Nil(t, order)
	assert.True(t, apperrors.IsInvalidState(err))
	products.AssertNotCalled(t, "ReserveStock", mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "Create", mock.Anything)
}

func TestConfirmRequest_RequestNotFound(t *testing.T) {
	service, requests, _, _ := newFulfillment(t)
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	requests.On("GetByID", "missing").
		Return(nil, &apperrors.NotFoundError{Resource: "request", ID: "missing"}).Once()

	order, err := service.ConfirmRequest(context.Background(), "missing", pharmacy)

	assert.Nil(t, order)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConfirmRequest_LostTransitionRaceReleasesStock(t *testing.T) {
	service, requests, orders, products := newFulfillment(t)
	pharmacy := services.Principal{ID: "pharm-1", Role: models.RolePharmacy}

	request := pendingRequest(models.RequestItem{ProductID: "P1", Quantity: 2})
	requests.On("GetByID", "req-1").Return(request, nil).Once()
	products.On("ReserveStock", "P1", 2).
		Return(&models.Product{ID: "P1", Name: "Paracetamol", Price: 10.0}, nil).Once()
	// A concurrent reject won the race after we reserved.
	requests.On("Transition", "req-1", models.RequestStatusPending, models.RequestStatusConfirmed).
		Return(nil, apperrors.NewInvalidState("request req-1 is rejected, expected pending")).Once()
	products.On("ReleaseStock", "P1", 2).Return(nil).Once()

	order, err := service.ConfirmRequest(context.Background(), "req-1", pharmacy)

	assert.Nil(t, order)
	assert.True(t, apperrors.IsInvalidState(err))
	orders.AssertNotCalled(t, "Create", mock.Anything)
	products.AssertExpectations(t)
}

func TestUpdateOrderStatus_RejectsUnknownStatus(t *testing.T) {
	service, _, orders, _ := newFulfillment(t)
	rider := services.Principal{ID: "rider-1", Role: models.RoleRider}

	order, err := service.UpdateOrderStatus("order-1", rider, "teleported")

	assert.Nil(t, order)
	assert.True(t, apperrors.IsValidation(err))
	orders.AssertNotCalled(t, "AdvanceStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_DelegatesToRepository(t *testing.T) {
	service, _, orders, _ := newFulfillment(t)
	rider := services.Principal{ID: "rider-1", Role: models.RoleRider}

	orders.On("AdvanceStatus", "order-1", "rider-1", models.OrderStatusInTransit).
		Return(&models.Order{ID: "order-1", RiderID: "rider-1", Status: models.OrderStatusInTransit}, nil).Once()

	order, err := service.UpdateOrderStatus("order-1", rider, models.OrderStatusInTransit)

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusInTransit, order.Status)
	orders.AssertExpectations(t)
}

func TestGetUserOrders_ScopesByRole(t *testing.T) {
	service, _, orders, _ := newFulfillment(t)
	params := repositories.ListParams{Page: 1, Limit: 10}

	orders.On("ListByRider", "rider-1", params).
		Return([]models.Order{{ID: "o1"}}, repositories.Pagination{Current: 1, Pages: 1, Total: 1}, nil).Once()
	got, _, err := service.GetUserOrders(services.Principal{ID: "rider-1", Role: models.RoleRider}, params)
	assert.NoError(t, err)
	assert.Len(t, got, 1)

	orders.On("ListByClinic", "clinic-1", params).
		Return([]models.Order{}, repositories.Pagination{Current: 1}, nil).Once()
	_, _, err = service.GetUserOrders(services.Principal{ID: "clinic-1", Role: models.RoleClinic}, params)
	assert.NoError(t, err)

	orders.On("ListByPharmacy", "pharm-1", params).
		Return([]models.Order{}, repositories.Pagination{Current: 1}, nil).Once()
	_, _, err = service.GetUserOrders(services.Principal{ID: "pharm-1", Role: models.RolePharmacy}, params)
	assert.NoError(t, err)

	orders.AssertExpectations(t)
}

// flakyProductRepo reserves the first line, refuses the rest, and records the
// context state its ReleaseStock calls observe.
type flakyProductRepo struct {
	repositories.ProductRepository
	released   []string
	releaseCtx []error
}

func (r *flakyProductRepo) ReserveStock(ctx context.Context, productID string, quantity int) (*models.Product, error) {
	if productID != "P1" {
		return nil, &apperrors.InsufficientStockError{ProductID: productID, ProductName: "Amoxicillin", Requested: quantity, Available: 0}
	}
	return &models.Product{ID: productID, Name: "Paracetamol", Price: 5000}, nil
}

func (r *flakyProductRepo) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	r.released = append(r.released, productID)
	r.releaseCtx = append(r.releaseCtx, ctx.Err())
	return nil
}

func TestConfirmRequest_CompensationOutlivesCanceledContext(t *testing.T) {
	requests := new(MockRequestRepo)
	orders := new(MockOrderRepo)
	products := &flakyProductRepo{}
	service := services.NewFulfillmentService(requests, orders, products, nil)

	request := pendingRequest(
		models.RequestItem{ProductID: "P1", Quantity: 2},
		models.RequestItem{ProductID: "P2", Quantity: 4},
	)
	requests.On("GetByID", "req-1").Return(request, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.ConfirmRequest(ctx, "req-1", services.Principal{ID: "pharm-1", Role: models.RolePharmacy, Name: "Apotek Jaya"})
	assert.True(t, apperrors.IsInsufficientStock(err))

	// The compensating release still runs, detached from the dead context.
	assert.Equal(t, []string{"P1"}, products.released)
	if assert.Len(t, products.releaseCtx, 1) {
		assert.NoError(t, products.releaseCtx[0])
	}
	requests.AssertExpectations(t)
}
