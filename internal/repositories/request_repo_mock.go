package repositories

import (
	"sort"
	"sync"
	"time"

	"apotek/internal/apperrors"
	"apotek/internal/models"

	"github.com/google/uuid"
)

// MockRequestRepository is an in-memory implementation of RequestRepository.
type MockRequestRepository struct {
	requests map[string]models.DrugRequest
	mu       sync.RWMutex
}

// NewMockRequestRepository creates a new instance of MockRequestRepository.
func NewMockRequestRepository() *MockRequestRepository {
	return &MockRequestRepository{
		requests: make(map[string]models.DrugRequest),
	}
}

// GetByID returns a request by its ID.
func (r *MockRequestRepository) GetByID(id string) (*models.DrugRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.requests[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "request", ID: id}
	}
	return &request, nil
}

// Create adds a new request.
func (r *MockRequestRepository) Create(request *models.DrugRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now
	r.requests[request.ID] = *request
	return nil
}

// Update modifies an existing request.
func (r *MockRequestRepository) Update(request *models.DrugRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.requests[request.ID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "request", ID: request.ID}
	}
	request.UpdatedAt = time.Now()
	r.requests[request.ID] = *request
	return nil
}

// Transition performs the status-guarded update under the lock.
func (r *MockRequestRepository) Transition(id, from, to string) (*models.DrugRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "request", ID: id}
	}
	if request.Status != from {
		return nil, apperrors.NewInvalidState(
			"request %s is %s, expected %s", id, request.Status, from)
	}
	request.Status = to
	request.UpdatedAt = time.Now()
	r.requests[id] = request
	return &request, nil
}

// Reject marks the request rejected, overwriting the reason on re-reject.
func (r *MockRequestRepository) Reject(id, reason string) (*models.DrugRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "request", ID: id}
	}
	if request.Status != models.RequestStatusPending && request.Status != models.RequestStatusRejected {
		return nil, apperrors.NewInvalidState(
			"request %s is %s and can no longer be rejected", id, request.Status)
	}
	request.Status = models.RequestStatusRejected
	request.RejectionReason = reason
	request.UpdatedAt = time.Now()
	r.requests[id] = request
	return &request, nil
}

// ListPending returns a page of pending requests.
func (r *MockRequestRepository) ListPending(params ListParams) ([]models.DrugRequest, Pagination, error) {
	params = params.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.DrugRequest
	for _, req := range r.requests {
		if req.Status != models.RequestStatusPending {
			continue
		}
		if params.Search != "" &&
			!containsFold(req.ClinicName, params.Search) &&
			!containsFold(req.DeliveryAddress, params.Search) &&
			!containsFold(req.PatientInfo, params.Search) {
			continue
		}
		if (params.Filter == models.RequestTypePhoto || params.Filter == models.RequestTypeInventory) &&
			req.Type != params.Filter {
			continue
		}
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return requestPage(matched, params), NewPagination(params, int64(len(matched))), nil
}

// ListByClinic returns a page of the clinic's own requests.
func (r *MockRequestRepository) ListByClinic(clinicID string, params ListParams) ([]models.DrugRequest, Pagination, error) {
	params = params.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.DrugRequest
	for _, req := range r.requests {
		if req.ClinicID != clinicID {
			continue
		}
		if params.Search != "" &&
			!containsFold(req.DeliveryAddress, params.Search) &&
			!containsFold(req.PatientInfo, params.Search) {
			continue
		}
		if params.Filter != "" && req.Status != params.Filter {
			continue
		}
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return requestPage(matched, params), NewPagination(params, int64(len(matched))), nil
}

// ListClinicHistory returns the clinic's non-pending requests, newest
// updated first.
func (r *MockRequestRepository) ListClinicHistory(clinicID string, params ListParams) ([]models.DrugRequest, Pagination, error) {
	params = params.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.DrugRequest
	for _, req := range r.requests {
		if req.ClinicID != clinicID || req.Status == models.RequestStatusPending {
			continue
		}
		if params.Search != "" &&
			!containsFold(req.DeliveryAddress, params.Search) &&
			!containsFold(req.PatientInfo, params.Search) &&
			!containsFold(req.RejectionReason, params.Search) {
			continue
		}
		if params.Filter == models.RequestTypePhoto || params.Filter == models.RequestTypeInventory {
			if req.Type != params.Filter {
				continue
			}
		} else if params.Filter != "" && req.Status != params.Filter {
			continue
		}
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	return requestPage(matched, params), NewPagination(params, int64(len(matched))), nil
}

// setStatus mirrors a delivery status from the derived order. Called by the
// in-memory order repository under its own lock ordering (order first,
// request second).
func (r *MockRequestRepository) setStatus(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[id]
	if !ok {
		return
	}
	request.Status = status
	request.UpdatedAt = time.Now()
	r.requests[id] = request
}

func requestPage(requests []models.DrugRequest, params ListParams) []models.DrugRequest {
	start := params.Offset()
	if start >= len(requests) {
		return []models.DrugRequest{}
	}
	end := start + params.Limit
	if end > len(requests) {
		end = len(requests)
	}
	return requests[start:end]
}
