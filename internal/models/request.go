package models

import "time"

// Request types. Fixed at creation, never changed afterwards.
const (
	RequestTypePhoto     = "photo"
	RequestTypeInventory = "inventory"
)

// DrugRequest statuses. pending -> {confirmed, rejected}; the delivery
// statuses are mirrored from the derived order. rejected and delivered
// are terminal.
const (
	RequestStatusPending   = "pending"
	RequestStatusConfirmed = "confirmed"
	RequestStatusRejected  = "rejected"
	RequestStatusAssigned  = "assigned"
	RequestStatusPickedUp  = "picked_up"
	RequestStatusInTransit = "in_transit"
	RequestStatusDelivered = "delivered"
)

// RequestItem is a single product line selected on a request.
// ProductName is a denormalized snapshot taken when the line was added.
type RequestItem struct {
	ProductID   string `json:"product_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gte=1"`
	ProductName string `json:"product_name"`
}

// DrugRequest is a clinic's ask for drugs, either photo-based or built
// from a pharmacy's inventory. ClinicName is a snapshot at submission time.
type DrugRequest struct {
	ID               string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ClinicID         string        `json:"clinic_id" gorm:"index;type:varchar(36)"`
	ClinicName       string        `json:"clinic_name"`
	Type             string        `json:"type" gorm:"type:varchar(20)"`
	PhotoURLs        []string      `json:"photo_urls" gorm:"serializer:json"`
	SelectedProducts []RequestItem `json:"selected_products" gorm:"serializer:json"`
	DeliveryAddress  string        `json:"delivery_address"`
	PatientInfo      string        `json:"patient_info"`
	Status           string        `json:"status" gorm:"index;type:varchar(20)"`
	RejectionReason  string        `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
