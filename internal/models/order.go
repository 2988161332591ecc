package models

import "time"

// Order statuses. pending -(accept)-> assigned -> {picked_up, in_transit, delivered}.
const (
	OrderStatusPending   = "pending"
	OrderStatusAssigned  = "assigned"
	OrderStatusPickedUp  = "picked_up"
	OrderStatusInTransit = "in_transit"
	OrderStatusDelivered = "delivered"
)

// OrderItem is a single reserved line within an order. ProductName and
// Price are frozen at confirmation time, independent of later product edits.
type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"` // Price at the time the line was reserved
}

// Order is the fulfillment record spawned by confirming a request.
// Exactly one order traces back to each confirmed request. ClinicName and
// PharmacyName are display snapshots taken at confirmation time.
type Order struct {
	ID              string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestID       string      `json:"request_id" gorm:"index;type:varchar(36)"`
	ClinicID        string      `json:"clinic_id" gorm:"index;type:varchar(36)"`
	ClinicName      string      `json:"clinic_name"`
	PharmacyID      string      `json:"pharmacy_id" gorm:"index;type:varchar(36)"`
	PharmacyName    string      `json:"pharmacy_name"`
	RiderID         string      `json:"rider_id,omitempty" gorm:"index;type:varchar(36)"`
	Items           []OrderItem `json:"items" gorm:"serializer:json"`
	TotalAmount     float64     `json:"total_amount"`
	DeliveryAddress string      `json:"delivery_address"`
	Status          string      `json:"status" gorm:"index;type:varchar(20)"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
