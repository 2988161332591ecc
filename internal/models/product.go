package models

import "time"

// Product represents a drug in a pharmacy's inventory. Quantity is the
// available stock and is only ever decremented through a reservation that
// first checks sufficiency, so it never goes negative.
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	PharmacyID  string    `json:"pharmacy_id" gorm:"index;type:varchar(36)"`
	Name        string    `json:"name" validate:"required,min=2,max=100"`
	Description string    `json:"description" validate:"omitempty,max=500"`
	Category    string    `json:"category" validate:"required,max=100"`
	Price       float64   `json:"price" validate:"required,gte=0"`
	Quantity    int       `json:"quantity" validate:"gte=0"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
