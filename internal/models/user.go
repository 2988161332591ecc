package models

import "time"

// Roles recognized by the platform. Authorization gates check these values.
const (
	RoleClinic   = "clinic"
	RolePharmacy = "pharmacy"
	RoleRider    = "rider"
)

// User represents an account of any of the three actor roles.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password     string    `gorm:"type:varchar(255)" validate:"required,min=6"` // No json tag for security
	Role         string    `json:"role" gorm:"type:varchar(20)" validate:"required,oneof=clinic pharmacy rider"`
	Name         string    `json:"name" validate:"required,min=2,max=100"`
	Organization string    `json:"organization" validate:"omitempty,max=200"`
	Address      string    `json:"address" validate:"omitempty,max=500"`
	Phone        string    `json:"phone" validate:"omitempty,max=30"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
