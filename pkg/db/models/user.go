package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal identity row the billing core references. Account
// management lives elsewhere; only the fields gateway customer creation
// needs are kept here.
type User struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email              string    `gorm:"column:email;not null;uniqueIndex"`
	FullName           string    `gorm:"column:full_name;not null"`
	PaymongoCustomerID *string   `gorm:"column:paymongo_customer_id"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
