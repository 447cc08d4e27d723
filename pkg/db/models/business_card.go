package models

import (
	"time"

	"github.com/google/uuid"
)

// BusinessCard is the countable resource the feature gate limits. Card
// content and rendering are owned by the card service; this core only needs
// ownership for counting.
type BusinessCard struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
