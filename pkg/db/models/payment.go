package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/miketere/businesscard-sub000/pkg/enums"
)

// Payment is an append-only ledger row, one per transaction attempt.
// Rows are immutable once created.
type Payment struct {
	ID                      uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                  uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	SubscriptionID          *uuid.UUID          `gorm:"column:subscription_id;type:uuid"`
	AmountCents             int64               `gorm:"column:amount_cents;not null"`
	Currency                string              `gorm:"column:currency;not null;default:'PHP'"`
	PaymongoPaymentIntentID string              `gorm:"column:paymongo_payment_intent_id;not null"`
	Status                  enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Description             string              `gorm:"column:description;not null"`
	PaidAt                  *time.Time          `gorm:"column:paid_at"`
	CreatedAt               time.Time           `gorm:"column:created_at;autoCreateTime"`
}
