package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/miketere/businesscard-sub000/pkg/enums"
)

// Subscription persists the paid-plan entitlement per user. Exactly one row
// exists per user; the unique index on user_id is the concurrency guard both
// write paths (purchase flow and webhook reconciler) rely on. Cancellation
// is a status transition, never a deletion.
type Subscription struct {
	ID                      uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                  uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_subscriptions_user"`
	PlanID                  string                   `gorm:"column:plan_id;not null"`
	Status                  enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`
	PaymongoSubscriptionID  *string                  `gorm:"column:paymongo_subscription_id;uniqueIndex"`
	PaymongoPaymentIntentID *string                  `gorm:"column:paymongo_payment_intent_id"`
	CurrentPeriodStart      *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd        time.Time                `gorm:"column:current_period_end;not null"`
	ExpiresAt               time.Time                `gorm:"column:expires_at;not null"`
	CancelAtPeriodEnd       bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CancelledAt             *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt               time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// IsRecurring reports whether the row is backed by a gateway subscription.
// A nil PaymongoSubscriptionID means the entitlement came from a one-time
// annual purchase and has nothing recurring to cancel.
func (s *Subscription) IsRecurring() bool {
	return s != nil && s.PaymongoSubscriptionID != nil && *s.PaymongoSubscriptionID != ""
}
