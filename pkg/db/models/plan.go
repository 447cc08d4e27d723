package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/miketere/businesscard-sub000/pkg/enums"
)

// Plan captures the local metadata for a purchasable plan. Rows are seeded
// at deploy time and immutable once referenced by a subscription, except for
// PaymongoPlanID which a sync back-fills.
type Plan struct {
	ID             string                `gorm:"column:id;primaryKey"`
	Name           string                `gorm:"column:name;not null"`
	DisplayName    string                `gorm:"column:display_name;not null"`
	Tier           enums.PlanTier        `gorm:"column:tier;not null;uniqueIndex:uq_plans_tier"`
	AmountCents    int64                 `gorm:"column:amount_cents;not null"`
	Currency       string                `gorm:"column:currency;not null;default:'PHP'"`
	Interval       enums.BillingInterval `gorm:"column:interval;not null"`
	MaxCards       int                   `gorm:"column:max_cards;not null;default:1"`
	MaxContacts    int                   `gorm:"column:max_contacts;not null;default:50"`
	Analytics      bool                  `gorm:"column:analytics;not null;default:false"`
	CustomBranding bool                  `gorm:"column:custom_branding;not null;default:false"`
	Integrations   bool                  `gorm:"column:integrations;not null;default:false"`
	Features       pq.StringArray        `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	PaymongoPlanID *string               `gorm:"column:paymongo_plan_id;uniqueIndex"`
	IsDefault      bool                  `gorm:"column:is_default;not null;default:false"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
