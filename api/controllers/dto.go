package controllers

import (
	"time"

	"github.com/miketere/businesscard-sub000/pkg/db/models"
)

// planResponse is the wire shape of a catalog plan.
type planResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	DisplayName    string   `json:"displayName"`
	Tier           string   `json:"tier"`
	AmountCents    int64    `json:"amountCents"`
	Currency       string   `json:"currency"`
	Interval       string   `json:"interval"`
	MaxCards       int      `json:"maxCards"`
	MaxContacts    int      `json:"maxContacts"`
	Analytics      bool     `json:"analytics"`
	CustomBranding bool     `json:"customBranding"`
	Integrations   bool     `json:"integrations"`
	Features       []string `json:"features"`
	IsDefault      bool     `json:"isDefault"`
	Synced         bool     `json:"synced"`
}

func toPlanResponse(plan *models.Plan) planResponse {
	features := make([]string, len(plan.Features))
	copy(features, plan.Features)
	return planResponse{
		ID:             plan.ID,
		Name:           plan.Name,
		DisplayName:    plan.DisplayName,
		Tier:           plan.Tier.String(),
		AmountCents:    plan.AmountCents,
		Currency:       plan.Currency,
		Interval:       plan.Interval.String(),
		MaxCards:       plan.MaxCards,
		MaxContacts:    plan.MaxContacts,
		Analytics:      plan.Analytics,
		CustomBranding: plan.CustomBranding,
		Integrations:   plan.Integrations,
		Features:       features,
		IsDefault:      plan.IsDefault,
		Synced:         plan.PaymongoPlanID != nil && *plan.PaymongoPlanID != "",
	}
}

// subscriptionResponse is the wire shape of the user's subscription row.
type subscriptionResponse struct {
	ID                     string     `json:"id"`
	PlanID                 string     `json:"planId"`
	Status                 string     `json:"status"`
	Recurring              bool       `json:"recurring"`
	PaymongoSubscriptionID *string    `json:"paymongoSubscriptionId,omitempty"`
	CurrentPeriodStart     *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd       time.Time  `json:"currentPeriodEnd"`
	ExpiresAt              time.Time  `json:"expiresAt"`
	CancelAtPeriodEnd      bool       `json:"cancelAtPeriodEnd"`
	CancelledAt            *time.Time `json:"cancelledAt,omitempty"`
}

func toSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                     sub.ID.String(),
		PlanID:                 sub.PlanID,
		Status:                 sub.Status.String(),
		Recurring:              sub.IsRecurring(),
		PaymongoSubscriptionID: sub.PaymongoSubscriptionID,
		CurrentPeriodStart:     sub.CurrentPeriodStart,
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
		ExpiresAt:              sub.ExpiresAt,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		CancelledAt:            sub.CancelledAt,
	}
}

// paymentResponse is the wire shape of one ledger row.
type paymentResponse struct {
	ID                      string     `json:"id"`
	AmountCents             int64      `json:"amountCents"`
	Currency                string     `json:"currency"`
	Status                  string     `json:"status"`
	Description             string     `json:"description"`
	PaymongoPaymentIntentID string     `json:"paymongoPaymentIntentId"`
	PaidAt                  *time.Time `json:"paidAt,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
}

func toPaymentResponses(payments []models.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(payments))
	for _, payment := range payments {
		out = append(out, paymentResponse{
			ID:                      payment.ID.String(),
			AmountCents:             payment.AmountCents,
			Currency:                payment.Currency,
			Status:                  payment.Status.String(),
			Description:             payment.Description,
			PaymongoPaymentIntentID: payment.PaymongoPaymentIntentID,
			PaidAt:                  payment.PaidAt,
			CreatedAt:               payment.CreatedAt,
		})
	}
	return out
}
