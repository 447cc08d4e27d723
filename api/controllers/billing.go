package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/miketere/businesscard-sub000/api/middleware"
	"github.com/miketere/businesscard-sub000/api/responses"
	"github.com/miketere/businesscard-sub000/api/validators"
	"github.com/miketere/businesscard-sub000/internal/lifecycle"
	"github.com/miketere/businesscard-sub000/pkg/db/models"
	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
	"github.com/miketere/businesscard-sub000/pkg/logger"
	"github.com/miketere/businesscard-sub000/pkg/pagination"
	"github.com/miketere/businesscard-sub000/pkg/paymongo"
)

// LifecycleService describes the lifecycle methods used by the HTTP
// controllers.
type LifecycleService interface {
	ApplyPurchase(ctx context.Context, userID uuid.UUID, input lifecycle.PurchaseInput) (*lifecycle.PurchaseResult, error)
	CreateRecurring(ctx context.Context, userID uuid.UUID, input lifecycle.RecurringInput) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListPayments(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Cursor, error)
}

type cardRequest struct {
	Number   string `json:"number" validate:"required"`
	ExpMonth int    `json:"expMonth" validate:"required,min=1,max=12"`
	ExpYear  int    `json:"expYear" validate:"required"`
	CVC      string `json:"cvc" validate:"required,min=3,max=4"`
	Name     string `json:"name,omitempty"`
}

func (c cardRequest) toCardDetails() paymongo.CardDetails {
	return paymongo.CardDetails{
		Number:   c.Number,
		ExpMonth: c.ExpMonth,
		ExpYear:  c.ExpYear,
		CVC:      c.CVC,
		Name:     c.Name,
	}
}

type purchaseRequest struct {
	PlanID string      `json:"planId" validate:"required"`
	Card   cardRequest `json:"card" validate:"required"`
}

type purchaseResponse struct {
	Kind         string               `json:"kind"`
	Subscription subscriptionResponse `json:"subscription"`
	Payment      paymentResponse      `json:"payment"`
}

// Purchase applies a one-time annual plan purchase for the acting user.
func Purchase(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var body purchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyPurchase(r.Context(), userID, lifecycle.PurchaseInput{
			PlanID: body.PlanID,
			Card:   body.Card.toCardDetails(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payments := toPaymentResponses([]models.Payment{*result.Payment})
		responses.WriteSuccessStatus(w, http.StatusCreated, purchaseResponse{
			Kind:         string(result.Kind),
			Subscription: toSubscriptionResponse(result.Subscription),
			Payment:      payments[0],
		})
	}
}

type subscribeRequest struct {
	PlanID string      `json:"planId" validate:"required"`
	Card   cardRequest `json:"card" validate:"required"`
}

// Subscribe opens a recurring gateway subscription for the acting user.
func Subscribe(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var body subscribeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscription, err := svc.CreateRecurring(r.Context(), userID, lifecycle.RecurringInput{
			PlanID: body.PlanID,
			Card:   body.Card.toCardDetails(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toSubscriptionResponse(subscription))
	}
}

// CancelSubscription schedules the acting user's recurring subscription to
// end at the period boundary.
func CancelSubscription(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		subscription, err := svc.Cancel(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionResponse(subscription))
	}
}

// GetSubscription returns the acting user's subscription row.
func GetSubscription(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		subscription, err := svc.GetSubscription(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionResponse(subscription))
	}
}

type paymentListResponse struct {
	Payments   []paymentResponse `json:"payments"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// ListPayments returns the acting user's payment history, newest first.
func ListPayments(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, err := strconv.Atoi(rawLimit)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be an integer"))
				return
			}
			params.Limit = limit
		}

		payments, next, err := svc.ListPayments(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := paymentListResponse{Payments: toPaymentResponses(payments)}
		if next != nil {
			out.NextCursor = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, out)
	}
}
