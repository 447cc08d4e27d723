package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miketere/businesscard-sub000/internal/billing"
	"github.com/miketere/businesscard-sub000/internal/plans"
	"github.com/miketere/businesscard-sub000/pkg/db/models"
	"github.com/miketere/businesscard-sub000/pkg/enums"
	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
	"github.com/miketere/businesscard-sub000/pkg/logger"
	"github.com/miketere/businesscard-sub000/pkg/metrics"
	"github.com/miketere/businesscard-sub000/pkg/pagination"
	"github.com/miketere/businesscard-sub000/pkg/paymongo"
)

// PurchaseKind classifies what a one-time purchase does to the user's
// subscription.
type PurchaseKind string

const (
	PurchaseKindNew     PurchaseKind = "new"
	PurchaseKindRenewal PurchaseKind = "renewal"
	PurchaseKindUpgrade PurchaseKind = "upgrade"
)

// Gateway is the slice of the payment client the lifecycle engine needs.
type Gateway interface {
	CreateCustomer(ctx context.Context, info paymongo.CustomerInfo) (*paymongo.Customer, error)
	CreatePaymentMethod(ctx context.Context, card paymongo.CardDetails) (*paymongo.PaymentMethod, error)
	ProcessOneTimePayment(ctx context.Context, params paymongo.OneTimePaymentParams) (*paymongo.PaymentIntent, error)
	CreateSubscription(ctx context.Context, params paymongo.SubscriptionCreateParams) (*paymongo.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*paymongo.Subscription, error)
}

// Catalog is the slice of the plan service the lifecycle engine needs.
type Catalog interface {
	Get(ctx context.Context, id string) (*models.Plan, error)
	CompareTiers(candidate, current enums.PlanTier) plans.TierComparison
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PurchaseInput captures a one-time annual purchase request.
type PurchaseInput struct {
	PlanID string
	Card   paymongo.CardDetails
}

// RecurringInput captures a recurring subscription request.
type RecurringInput struct {
	PlanID string
	Card   paymongo.CardDetails
}

// PurchaseResult is what a successful purchase produced.
type PurchaseResult struct {
	Kind         PurchaseKind
	Subscription *models.Subscription
	Payment      *models.Payment
}

// ServiceParams groups dependencies for the lifecycle engine.
type ServiceParams struct {
	Repo              billing.Repository
	Catalog           Catalog
	Gateway           Gateway
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.BillingMetrics
	Now               func() time.Time
}

// Service drives every subscription state transition: purchases, recurring
// signups, and cancellations. All writes funnel through the single-row-per-
// user upsert.
type Service struct {
	repo     billing.Repository
	catalog  Catalog
	gateway  Gateway
	txRunner txRunner
	logger   *logger.Logger
	billing  *metrics.BillingMetrics
	now      func() time.Time
}

// NewService builds a lifecycle engine with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("billing repo is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("plan catalog is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     params.Repo,
		catalog:  params.Catalog,
		gateway:  params.Gateway,
		txRunner: params.TransactionRunner,
		logger:   params.Logger,
		billing:  params.Metrics,
		now:      now,
	}, nil
}

// ApplyPurchase charges the full plan price and grants or extends one year
// of access. Renewals extend from whichever is later, the current expiry or
// now; upgrades restart the year at now. Downgrades are rejected before any
// money moves.
func (s *Service) ApplyPurchase(ctx context.Context, userID uuid.UUID, input PurchaseInput) (*PurchaseResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.PlanID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan_id is required")
	}

	plan, err := s.catalog.Get(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "the free plan cannot be purchased")
	}

	existing, err := s.repo.FindSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "subscription lookup failed")
	}
	if existing.IsRecurring() && existing.Status == enums.SubscriptionStatusActive && existing.ExpiresAt.After(s.now().UTC()) {
		// The upsert would null out the gateway subscription id and orphan
		// every webhook for it while the gateway keeps billing.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"an active recurring subscription exists for this user; cancel it before making a one-time purchase")
	}

	kind, err := s.classifyPurchase(ctx, plan, existing)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			s.billing.IncPurchase("downgrade", "rejected")
		}
		return nil, err
	}

	customerID := s.ensureCustomer(ctx, userID)

	method, err := s.gateway.CreatePaymentMethod(ctx, input.Card)
	if err != nil {
		s.billing.IncPurchase(string(kind), "failed")
		return nil, err
	}

	now := s.now().UTC()
	description := fmt.Sprintf("%s Plan - 1 Year Access", plan.DisplayName)
	intent, err := s.gateway.ProcessOneTimePayment(ctx, paymongo.OneTimePaymentParams{
		AmountCents:     plan.AmountCents,
		Currency:        plan.Currency,
		Description:     description,
		PaymentMethodID: method.ID,
		CustomerID:      customerID,
	})
	if err != nil {
		s.billing.IncPurchase(string(kind), "failed")
		return nil, err
	}

	expiresAt := s.expiryFor(kind, existing, now)
	intentID := intent.ID
	paidAt := now

	subscription := &models.Subscription{
		UserID:                  userID,
		PlanID:                  plan.ID,
		Status:                  enums.SubscriptionStatusActive,
		PaymongoPaymentIntentID: &intentID,
		CurrentPeriodStart:      &now,
		CurrentPeriodEnd:        expiresAt,
		ExpiresAt:               expiresAt,
		CancelAtPeriodEnd:       false,
		CancelledAt:             nil,
	}
	payment := &models.Payment{
		UserID:                  userID,
		AmountCents:             plan.AmountCents,
		Currency:                plan.Currency,
		PaymongoPaymentIntentID: intent.ID,
		Status:                  enums.PaymentStatusSucceeded,
		Description:             description,
		PaidAt:                  &paidAt,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpsertSubscription(ctx, subscription); err != nil {
			return err
		}
		payment.SubscriptionID = &subscription.ID
		return repo.CreatePayment(ctx, payment)
	})
	if err != nil {
		// Money moved but the entitlement did not land. This is the one
		// state operators must chase down by hand.
		ctx = s.logger.WithFields(ctx, map[string]any{
			"user_id":                    userID.String(),
			"plan_id":                    plan.ID,
			"paymongo_payment_intent_id": intent.ID,
			"amount_cents":               plan.AmountCents,
		})
		s.logger.Error(ctx, "payment succeeded but entitlement persistence failed", err)
		s.billing.IncPurchase(string(kind), "inconsistent")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err,
			fmt.Sprintf("payment %s succeeded but the subscription could not be saved", intent.ID))
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"user_id":    userID.String(),
		"plan_id":    plan.ID,
		"kind":       string(kind),
		"expires_at": expiresAt.Format(time.RFC3339),
	})
	s.logger.Info(ctx, "purchase applied")
	s.billing.IncPurchase(string(kind), "succeeded")

	return &PurchaseResult{Kind: kind, Subscription: subscription, Payment: payment}, nil
}

func (s *Service) classifyPurchase(ctx context.Context, plan *models.Plan, existing *models.Subscription) (PurchaseKind, error) {
	if existing == nil {
		return PurchaseKindNew, nil
	}
	if existing.Status != enums.SubscriptionStatusActive || !existing.ExpiresAt.After(s.now().UTC()) {
		// A lapsed, cancelled, or unpaid row carries no entitlement to
		// protect. Whatever plan is bought next starts a fresh year, even
		// a cheaper one than the row records.
		return PurchaseKindNew, nil
	}

	currentTier := enums.PlanTierFree
	current, err := s.catalog.Get(ctx, existing.PlanID)
	if err != nil {
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			return "", err
		}
		// Plan retired from the catalog; rank the holder with free.
	} else {
		currentTier = current.Tier
	}

	switch s.catalog.CompareTiers(plan.Tier, currentTier) {
	case plans.TierLower:
		return "", pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move from %s to %s: downgrades are not supported", currentTier, plan.Tier))
	case plans.TierHigher:
		return PurchaseKindUpgrade, nil
	default:
		return PurchaseKindRenewal, nil
	}
}

func (s *Service) expiryFor(kind PurchaseKind, existing *models.Subscription, now time.Time) time.Time {
	if kind == PurchaseKindRenewal && existing != nil && existing.ExpiresAt.After(now) {
		return existing.ExpiresAt.AddDate(1, 0, 0)
	}
	return now.AddDate(1, 0, 0)
}

// ensureCustomer links the user to a gateway customer if possible. Failure
// is logged and swallowed: one-time payments work without a customer.
func (s *Service) ensureCustomer(ctx context.Context, userID uuid.UUID) string {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil || user == nil {
		if err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "user_id", userID.String()), "user lookup for gateway customer failed")
		}
		return ""
	}
	if user.PaymongoCustomerID != nil && *user.PaymongoCustomerID != "" {
		return *user.PaymongoCustomerID
	}

	customer, err := s.gateway.CreateCustomer(ctx, paymongo.CustomerInfo{Email: user.Email, FullName: user.FullName})
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "user_id", userID.String()), "gateway customer creation failed, continuing without one")
		return ""
	}
	if err := s.repo.SetUserPaymongoCustomerID(ctx, userID, customer.ID); err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "user_id", userID.String()), "gateway customer id could not be saved")
	}
	return customer.ID
}

// CreateRecurring opens a gateway-managed subscription on a synced plan.
// Unlike one-time purchases, a gateway customer is mandatory here.
func (s *Service) CreateRecurring(ctx context.Context, userID uuid.UUID, input RecurringInput) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.PlanID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan_id is required")
	}

	plan, err := s.catalog.Get(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.PaymongoPlanID == nil || *plan.PaymongoPlanID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("plan %q is not registered with the payment gateway", plan.ID))
	}

	existing, err := s.repo.FindSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "subscription lookup failed")
	}
	if existing.IsRecurring() && existing.Status == enums.SubscriptionStatusActive && existing.ExpiresAt.After(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "an active recurring subscription already exists for this user")
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "user lookup failed")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user does not exist")
	}

	customerID := ""
	if user.PaymongoCustomerID != nil {
		customerID = *user.PaymongoCustomerID
	}
	if customerID == "" {
		customer, err := s.gateway.CreateCustomer(ctx, paymongo.CustomerInfo{Email: user.Email, FullName: user.FullName})
		if err != nil {
			return nil, err
		}
		customerID = customer.ID
		if err := s.repo.SetUserPaymongoCustomerID(ctx, userID, customer.ID); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "user_id", userID.String()), "gateway customer id could not be saved")
		}
	}

	method, err := s.gateway.CreatePaymentMethod(ctx, input.Card)
	if err != nil {
		return nil, err
	}

	remote, err := s.gateway.CreateSubscription(ctx, paymongo.SubscriptionCreateParams{
		CustomerID:      customerID,
		PlanID:          *plan.PaymongoPlanID,
		PaymentMethodID: method.ID,
		Metadata:        map[string]string{"user_id": userID.String()},
	})
	if err != nil {
		return nil, err
	}

	subscription := subscriptionFromRemote(userID, plan.ID, remote, s.now().UTC())
	if err := s.repo.UpsertSubscription(ctx, subscription); err != nil {
		ctx = s.logger.WithFields(ctx, map[string]any{
			"user_id":                  userID.String(),
			"paymongo_subscription_id": remote.ID,
		})
		s.logger.Error(ctx, "gateway subscription created but local persistence failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err,
			fmt.Sprintf("subscription %s was created at the gateway but could not be saved", remote.ID))
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"user_id":                  userID.String(),
		"plan_id":                  plan.ID,
		"paymongo_subscription_id": remote.ID,
	}), "recurring subscription created")
	return subscription, nil
}

// Cancel schedules a recurring subscription to end at the period boundary.
// One-time purchases simply run out and have nothing to cancel.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !subscription.IsRecurring() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"one-time purchases run until their expiry date and cannot be cancelled")
	}
	if subscription.CancelAtPeriodEnd || subscription.Status == enums.SubscriptionStatusCancelled {
		return subscription, nil
	}

	remote, err := s.gateway.CancelSubscription(ctx, *subscription.PaymongoSubscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	subscription.CancelAtPeriodEnd = true
	subscription.CancelledAt = &now
	if status, parseErr := enums.ParseSubscriptionStatus(remote.Status); parseErr == nil {
		subscription.Status = status
	}
	if err := s.repo.UpdateSubscription(ctx, subscription); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancellation could not be saved")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"user_id":                  userID.String(),
		"paymongo_subscription_id": *subscription.PaymongoSubscriptionID,
	}), "subscription cancellation scheduled")
	return subscription, nil
}

// GetSubscription returns the user's subscription row.
func (s *Service) GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	subscription, err := s.repo.FindSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "subscription lookup failed")
	}
	if subscription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription exists for this user")
	}
	return subscription, nil
}

// ListPayments returns the user's payment ledger, newest first.
func (s *Service) ListPayments(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Cursor, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	payments, next, err := s.repo.ListPayments(ctx, billing.ListPaymentsQuery{
		UserID: userID,
		Limit:  params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "payment history lookup failed")
	}
	return payments, next, nil
}

func subscriptionFromRemote(userID uuid.UUID, planID string, remote *paymongo.Subscription, now time.Time) *models.Subscription {
	status := enums.SubscriptionStatusActive
	if parsed, err := enums.ParseSubscriptionStatus(remote.Status); err == nil {
		status = parsed
	}

	start := now
	if remote.CurrentPeriodStart > 0 {
		start = time.Unix(remote.CurrentPeriodStart, 0).UTC()
	}
	end := now.AddDate(0, 1, 0)
	if remote.CurrentPeriodEnd > 0 {
		end = time.Unix(remote.CurrentPeriodEnd, 0).UTC()
	}

	remoteID := remote.ID
	subscription := &models.Subscription{
		UserID:                 userID,
		PlanID:                 planID,
		Status:                 status,
		PaymongoSubscriptionID: &remoteID,
		CurrentPeriodStart:     &start,
		CurrentPeriodEnd:       end,
		ExpiresAt:              end,
		CancelAtPeriodEnd:      remote.CancelAtPeriodEnd,
	}
	if remote.CancelledAt != nil {
		cancelled := time.Unix(*remote.CancelledAt, 0).UTC()
		subscription.CancelledAt = &cancelled
	}
	return subscription
}
