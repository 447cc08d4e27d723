package paymongowebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/miketere/businesscard-sub000/internal/billing"
	"github.com/miketere/businesscard-sub000/pkg/db/models"
	"github.com/miketere/businesscard-sub000/pkg/enums"
	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
	"github.com/miketere/businesscard-sub000/pkg/logger"
	"github.com/miketere/businesscard-sub000/pkg/metrics"
	"github.com/miketere/businesscard-sub000/pkg/paymongo"
)

// Gateway is the slice of the payment client the reconciler needs.
type Gateway interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*paymongo.Subscription, error)
}

type planResolver interface {
	FindByPaymongoPlanID(ctx context.Context, paymongoPlanID string) (*models.Plan, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Event is a parsed PayMongo webhook delivery.
type Event struct {
	ID         string
	Type       string
	ResourceID string
}

// ParseEvent decodes the PayMongo event envelope into the fields the
// reconciler acts on.
func ParseEvent(raw []byte) (*Event, error) {
	var envelope struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Type string `json:"type"`
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook payload is not valid json")
	}
	if envelope.Data.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event id missing")
	}
	return &Event{
		ID:         envelope.Data.ID,
		Type:       strings.ToLower(envelope.Data.Attributes.Type),
		ResourceID: envelope.Data.Attributes.Data.ID,
	}, nil
}

// ServiceParams groups dependencies for the webhook reconciler.
type ServiceParams struct {
	BillingRepo       billing.Repository
	PlanRepo          planResolver
	Gateway           Gateway
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.BillingMetrics
}

// Service reconciles local subscription rows against webhook events. The
// event body is never trusted: the authoritative state is always refetched
// from the gateway, so processing the same event twice converges on the
// same row.
type Service struct {
	billingRepo billing.Repository
	planRepo    planResolver
	gateway     Gateway
	txRunner    txRunner
	logger      *logger.Logger
	metrics     *metrics.BillingMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, errors.New("billing repo is required")
	}
	if params.PlanRepo == nil {
		return nil, errors.New("plan repo is required")
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
	return &Service{
		billingRepo: params.BillingRepo,
		planRepo:    params.PlanRepo,
		gateway:     params.Gateway,
		txRunner:    params.TransactionRunner,
		logger:      params.Logger,
		metrics:     params.Metrics,
	}, nil
}

// HandleEvent routes one webhook delivery. Unknown event types are
// acknowledged without action so the gateway stops redelivering them.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}
	ctx = s.logger.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": event.Type})

	switch event.Type {
	case "subscription.activated", "subscription.updated", "subscription.past_due", "subscription.unpaid", "subscription.cancelled":
		if event.ResourceID == "" {
			s.metrics.IncWebhookEvent(event.Type, "invalid")
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing from event")
		}
		if err := s.reconcileSubscription(ctx, event.ResourceID); err != nil {
			s.metrics.IncWebhookEvent(event.Type, "failed")
			return err
		}
		s.metrics.IncWebhookEvent(event.Type, "reconciled")
		return nil
	case "invoice.paid", "invoice.payment_failed":
		// Invoices are advisory. Subscription state changes arrive on their
		// own events; recording the sighting is enough.
		s.logger.Info(ctx, "invoice event acknowledged")
		s.metrics.IncWebhookEvent(event.Type, "acknowledged")
		return nil
	default:
		s.logger.Info(ctx, "unhandled webhook event type ignored")
		s.metrics.IncWebhookEvent(event.Type, "ignored")
		return nil
	}
}

// reconcileSubscription refetches the subscription from the gateway and
// overwrites the local row with whatever came back. Stale or reordered
// deliveries are harmless: every delivery converges on the gateway's
// current state.
func (s *Service) reconcileSubscription(ctx context.Context, paymongoSubscriptionID string) error {
	remote, err := s.gateway.GetSubscription(ctx, paymongoSubscriptionID)
	if err != nil {
		return err
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := repo.FindSubscriptionByPaymongoID(ctx, remote.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			// The gateway knows a subscription we never recorded. There is
			// no user to attach it to, so acknowledge and leave a trace.
			s.logger.Warn(s.logger.WithField(ctx, "paymongo_subscription_id", remote.ID),
				"webhook for unknown local subscription, skipping")
			return nil
		}

		applyRemoteState(stored, remote)
		plan, err := s.planRepo.FindByPaymongoPlanID(ctx, remote.PlanID)
		if err != nil {
			// Keep the stored plan id rather than failing the reconcile;
			// status and periods still land.
			s.logger.Warn(s.logger.WithField(ctx, "paymongo_plan_id", remote.PlanID),
				"plan lookup during reconcile failed, keeping stored plan")
		} else if plan != nil {
			stored.PlanID = plan.ID
		}
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return err
		}
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"paymongo_subscription_id": remote.ID,
			"status":                   stored.Status.String(),
		}), "subscription reconciled")
		return nil
	})
}

func applyRemoteState(stored *models.Subscription, remote *paymongo.Subscription) {
	if status, err := enums.ParseSubscriptionStatus(remote.Status); err == nil {
		stored.Status = status
	}
	if remote.CurrentPeriodStart > 0 {
		start := time.Unix(remote.CurrentPeriodStart, 0).UTC()
		stored.CurrentPeriodStart = &start
	}
	if remote.CurrentPeriodEnd > 0 {
		end := time.Unix(remote.CurrentPeriodEnd, 0).UTC()
		stored.CurrentPeriodEnd = end
		stored.ExpiresAt = end
	}
	stored.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	if remote.CancelledAt != nil {
		cancelled := time.Unix(*remote.CancelledAt, 0).UTC()
		stored.CancelledAt = &cancelled
	} else {
		stored.CancelledAt = nil
	}
}
