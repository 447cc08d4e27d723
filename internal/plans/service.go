package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/miketere/businesscard-sub000/pkg/db/models"
	"github.com/miketere/businesscard-sub000/pkg/enums"
	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
	"github.com/miketere/businesscard-sub000/pkg/logger"
	"github.com/miketere/businesscard-sub000/pkg/paymongo"
)

// TierComparison is the result of ranking two plan tiers.
type TierComparison string

const (
	TierLower  TierComparison = "lower"
	TierEqual  TierComparison = "equal"
	TierHigher TierComparison = "higher"
)

// Gateway is the slice of the payment client the catalog needs.
type Gateway interface {
	CreatePlan(ctx context.Context, params paymongo.PlanCreateParams) (*paymongo.Plan, error)
}

// ServiceParams groups dependencies for the plan catalog service.
type ServiceParams struct {
	Repo    Repository
	Gateway Gateway
	Logger  *logger.Logger
}

// Service serves the read-mostly plan catalog.
type Service struct {
	repo    Repository
	gateway Gateway
	logger  *logger.Logger
}

// NewService builds a plan catalog service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, gateway: params.Gateway, logger: params.Logger}, nil
}

// List returns every catalog plan ordered by price.
func (s *Service) List(ctx context.Context) ([]models.Plan, error) {
	return s.repo.List(ctx)
}

// Get returns the plan for the given identifier.
func (s *Service) Get(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "plan lookup failed")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %q does not exist", id))
	}
	return plan, nil
}

// GetByTier returns the plan occupying the given tier rung.
func (s *Service) GetByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	plan, err := s.repo.FindByTier(ctx, tier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "plan lookup failed")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no plan exists for tier %q", tier))
	}
	return plan, nil
}

// GetDefault returns the fallback plan for users without a subscription.
func (s *Service) GetDefault(ctx context.Context) (*models.Plan, error) {
	plan, err := s.repo.FindDefault(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "default plan lookup failed")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no default plan is configured")
	}
	return plan, nil
}

// CompareTiers ranks candidate against current on the fixed tier ladder.
// Unknown tiers rank at the bottom.
func (s *Service) CompareTiers(candidate, current enums.PlanTier) TierComparison {
	switch {
	case candidate.Level() < current.Level():
		return TierLower
	case candidate.Level() > current.Level():
		return TierHigher
	default:
		return TierEqual
	}
}

// Sync registers the plan at the gateway and back-fills the external id.
// Plans already linked are left untouched.
func (s *Service) Sync(ctx context.Context, id string) (*models.Plan, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment gateway is not configured")
	}

	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.PaymongoPlanID != nil && *plan.PaymongoPlanID != "" {
		return plan, nil
	}
	if plan.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "free plans are not billable and cannot be synced")
	}

	remote, err := s.gateway.CreatePlan(ctx, paymongo.PlanCreateParams{
		Name:        plan.DisplayName,
		AmountCents: plan.AmountCents,
		Currency:    plan.Currency,
		Interval:    plan.Interval.String(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetPaymongoPlanID(ctx, plan.ID, remote.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "plan sync persisted at the gateway but not locally")
	}

	ctx = s.logger.WithFields(ctx, map[string]any{"plan_id": plan.ID, "paymongo_plan_id": remote.ID})
	s.logger.Info(ctx, "plan synced to gateway")

	plan.PaymongoPlanID = &remote.ID
	return plan, nil
}
