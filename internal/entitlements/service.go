package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/miketere/businesscard-sub000/pkg/db/models"
	"github.com/miketere/businesscard-sub000/pkg/enums"
	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
	"github.com/miketere/businesscard-sub000/pkg/logger"
)

// Unlimited marks a limit with no ceiling.
const Unlimited = -1

// Snapshot is the effective plan a user's requests are judged against.
// Users without a live subscription resolve to the default plan.
type Snapshot struct {
	PlanID         string    `json:"planId"`
	PlanName       string    `json:"planName"`
	Tier           string    `json:"tier"`
	Active         bool      `json:"active"`
	ExpiresAt      time.Time `json:"expiresAt,omitzero"`
	MaxCards       int       `json:"maxCards"`
	MaxContacts    int       `json:"maxContacts"`
	Analytics      bool      `json:"analytics"`
	CustomBranding bool      `json:"customBranding"`
	Integrations   bool      `json:"integrations"`
	Features       []string  `json:"features"`
}

// Decision is a single gate verdict. Callers act on Allowed; Reason is for
// the user-facing message.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Limit   int    `json:"limit"`
	Used    int64  `json:"used"`
}

type subscriptionSource interface {
	FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type catalog interface {
	Get(ctx context.Context, id string) (*models.Plan, error)
	GetDefault(ctx context.Context) (*models.Plan, error)
}

// ServiceParams groups dependencies for the feature gate.
type ServiceParams struct {
	Repo          Repository
	Subscriptions subscriptionSource
	Catalog       catalog
	Logger        *logger.Logger
	Now           func() time.Time
}

// Service answers "what may this user do right now". Gate checks never
// fail open: if state cannot be resolved the request is denied, and the
// underlying error is logged rather than returned.
type Service struct {
	repo          Repository
	subscriptions subscriptionSource
	catalog       catalog
	logger        *logger.Logger
	now           func() time.Time
}

// NewService builds a feature gate with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Subscriptions == nil {
		return nil, errors.New("subscription source is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("plan catalog is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:          params.Repo,
		subscriptions: params.Subscriptions,
		catalog:       params.Catalog,
		logger:        params.Logger,
		now:           now,
	}, nil
}

// Snapshot resolves the user's effective plan.
func (s *Service) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	subscription, err := s.subscriptions.FindSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "subscription lookup failed")
	}

	if subscription == nil || !s.grantsAccess(subscription) {
		plan, err := s.catalog.GetDefault(ctx)
		if err != nil {
			return nil, err
		}
		return snapshotFromPlan(plan, false, time.Time{}), nil
	}

	plan, err := s.catalog.Get(ctx, subscription.PlanID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Plan retired from the catalog while the subscription lives
			// on. Fall back to the default rather than locking the user out
			// of everything.
			s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
				"user_id": userID.String(),
				"plan_id": subscription.PlanID,
			}), "subscription references a retired plan, using default entitlements")
			plan, err = s.catalog.GetDefault(ctx)
		}
		if err != nil {
			return nil, err
		}
	}
	return snapshotFromPlan(plan, true, subscription.ExpiresAt), nil
}

// CanCreateCard reports whether the user may create another business card.
func (s *Service) CanCreateCard(ctx context.Context, userID uuid.UUID) Decision {
	return s.judge(ctx, userID, "card",
		func(snap *Snapshot) int { return snap.MaxCards },
		s.repo.CountCards)
}

// CanAddContact reports whether the user may save another contact.
func (s *Service) CanAddContact(ctx context.Context, userID uuid.UUID) Decision {
	return s.judge(ctx, userID, "contact",
		func(snap *Snapshot) int { return snap.MaxContacts },
		s.repo.CountContacts)
}

func (s *Service) judge(ctx context.Context, userID uuid.UUID, resource string, limitOf func(*Snapshot) int, count func(context.Context, uuid.UUID) (int64, error)) Decision {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		s.logger.Error(s.logger.WithField(ctx, "user_id", userID.String()), "entitlement snapshot failed, denying", err)
		return Decision{Allowed: false, Reason: "entitlements are temporarily unavailable"}
	}

	limit := limitOf(snap)
	if limit == Unlimited {
		return Decision{Allowed: true, Limit: Unlimited}
	}

	used, err := count(ctx, userID)
	if err != nil {
		s.logger.Error(s.logger.WithField(ctx, "user_id", userID.String()), "entitlement count failed, denying", err)
		return Decision{Allowed: false, Reason: "entitlements are temporarily unavailable", Limit: limit}
	}

	if used >= int64(limit) {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("the %s plan allows %d %ss", snap.PlanName, limit, resource),
			Limit:   limit,
			Used:    used,
		}
	}
	return Decision{Allowed: true, Limit: limit, Used: used}
}

// grantsAccess reports whether the subscription row still confers its plan.
// Only an active row with time remaining does; past_due, unpaid, and
// cancelled rows all drop to the free tier immediately.
func (s *Service) grantsAccess(subscription *models.Subscription) bool {
	if subscription.Status != enums.SubscriptionStatusActive {
		return false
	}
	return subscription.ExpiresAt.After(s.now().UTC())
}

func snapshotFromPlan(plan *models.Plan, active bool, expiresAt time.Time) *Snapshot {
	features := make([]string, len(plan.Features))
	copy(features, plan.Features)
	return &Snapshot{
		PlanID:         plan.ID,
		PlanName:       plan.DisplayName,
		Tier:           plan.Tier.String(),
		Active:         active,
		ExpiresAt:      expiresAt,
		MaxCards:       plan.MaxCards,
		MaxContacts:    plan.MaxContacts,
		Analytics:      plan.Analytics,
		CustomBranding: plan.CustomBranding,
		Integrations:   plan.Integrations,
		Features:       features,
	}
}
