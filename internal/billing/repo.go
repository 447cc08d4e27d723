package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/miketere/businesscard-sub000/pkg/db/models"
	"github.com/miketere/businesscard-sub000/pkg/pagination"
)

// Repository handles subscription and payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByPaymongoID(ctx context.Context, paymongoSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, params ListPaymentsQuery) ([]models.Payment, *pagination.Cursor, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetUserPaymongoCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// ListPaymentsQuery configures payment history queries.
type ListPaymentsQuery struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindSubscriptionByPaymongoID(ctx context.Context, paymongoSubscriptionID string) (*models.Subscription, error) {
	if paymongoSubscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("paymongo_subscription_id = ?", paymongoSubscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription inserts or overwrites the single row per user. The
// unique index on user_id makes concurrent writers serialize here; the
// last writer wins on conflict.
func (r *repository) UpsertSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan_id",
				"status",
				"paymongo_subscription_id",
				"paymongo_payment_intent_id",
				"current_period_start",
				"current_period_end",
				"expires_at",
				"cancel_at_period_end",
				"cancelled_at",
				"updated_at",
			}),
		}).
		Create(subscription).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListPayments(ctx context.Context, params ListPaymentsQuery) ([]models.Payment, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("user_id = ?", params.UserID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var payments []models.Payment
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&payments).Error; err != nil {
		return nil, nil, err
	}

	if len(payments) > limit {
		next := payments[limit]
		payments = payments[:limit]
		return payments, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return payments, nil, nil
}

func (r *repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) SetUserPaymongoCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("paymongo_customer_id", customerID).Error
}
