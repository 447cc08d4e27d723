package plans

import (
	"context"

	"gorm.io/gorm"

	"github.com/miketere/businesscard-sub000/pkg/db/models"
	"github.com/miketere/businesscard-sub000/pkg/enums"
)

// Repository handles plan catalog persistence.
type Repository interface {
	List(ctx context.Context) ([]models.Plan, error)
	FindByID(ctx context.Context, id string) (*models.Plan, error)
	FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error)
	FindByPaymongoPlanID(ctx context.Context, paymongoPlanID string) (*models.Plan, error)
	FindDefault(ctx context.Context) (*models.Plan, error)
	SetPaymongoPlanID(ctx context.Context, id, paymongoPlanID string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Order("amount_cents ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("tier = ?", tier).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindByPaymongoPlanID(ctx context.Context, paymongoPlanID string) (*models.Plan, error) {
	if paymongoPlanID == "" {
		return nil, nil
	}
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("paymongo_plan_id = ?", paymongoPlanID).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindDefault(ctx context.Context) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("is_default").
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) SetPaymongoPlanID(ctx context.Context, id, paymongoPlanID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Plan{}).
		Where("id = ?", id).
		Update("paymongo_plan_id", paymongoPlanID).Error
}
