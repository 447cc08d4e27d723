package entitlements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miketere/businesscard-sub000/pkg/db/models"
)

// Repository counts the resources the feature gate limits.
type Repository interface {
	CountCards(ctx context.Context, userID uuid.UUID) (int64, error)
	CountContacts(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an entitlements repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountCards(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BusinessCard{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *repository) CountContacts(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Contact{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
