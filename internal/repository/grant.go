package repository

import (
	"context"
	"time"

	"docview-paywall/internal/model"

	"gorm.io/gorm"
)

type GrantRepository interface {
	Create(ctx context.Context, grant *model.ViewingGrant) error
	FindByID(ctx context.Context, grantID string) (*model.ViewingGrant, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type grantRepoImpl struct {
	db *gorm.DB
}

func NewGrantRepository(db *gorm.DB) GrantRepository {
	return &grantRepoImpl{
		db: db,
	}
}

func (r *grantRepoImpl) Create(ctx context.Context, grant *model.ViewingGrant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

func (r *grantRepoImpl) FindByID(ctx context.Context, grantID string) (*model.ViewingGrant, error) {
	var grant model.ViewingGrant
	err := r.db.WithContext(ctx).
		Where("id = ?", grantID).
		First(&grant).Error

	if err != nil {
		return nil, notFound(err)
	}

	return &grant, nil
}

func (r *grantRepoImpl) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&model.ViewingGrant{})

	return result.RowsAffected, result.Error
}
