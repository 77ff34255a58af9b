package repository

import (
	"context"

	"docview-paywall/internal/model"

	"gorm.io/gorm"
)

type VisitorLinkRepository interface {
	Create(ctx context.Context, link *model.VisitorLink) error
	FindByToken(ctx context.Context, token string) (*model.VisitorLink, error)
}

type visitorLinkRepoImpl struct {
	db *gorm.DB
}

func NewVisitorLinkRepository(db *gorm.DB) VisitorLinkRepository {
	return &visitorLinkRepoImpl{
		db: db,
	}
}

func (r *visitorLinkRepoImpl) Create(ctx context.Context, link *model.VisitorLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *visitorLinkRepoImpl) FindByToken(ctx context.Context, token string) (*model.VisitorLink, error) {
	var link model.VisitorLink
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&link).Error

	if err != nil {
		return nil, notFound(err)
	}

	return &link, nil
}
