package repository

import (
	"context"

	"docview-paywall/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.PaymentTransaction) error
	Exists(ctx context.Context, transactionID string) (bool, error)
	FindBySession(ctx context.Context, sessionID string) ([]*model.PaymentTransaction, error)
}

type transactionRepoImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepoImpl{
		db: db,
	}
}

func (r *transactionRepoImpl) Create(ctx context.Context, txn *model.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepoImpl) Exists(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("id = ?", transactionID).
		Where("success = ?", true).
		Count(&count).Error

	return count > 0, err
}

func (r *transactionRepoImpl) FindBySession(ctx context.Context, sessionID string) ([]*model.PaymentTransaction, error) {
	var txns []*model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&txns).Error

	if err != nil {
		return nil, err
	}

	return txns, nil
}
