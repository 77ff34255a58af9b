package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docview-paywall/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

type DocumentRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, documentID string) (*model.Document, error)
	FindPackage(ctx context.Context, documentID, packageID string) (*model.PricingPackage, error)
}

type documentRepoImpl struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepoImpl{
		db: db,
	}
}

// Seed loads the demo catalogue. Existing rows are left alone.
func (r *documentRepoImpl) Seed(ctx context.Context) error {
	documents := []model.Document{
		{
			ID:          "doc-001",
			Title:       "Hợp đồng dịch vụ số 2025/HD-01",
			Description: "Hợp đồng cung cấp dịch vụ lưu trữ tài liệu",
			Owner:       "Phòng Pháp chế",
			PageCount:   12,
			FileType:    "pdf",
			AccessType:  model.AccessTypeVisitor,
		},
		{
			ID:          "doc-premium-001",
			Title:       "Báo cáo phân tích thị trường Q4/2025",
			Description: "Báo cáo chuyên sâu về xu hướng thị trường",
			Owner:       "Phòng Nghiên cứu",
			PageCount:   48,
			FileType:    "pdf",
			AccessType:  model.AccessTypePaymentRequired,
		},
	}
	packages := []model.PricingPackage{
		{DocumentID: "doc-premium-001", ID: "view_once", Name: "Xem 1 lần", Description: "Xem tài liệu trong 24 giờ", Price: 50000, Currency: "VND"},
		{DocumentID: "doc-premium-001", ID: "view_week", Name: "Xem 7 ngày", Description: "Xem không giới hạn trong 7 ngày", Price: 150000, Currency: "VND"},
		{DocumentID: "doc-premium-001", ID: "download", Name: "Tải về", Description: "Xem và tải bản PDF có watermark", Price: 200000, Currency: "VND", DownloadAllowed: true},
	}

	now := time.Now()
	links := []model.VisitorLink{
		{Token: "visitor-abc123", DocumentID: "doc-001", VisitorEmail: "khach@example.com", ExpiresAt: now.Add(48 * time.Hour)},
		{Token: "expired-link", DocumentID: "doc-001", VisitorEmail: "khach@example.com", ExpiresAt: now.Add(-time.Hour)},
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&documents).Error; err != nil {
			return fmt.Errorf("seed documents: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&packages).Error; err != nil {
			return fmt.Errorf("seed packages: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
			return fmt.Errorf("seed visitor links: %w", err)
		}
		return nil
	})
}

func (r *documentRepoImpl) FindByID(ctx context.Context, documentID string) (*model.Document, error) {
	var document model.Document
	err := r.db.WithContext(ctx).
		Preload("Packages", func(db *gorm.DB) *gorm.DB {
			return db.Order("price ASC")
		}).
		Where("id = ?", documentID).
		First(&document).Error

	if err != nil {
		return nil, notFound(err)
	}

	return &document, nil
}

func (r *documentRepoImpl) FindPackage(ctx context.Context, documentID, packageID string) (*model.PricingPackage, error) {
	var pkg model.PricingPackage
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND id = ?", documentID, packageID).
		First(&pkg).Error

	if err != nil {
		return nil, notFound(err)
	}

	return &pkg, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
