package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"docview-paywall/internal/client"
	"docview-paywall/internal/config"
	"docview-paywall/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := client.InitDatabase(config.Database{
		Driver: "sqlite",
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func TestDocumentRepository_SeedAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	require.NoError(t, repo.Seed(ctx))
	require.NoError(t, repo.Seed(ctx), "seeding twice is a no-op")

	doc, err := repo.FindByID(ctx, "doc-premium-001")
	require.NoError(t, err)
	assert.Equal(t, model.AccessTypePaymentRequired, doc.AccessType)
	require.Len(t, doc.Packages, 3)
	assert.Equal(t, "view_once", doc.Packages[0].ID)
	assert.Equal(t, int64(50000), doc.Packages[0].Price)

	pkg, err := repo.FindPackage(ctx, "doc-premium-001", "view_week")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), pkg.Price)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindPackage(ctx, "doc-001", "view_once")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVisitorLinkRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, NewDocumentRepository(db).Seed(ctx))
	repo := NewVisitorLinkRepository(db)

	link, err := repo.FindByToken(ctx, "expired-link")
	require.NoError(t, err)
	assert.True(t, link.ExpiresAt.Before(time.Now()))

	require.NoError(t, repo.Create(ctx, &model.VisitorLink{
		Token:      "share-1",
		DocumentID: "doc-001",
		ExpiresAt:  time.Now().Add(time.Hour),
	}))
	link, err = repo.FindByToken(ctx, "share-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-001", link.DocumentID)

	_, err = repo.FindByToken(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, &model.PaymentTransaction{
		ID: "FAIL-1", SessionID: "s1", DocumentID: "d", PackageID: "p", Amount: 1, Currency: "VND", Provider: "mock", Success: false,
	}))
	require.NoError(t, repo.Create(ctx, &model.PaymentTransaction{
		ID: "TRX-1", SessionID: "s1", DocumentID: "d", PackageID: "p", Amount: 1, Currency: "VND", Provider: "mock", Success: true,
	}))

	ok, err := repo.Exists(ctx, "TRX-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "FAIL-1")
	require.NoError(t, err)
	assert.False(t, ok)

	txns, err := repo.FindBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestGrantRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGrantRepository(newTestDB(t))
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &model.ViewingGrant{
		ID: "g-live", DocumentID: "d", PackageID: "p", TransactionID: "TRX-1", IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.Create(ctx, &model.ViewingGrant{
		ID: "g-old", DocumentID: "d", PackageID: "p", TransactionID: "TRX-0", IssuedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour),
	}))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	g, err := repo.FindByID(ctx, "g-live")
	require.NoError(t, err)
	assert.Equal(t, "TRX-1", g.TransactionID)

	_, err = repo.FindByID(ctx, "g-old")
	assert.ErrorIs(t, err, ErrNotFound)
}
