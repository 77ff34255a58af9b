package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docview-paywall/internal/client"
	"docview-paywall/internal/config"
	"docview-paywall/internal/grant"
	"docview-paywall/internal/handler"
	"docview-paywall/internal/logger"
	"docview-paywall/internal/middleware"
	"docview-paywall/internal/model"
	"docview-paywall/internal/repository"
	"docview-paywall/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := client.InitDatabase(config.Database{
		Driver: "sqlite",
		URL:    fmt.Sprintf("file:server_%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	documents := repository.NewDocumentRepository(db)
	grants := repository.NewGrantRepository(db)
	require.NoError(t, documents.Seed(context.Background()))

	log := logger.Discard()
	signer := grant.NewSigner("server-secret", "docview-test")
	router := client.NewGatewayRouter()
	router.Register(model.PaymentMethodMock, client.NewMockGateway(client.AlwaysFail))

	accessService := service.NewAccessService(documents, repository.NewVisitorLinkRepository(db), grants, signer, service.LinkPolicy{DefaultTTL: time.Hour, MaxTTL: 24 * time.Hour}, log)
	paymentService := service.NewPaymentService(router, nil, service.PaymentConfig{BaseURL: "http://localhost:8080"}, documents, repository.NewTransactionRepository(db), log)
	paywallService := service.NewPaywallService(accessService, paymentService, grants, signer, time.Hour, time.Minute, log)

	opts.Logger = log
	return NewServer(handler.NewAccessHandler(accessService, time.Second), paywallService, opts)
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.VisitorHeader))
}

func TestServer_RoutesAccess(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/access/expired-link", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), service.MsgInvalidLink)
}

func TestServer_PaymentRateLimited(t *testing.T) {
	srv := newTestServer(t, Options{PaymentRateLimit: 1})

	var codes []int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/paywall/sessions/unknown/payment", strings.NewReader(`{"method":"mock"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusNotFound, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

func TestServer_ShareLinkNeedsKey(t *testing.T) {
	mint := func(srv *Server, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-001/links", strings.NewReader(`{"visitor_email":"guest@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(ShareKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	srv := newTestServer(t, Options{ShareKey: "s3cret"})
	assert.Equal(t, http.StatusBadRequest, mint(srv, "").Code)
	assert.Equal(t, http.StatusUnauthorized, mint(srv, "wrong").Code)
	rec := mint(srv, "s3cret")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"document_id":"doc-001"`)

	unmounted := newTestServer(t, Options{})
	assert.Equal(t, http.StatusNotFound, mint(unmounted, "s3cret").Code)
}
