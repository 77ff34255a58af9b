package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docview-paywall/internal/client"
	"docview-paywall/internal/model"
	"docview-paywall/internal/repository"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	MsgPaymentSuccess = "Thanh toán thành công"
	msgPaymentFailed  = "Thanh toán không thành công: %s. Vui lòng thử lại."

	reasonDeclined    = "giao dịch bị từ chối"
	reasonUnsupported = "phương thức thanh toán không được hỗ trợ"
	reasonTimeout     = "hết thời gian chờ phản hồi từ cổng thanh toán"
	reasonPackage     = "gói xem không tồn tại"
	reasonGeneric     = "không thể kết nối cổng thanh toán"
)

var ErrPaypalUnavailable = errors.New("paypal is not configured")

type PaymentService interface {
	// SubmitPayment charges packageID of documentID. Every failure is
	// reported through the result; it is never retried here.
	SubmitPayment(ctx context.Context, sessionID, documentID, packageID string, details model.PaymentDetails) model.PaymentResult
	CreatePaypalOrder(ctx context.Context, sessionID, documentID, packageID string) (*client.CreateOrderResponse, error)
	// Attempts lists the recorded charge attempts of a session, oldest first.
	Attempts(ctx context.Context, sessionID string) ([]*model.PaymentTransaction, error)
	// Settled reports whether transactionID was recorded as a successful charge.
	Settled(ctx context.Context, transactionID string) (bool, error)
	Methods() []model.PaymentMethod
}

type PaymentConfig struct {
	BaseURL        string
	GatewayTimeout time.Duration // zero means no bound
	PaypalPricing  client.PaypalPricing
}

type paymentServiceImpl struct {
	router          *client.GatewayRouter
	paypalClient    client.PaypalClient
	serviceBaseUrl  string
	gatewayTimeout  time.Duration
	paypalPricing   client.PaypalPricing
	documentRepo    repository.DocumentRepository
	transactionRepo repository.TransactionRepository
	logger          echo.Logger
	now             func() time.Time
}

func NewPaymentService(
	router *client.GatewayRouter,
	paypalClient client.PaypalClient,
	cfg PaymentConfig,
	documentRepo repository.DocumentRepository,
	transactionRepo repository.TransactionRepository,
	logger echo.Logger,
) PaymentService {
	return &paymentServiceImpl{
		router:          router,
		paypalClient:    paypalClient,
		serviceBaseUrl:  strings.TrimRight(cfg.BaseURL, "/"),
		gatewayTimeout:  cfg.GatewayTimeout,
		paypalPricing:   cfg.PaypalPricing,
		documentRepo:    documentRepo,
		transactionRepo: transactionRepo,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *paymentServiceImpl) Methods() []model.PaymentMethod {
	return s.router.Methods()
}

func (s *paymentServiceImpl) SubmitPayment(ctx context.Context, sessionID, documentID, packageID string, details model.PaymentDetails) model.PaymentResult {
	// A charge is not abandoned when the visitor disconnects: the provider may
	// already be moving money, so its answer has to land in the session.
	ctx = context.WithoutCancel(ctx)
	if s.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
	}

	pkg, err := s.documentRepo.FindPackage(ctx, documentID, packageID)
	if err != nil {
		s.logger.Errorf("submit payment session=%s: find package %s/%s: %v", sessionID, documentID, packageID, err)
		return s.failed(string(details.Method), err)
	}

	req := &client.ChargeRequest{
		DocumentID: documentID,
		PackageID:  packageID,
		Amount:     pkg.Price,
		Currency:   pkg.Currency,
		Reference:  sessionID,
		Details:    details,
	}

	resp, err := s.router.Charge(ctx, req)
	if err != nil {
		s.logger.Warnf("payment failed session=%s doc=%s pkg=%s method=%s: %v", sessionID, documentID, packageID, details.Method, err)
		res := s.failed(string(details.Method), err)
		s.record(ctx, sessionID, req, "FAILED-"+uuid.NewString(), res)
		return res
	}

	res := model.PaymentResult{
		Success:       true,
		TransactionID: resp.TransactionID,
		Message:       MsgPaymentSuccess,
		Provider:      resp.Provider,
		ProcessedAt:   s.now(),
	}
	s.logger.Infof("payment succeeded session=%s doc=%s pkg=%s provider=%s trx=%s", sessionID, documentID, packageID, resp.Provider, resp.TransactionID)
	s.record(ctx, sessionID, req, resp.TransactionID, res)
	return res
}

func (s *paymentServiceImpl) failed(provider string, err error) model.PaymentResult {
	return model.PaymentResult{
		Success:     false,
		Message:     fmt.Sprintf(msgPaymentFailed, failureReason(err)),
		Provider:    provider,
		ProcessedAt: s.now(),
	}
}

// record keeps an audit row per attempt. A write failure does not change the
// outcome the visitor sees.
func (s *paymentServiceImpl) record(ctx context.Context, sessionID string, req *client.ChargeRequest, id string, res model.PaymentResult) {
	err := s.transactionRepo.Create(context.WithoutCancel(ctx), &model.PaymentTransaction{
		ID:         id,
		SessionID:  sessionID,
		DocumentID: req.DocumentID,
		PackageID:  req.PackageID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Provider:   res.Provider,
		Success:    res.Success,
		Message:    res.Message,
	})
	if err != nil {
		s.logger.Errorf("record transaction %s: %v", id, err)
	}
}

func (s *paymentServiceImpl) CreatePaypalOrder(ctx context.Context, sessionID, documentID, packageID string) (*client.CreateOrderResponse, error) {
	if s.paypalClient == nil {
		return nil, ErrPaypalUnavailable
	}

	pkg, err := s.documentRepo.FindPackage(ctx, documentID, packageID)
	if err != nil {
		return nil, fmt.Errorf("find package: %w", err)
	}

	amount, currency, err := s.paypalPricing.Convert(pkg.Price, pkg.Currency)
	if err != nil {
		return nil, fmt.Errorf("price package %s for paypal: %w", packageID, err)
	}

	paywallURL := fmt.Sprintf("%s/paywall/%s", s.serviceBaseUrl, sessionID)
	resp, err := s.paypalClient.CreateOrder(ctx, &client.CreateOrderRequest{
		ReferenceID: client.PaypalReferenceID(documentID, packageID),
		CustomID:    sessionID,
		Amount:      amount,
		Currency:    currency,
		ReturnURL:   paywallURL + "?paypal=approved",
		CancelURL:   paywallURL + "?paypal=cancelled",
	})
	if err != nil {
		return nil, fmt.Errorf("paypal api create order: %w", err)
	}

	return resp, nil
}

func (s *paymentServiceImpl) Attempts(ctx context.Context, sessionID string) ([]*model.PaymentTransaction, error) {
	txns, err := s.transactionRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find transactions of session %s: %w", sessionID, err)
	}
	return txns, nil
}

func (s *paymentServiceImpl) Settled(ctx context.Context, transactionID string) (bool, error) {
	ok, err := s.transactionRepo.Exists(ctx, transactionID)
	if err != nil {
		return false, fmt.Errorf("check transaction %s: %w", transactionID, err)
	}
	return ok, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return reasonPackage
	case errors.Is(err, client.ErrUnsupportedMethod):
		return reasonUnsupported
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return reasonTimeout
	case errors.Is(err, client.ErrMockDeclined),
		errors.Is(err, client.ErrMissingNonce),
		errors.Is(err, client.ErrMissingPaypalOrder):
		return reasonDeclined
	default:
		return reasonGeneric
	}
}
