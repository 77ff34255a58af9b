package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docview-paywall/internal/client"
	"docview-paywall/internal/grant"
	"docview-paywall/internal/model"
	"docview-paywall/internal/paywall"
	"docview-paywall/internal/repository"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var (
	ErrSessionNotFound      = errors.New("paywall session not found")
	ErrUnsettledTransaction = errors.New("transaction has no successful charge on record")
)

// AccessDeniedError is returned when a paywall session cannot be opened for
// a document. Details carries what the viewer should render.
type AccessDeniedError struct {
	Details model.AccessDetails
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied (%s): %s", e.Details.Reason, e.Details.Message)
}

type SessionView struct {
	ID        string                `json:"id"`
	VisitorID string                `json:"visitor_id"`
	Methods   []model.PaymentMethod `json:"payment_methods"`
	paywall.Snapshot
}

type PaywallService interface {
	StartSession(ctx context.Context, documentID, visitorID string) (*SessionView, error)
	GetSession(sessionID, visitorID string) (*SessionView, error)
	SelectPackage(sessionID, visitorID, packageID string) (*SessionView, error)
	Confirm(sessionID, visitorID string) (*SessionView, error)
	Back(sessionID, visitorID string) (*SessionView, error)
	CreatePaypalOrder(ctx context.Context, sessionID, visitorID string) (*client.CreateOrderResponse, error)
	SubmitPayment(ctx context.Context, sessionID, visitorID string, details model.PaymentDetails) (*SessionView, error)
	Retry(sessionID, visitorID string) (*SessionView, error)
	ViewDocument(ctx context.Context, sessionID, visitorID string) (*SessionView, error)
	// ListAttempts returns every charge attempt recorded for the session.
	ListAttempts(ctx context.Context, sessionID, visitorID string) ([]*model.PaymentTransaction, error)
	CloseSession(sessionID, visitorID string) error
	// RunJanitor evicts idle sessions and purges expired grants until ctx ends.
	RunJanitor(ctx context.Context, every time.Duration)
}

type session struct {
	id        string
	visitorID string
	flow      *paywall.Flow

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

type paywallServiceImpl struct {
	accessService  AccessService
	paymentService PaymentService
	grantRepo      repository.GrantRepository
	signer         *grant.Signer
	logger         echo.Logger

	viewingWindow time.Duration
	sessionTTL    time.Duration
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewPaywallService(
	accessService AccessService,
	paymentService PaymentService,
	grantRepo repository.GrantRepository,
	signer *grant.Signer,
	viewingWindow time.Duration,
	sessionTTL time.Duration,
	logger echo.Logger,
) PaywallService {
	return &paywallServiceImpl{
		accessService:  accessService,
		paymentService: paymentService,
		grantRepo:      grantRepo,
		signer:         signer,
		logger:         logger,
		viewingWindow:  viewingWindow,
		sessionTTL:     sessionTTL,
		now:            time.Now,
		sessions:       make(map[string]*session),
	}
}

func (s *paywallServiceImpl) StartSession(ctx context.Context, documentID, visitorID string) (*SessionView, error) {
	details := s.accessService.FetchAccessDetails(ctx, documentID)
	if !details.Success {
		return nil, &AccessDeniedError{Details: details}
	}
	if details.AccessType != model.AccessTypePaymentRequired {
		return nil, &AccessDeniedError{Details: denied(MsgInvalidLink)}
	}

	sess := &session{
		id:        uuid.NewString(),
		visitorID: visitorID,
		lastSeen:  s.now(),
	}
	sess.flow = paywall.NewFlow(*details.Document, &sessionSubmitter{payments: s.paymentService, sessionID: sess.id},
		paywall.WithClock(s.now),
		paywall.WithViewingWindow(s.viewingWindow),
		paywall.WithGrantIDs(uuid.NewString),
		paywall.WithGrantIssuer(&grantIssuer{svc: s, visitorID: visitorID}),
	)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Infof("paywall session %s opened doc=%s visitor=%s", sess.id, documentID, visitorID)
	return s.view(sess), nil
}

func (s *paywallServiceImpl) GetSession(sessionID, visitorID string) (*SessionView, error) {
	sess, err := s.lookup(sessionID, visitorID)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *paywallServiceImpl) SelectPackage(sessionID, visitorID, packageID string) (*SessionView, error) {
	return s.apply(sessionID, visitorID, func(f *paywall.Flow) error {
		return f.SelectPackage(packageID)
	})
}

func (s *paywallServiceImpl) Confirm(sessionID, visitorID string) (*SessionView, error) {
	return s.apply(sessionID, visitorID, (*paywall.Flow).Confirm)
}

func (s *paywallServiceImpl) Back(sessionID, visitorID string) (*SessionView, error) {
	return s.apply(sessionID, visitorID, (*paywall.Flow).Back)
}

func (s *paywallServiceImpl) Retry(sessionID, visitorID string) (*SessionView, error) {
	return s.apply(sessionID, visitorID, (*paywall.Flow).Retry)
}

func (s *paywallServiceImpl) SubmitPayment(ctx context.Context, sessionID, visitorID string, details model.PaymentDetails) (*SessionView, error) {
	return s.apply(sessionID, visitorID, func(f *paywall.Flow) error {
		_, err := f.SubmitPayment(ctx, details)
		return err
	})
}

func (s *paywallServiceImpl) ViewDocument(ctx context.Context, sessionID, visitorID string) (*SessionView, error) {
	return s.apply(sessionID, visitorID, func(f *paywall.Flow) error {
		_, err := f.ViewDocument(ctx)
		return err
	})
}

// CreatePaypalOrder opens a PayPal order for the selected package so the
// browser can send the visitor to approve it. Only valid at the gateway step.
func (s *paywallServiceImpl) CreatePaypalOrder(ctx context.Context, sessionID, visitorID string) (*client.CreateOrderResponse, error) {
	sess, err := s.lookup(sessionID, visitorID)
	if err != nil {
		return nil, err
	}

	snap := sess.flow.Snapshot()
	if snap.Step != paywall.StepGateway {
		return nil, fmt.Errorf("%w: at %s, need %s", paywall.ErrInvalidTransition, snap.Step, paywall.StepGateway)
	}

	return s.paymentService.CreatePaypalOrder(ctx, sess.id, snap.Document.ID, snap.SelectedPackage.ID)
}

func (s *paywallServiceImpl) ListAttempts(ctx context.Context, sessionID, visitorID string) ([]*model.PaymentTransaction, error) {
	sess, err := s.lookup(sessionID, visitorID)
	if err != nil {
		return nil, err
	}
	return s.paymentService.Attempts(ctx, sess.id)
}

func (s *paywallServiceImpl) CloseSession(sessionID, visitorID string) error {
	sess, err := s.lookup(sessionID, visitorID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	sess.flow.Close()
	s.logger.Infof("paywall session %s closed", sess.id)
	return nil
}

func (s *paywallServiceImpl) RunJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.evictIdle(s.now()); n > 0 {
				s.logger.Infof("evicted %d idle paywall sessions", n)
			}
			if n, err := s.grantRepo.DeleteExpired(ctx, s.now()); err != nil {
				s.logger.Errorf("purge expired grants: %v", err)
			} else if n > 0 {
				s.logger.Debugf("purged %d expired grants", n)
			}
		}
	}
}

func (s *paywallServiceImpl) evictIdle(now time.Time) int {
	s.mu.Lock()
	var idle []*session
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.sessionTTL {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.flow.Close()
	}
	return len(idle)
}

func (s *paywallServiceImpl) apply(sessionID, visitorID string, op func(*paywall.Flow) error) (*SessionView, error) {
	sess, err := s.lookup(sessionID, visitorID)
	if err != nil {
		return nil, err
	}
	if err := op(sess.flow); err != nil {
		return nil, err
	}
	sess.touch(s.now())
	return s.view(sess), nil
}

func (s *paywallServiceImpl) lookup(sessionID, visitorID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	// another visitor's session is reported as missing
	if !ok || sess.visitorID != visitorID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *paywallServiceImpl) view(sess *session) *SessionView {
	return &SessionView{
		ID:        sess.id,
		VisitorID: sess.visitorID,
		Methods:   s.paymentService.Methods(),
		Snapshot:  sess.flow.Snapshot(),
	}
}

// sessionSubmitter binds the payment service to one session so every
// attempt is recorded against it.
type sessionSubmitter struct {
	payments  PaymentService
	sessionID string
}

func (p *sessionSubmitter) SubmitPayment(ctx context.Context, documentID, packageID string, details model.PaymentDetails) model.PaymentResult {
	return p.payments.SubmitPayment(ctx, p.sessionID, documentID, packageID, details)
}

// grantIssuer signs and stores the grant before the flow reaches
// success_view. Grants are only issued against a charge that was recorded
// as successful.
type grantIssuer struct {
	svc       *paywallServiceImpl
	visitorID string
}

func (i *grantIssuer) IssueGrant(ctx context.Context, g *model.ViewingGrant) error {
	settled, err := i.svc.paymentService.Settled(ctx, g.TransactionID)
	if err != nil {
		return err
	}
	if !settled {
		return fmt.Errorf("%w: %s", ErrUnsettledTransaction, g.TransactionID)
	}

	g.VisitorID = i.visitorID

	token, err := i.svc.signer.Sign(*g)
	if err != nil {
		return err
	}
	g.Token = token

	if err := i.svc.grantRepo.Create(ctx, g); err != nil {
		return fmt.Errorf("store grant: %w", err)
	}

	i.svc.logger.Infof("viewing grant %s issued doc=%s trx=%s expires=%s", g.ID, g.DocumentID, g.TransactionID, g.ExpiresAt.Format(time.RFC3339))
	return nil
}
