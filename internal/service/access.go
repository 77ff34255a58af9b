package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"docview-paywall/internal/grant"
	"docview-paywall/internal/model"
	"docview-paywall/internal/repository"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// User-facing messages. The viewer renders these verbatim.
const (
	MsgInvalidLink       = "đường dẫn không hợp lệ hoặc đã hết hạn"
	MsgUnsupportedID     = "mã tài liệu không đúng định dạng được hỗ trợ"
	MsgLinkOnly          = "tài liệu này chỉ có thể xem qua đường dẫn chia sẻ"
	MsgTransientError    = "không thể tải thông tin tài liệu, vui lòng thử lại sau"
	MsgGrantInvalid      = "quyền xem tài liệu đã hết hạn hoặc không hợp lệ"
	defaultVisitorLabel  = "Khách"
	watermarkTimeLayout  = "02/01/2006 15:04"
	watermarkSeparator   = " • "
	maxWatermarkLabelLen = 64
)

var documentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,63}$`)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrNotShareable       = errors.New("paywalled documents cannot be shared by link")
	ErrInvalidLinkRequest = errors.New("invalid visitor link request")
)

// LinkPolicy bounds the lifetime of minted share links.
type LinkPolicy struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

type VisitorLinkRequest struct {
	VisitorEmail    string
	DownloadAllowed bool
	TTL             time.Duration // zero picks the policy default
}

type AccessService interface {
	// FetchAccessDetails resolves a visitor link token or a document id. It
	// never returns an error; failures come back with Success=false.
	FetchAccessDetails(ctx context.Context, id string) model.AccessDetails
	// VerifyGrant resolves a viewing grant token issued by the paywall.
	VerifyGrant(ctx context.Context, token string) model.AccessDetails
	// CreateVisitorLink mints a time-boxed share link for a link-only document.
	CreateVisitorLink(ctx context.Context, documentID string, req VisitorLinkRequest) (*model.VisitorLink, error)
}

type accessServiceImpl struct {
	documentRepo repository.DocumentRepository
	linkRepo     repository.VisitorLinkRepository
	grantRepo    repository.GrantRepository
	signer       *grant.Signer
	linkPolicy   LinkPolicy
	logger       echo.Logger
	now          func() time.Time
}

func NewAccessService(
	documentRepo repository.DocumentRepository,
	linkRepo repository.VisitorLinkRepository,
	grantRepo repository.GrantRepository,
	signer *grant.Signer,
	linkPolicy LinkPolicy,
	logger echo.Logger,
) AccessService {
	return &accessServiceImpl{
		documentRepo: documentRepo,
		linkRepo:     linkRepo,
		grantRepo:    grantRepo,
		signer:       signer,
		linkPolicy:   linkPolicy,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *accessServiceImpl) FetchAccessDetails(ctx context.Context, id string) model.AccessDetails {
	if !documentIDPattern.MatchString(id) {
		return denied(MsgUnsupportedID)
	}

	link, err := s.linkRepo.FindByToken(ctx, id)
	switch {
	case err == nil:
		return s.visitorAccess(ctx, link)
	case !errors.Is(err, repository.ErrNotFound):
		s.logger.Errorf("find visitor link %s: %v", id, err)
		return transient()
	}

	document, err := s.documentRepo.FindByID(ctx, id)
	if err != nil {
		return s.lookupFailure(id, err)
	}

	if document.AccessType != model.AccessTypePaymentRequired {
		return denied(MsgLinkOnly)
	}

	return model.AccessDetails{
		Success:    true,
		AccessType: model.AccessTypePaymentRequired,
		Document:   document,
		Packages:   document.Packages,
	}
}

func (s *accessServiceImpl) visitorAccess(ctx context.Context, link *model.VisitorLink) model.AccessDetails {
	now := s.now()
	if !now.Before(link.ExpiresAt) {
		return denied(MsgInvalidLink)
	}

	document, err := s.documentRepo.FindByID(ctx, link.DocumentID)
	if err != nil {
		return s.lookupFailure(link.DocumentID, err)
	}

	expiresAt := link.ExpiresAt
	return model.AccessDetails{
		Success:         true,
		AccessType:      model.AccessTypeVisitor,
		Document:        document,
		ExpiresAt:       &expiresAt,
		Watermark:       Watermark(link.VisitorEmail, document.ID, now),
		DownloadAllowed: link.DownloadAllowed,
	}
}

func (s *accessServiceImpl) VerifyGrant(ctx context.Context, token string) model.AccessDetails {
	claims, err := s.signer.Parse(token)
	if err != nil {
		s.logger.Debugf("reject grant token: %v", err)
		return denied(MsgGrantInvalid)
	}

	g, err := s.grantRepo.FindByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return denied(MsgGrantInvalid)
		}
		s.logger.Errorf("find grant %s: %v", claims.ID, err)
		return transient()
	}

	now := s.now()
	if g.Expired(now) || g.DocumentID != claims.DocumentID {
		return denied(MsgGrantInvalid)
	}

	document, err := s.documentRepo.FindByID(ctx, g.DocumentID)
	if err != nil {
		return s.lookupFailure(g.DocumentID, err)
	}

	expiresAt := g.ExpiresAt
	return model.AccessDetails{
		Success:         true,
		AccessType:      model.AccessTypePurchased,
		Document:        document,
		ExpiresAt:       &expiresAt,
		Watermark:       Watermark(g.VisitorID, document.ID, now),
		DownloadAllowed: g.DownloadAllowed,
	}
}

func (s *accessServiceImpl) CreateVisitorLink(ctx context.Context, documentID string, req VisitorLinkRequest) (*model.VisitorLink, error) {
	if !documentIDPattern.MatchString(documentID) {
		return nil, fmt.Errorf("%w: document id %q", ErrInvalidLinkRequest, documentID)
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = s.linkPolicy.DefaultTTL
	}
	if ttl <= 0 || (s.linkPolicy.MaxTTL > 0 && ttl > s.linkPolicy.MaxTTL) {
		return nil, fmt.Errorf("%w: lifetime %s not in (0, %s]", ErrInvalidLinkRequest, ttl, s.linkPolicy.MaxTTL)
	}
	if req.VisitorEmail != "" {
		if _, err := mail.ParseAddress(req.VisitorEmail); err != nil {
			return nil, fmt.Errorf("%w: visitor email: %v", ErrInvalidLinkRequest, err)
		}
	}

	document, err := s.documentRepo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("find document %s: %w", documentID, err)
	}
	if document.AccessType != model.AccessTypeVisitor {
		return nil, ErrNotShareable
	}

	link := &model.VisitorLink{
		Token:           "v-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		DocumentID:      document.ID,
		VisitorEmail:    req.VisitorEmail,
		DownloadAllowed: req.DownloadAllowed,
		ExpiresAt:       s.now().Add(ttl),
	}
	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("create visitor link: %w", err)
	}

	s.logger.Infof("visitor link %s minted doc=%s expires=%s", link.Token, link.DocumentID, link.ExpiresAt.Format(time.RFC3339))
	return link, nil
}

func (s *accessServiceImpl) lookupFailure(documentID string, err error) model.AccessDetails {
	if errors.Is(err, repository.ErrNotFound) {
		return denied(MsgInvalidLink)
	}
	s.logger.Errorf("find document %s: %v", documentID, err)
	return transient()
}

func denied(msg string) model.AccessDetails {
	return model.AccessDetails{
		Success: false,
		Reason:  model.ReasonAccessDenied,
		Message: msg,
	}
}

func transient() model.AccessDetails {
	return model.AccessDetails{
		Success: false,
		Reason:  model.ReasonTransientError,
		Message: MsgTransientError,
	}
}

// Watermark is the text overlaid on every page shown to a guest.
func Watermark(visitor, documentID string, at time.Time) string {
	if visitor == "" {
		visitor = defaultVisitorLabel
	}
	if r := []rune(visitor); len(r) > maxWatermarkLabelLen {
		visitor = string(r[:maxWatermarkLabelLen])
	}
	return fmt.Sprintf("%s%s%s%s%s", visitor, watermarkSeparator, documentID, watermarkSeparator, at.Format(watermarkTimeLayout))
}
