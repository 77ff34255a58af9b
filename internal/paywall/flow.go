// Package paywall holds the step flow a visitor goes through to buy viewing
// access to a document: package selection, confirmation, payment, result and
// the authorized view.
package paywall

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docview-paywall/internal/model"
)

type Step string

const (
	StepSelection    Step = "selection"
	StepConfirmation Step = "confirmation"
	StepGateway      Step = "gateway"
	StepResult       Step = "result"
	StepSuccessView  Step = "success_view"
)

const DefaultViewingWindow = 24 * time.Hour

var (
	ErrInvalidTransition    = errors.New("invalid paywall transition")
	ErrUnknownPackage       = errors.New("package not offered for this document")
	ErrSubmissionInFlight   = errors.New("payment submission already in flight")
	ErrPaymentNotSuccessful = errors.New("payment was not successful")
	ErrInvalidPaymentInput  = errors.New("invalid payment details")
	ErrSessionClosed        = errors.New("paywall session closed")
	ErrStaleResult          = errors.New("result arrived after session moved on")
	ErrGrantInFlight        = errors.New("viewing grant already being issued")
)

// PaymentSubmitter charges the visitor. It never fails with an error: provider
// and network failures come back as a result with Success=false.
type PaymentSubmitter interface {
	SubmitPayment(ctx context.Context, documentID, packageID string, details model.PaymentDetails) model.PaymentResult
}

type Option func(*Flow)

func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

func WithViewingWindow(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.window = d
		}
	}
}

func WithGrantIDs(next func() string) Option {
	return func(f *Flow) { f.grantID = next }
}

// GrantIssuer finishes a grant before the flow enters success_view, e.g. by
// signing and storing it. An error leaves the flow in result.
type GrantIssuer interface {
	IssueGrant(ctx context.Context, g *model.ViewingGrant) error
}

func WithGrantIssuer(issuer GrantIssuer) Option {
	return func(f *Flow) { f.issuer = issuer }
}

// Snapshot is a copy of the flow state safe to hand to callers.
type Snapshot struct {
	Step            Step                  `json:"step"`
	Document        model.Document        `json:"document"`
	SelectedPackage *model.PricingPackage `json:"selected_package,omitempty"`
	Result          *model.PaymentResult  `json:"result,omitempty"`
	Grant           *model.ViewingGrant   `json:"grant,omitempty"`
	Submitting      bool                  `json:"submitting"`
}

// Flow is one visitor's paywall session over one document.
type Flow struct {
	mu sync.Mutex

	document  model.Document
	submitter PaymentSubmitter
	now       func() time.Time
	window    time.Duration
	grantID   func() string
	issuer    GrantIssuer

	step     Step
	selected *model.PricingPackage
	details  *model.PaymentDetails
	result   *model.PaymentResult
	grant    *model.ViewingGrant

	inFlight   bool
	issuing    bool
	generation uint64
	closed     bool
}

func NewFlow(document model.Document, submitter PaymentSubmitter, opts ...Option) *Flow {
	f := &Flow{
		document:  document,
		submitter: submitter,
		now:       time.Now,
		window:    DefaultViewingWindow,
		step:      StepSelection,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Snapshot{
		Step:       f.step,
		Document:   f.document,
		Submitting: f.inFlight,
	}
	if f.selected != nil {
		pkg := *f.selected
		s.SelectedPackage = &pkg
	}
	if f.result != nil {
		res := *f.result
		s.Result = &res
	}
	if f.grant != nil {
		g := *f.grant
		s.Grant = &g
	}
	return s
}

// SelectPackage picks one of the document's offered packages and moves to
// confirmation.
func (f *Flow) SelectPackage(packageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StepSelection); err != nil {
		return err
	}

	pkg, ok := f.document.Offers(packageID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPackage, packageID)
	}
	f.selected = &pkg
	f.step = StepConfirmation
	return nil
}

func (f *Flow) Confirm() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StepConfirmation); err != nil {
		return err
	}
	f.step = StepGateway
	return nil
}

// Back returns from confirmation to selection so a different package can be
// picked.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StepConfirmation); err != nil {
		return err
	}
	f.selected = nil
	f.step = StepSelection
	return nil
}

// SubmitPayment charges the selected package and always lands in the result
// step. The lock is not held while the submitter runs; a second call in the
// meantime is rejected. A result that comes back after the session was closed
// is dropped.
func (f *Flow) SubmitPayment(ctx context.Context, details model.PaymentDetails) (model.PaymentResult, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return model.PaymentResult{}, ErrSubmissionInFlight
	}
	if err := f.expect(StepGateway); err != nil {
		f.mu.Unlock()
		return model.PaymentResult{}, err
	}
	if details.Method == "" {
		f.mu.Unlock()
		return model.PaymentResult{}, fmt.Errorf("%w: payment method is required", ErrInvalidPaymentInput)
	}

	f.inFlight = true
	f.details = &details
	gen := f.generation
	documentID, packageID := f.document.ID, f.selected.ID
	f.mu.Unlock()

	res := f.submitter.SubmitPayment(ctx, documentID, packageID, details)
	if res.Success && res.TransactionID == "" {
		res.Success = false
		res.Message = "Thanh toán không thành công: không nhận được mã giao dịch."
	}
	if res.ProcessedAt.IsZero() {
		res.ProcessedAt = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.inFlight = false
	if f.closed || f.generation != gen || f.step != StepGateway {
		return res, ErrStaleResult
	}
	f.details = nil
	f.result = &res
	f.step = StepResult
	return res, nil
}

// Retry goes back to the gateway after a failed payment. The selected package
// is kept; payment details must be entered again.
func (f *Flow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StepResult); err != nil {
		return err
	}
	if f.result.Success {
		return fmt.Errorf("%w: payment already succeeded", ErrInvalidTransition)
	}
	f.details = nil
	f.result = nil
	f.step = StepGateway
	return nil
}

// ViewDocument turns a successful payment into a viewing grant that expires
// after the viewing window. The issuer runs without the lock held; the flow
// only moves to success_view if nothing else happened to it meanwhile.
func (f *Flow) ViewDocument(ctx context.Context) (model.ViewingGrant, error) {
	f.mu.Lock()
	if f.issuing {
		f.mu.Unlock()
		return model.ViewingGrant{}, ErrGrantInFlight
	}
	if err := f.expect(StepResult); err != nil {
		f.mu.Unlock()
		return model.ViewingGrant{}, err
	}
	if !f.result.Success {
		f.mu.Unlock()
		return model.ViewingGrant{}, ErrPaymentNotSuccessful
	}

	issued := f.now()
	g := model.ViewingGrant{
		DocumentID:      f.document.ID,
		PackageID:       f.selected.ID,
		TransactionID:   f.result.TransactionID,
		DownloadAllowed: f.selected.DownloadAllowed,
		IssuedAt:        issued,
		ExpiresAt:       issued.Add(f.window),
	}
	if f.grantID != nil {
		g.ID = f.grantID()
	}
	f.issuing = true
	gen := f.generation
	f.mu.Unlock()

	var issueErr error
	if f.issuer != nil {
		issueErr = f.issuer.IssueGrant(ctx, &g)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.issuing = false
	if issueErr != nil {
		return model.ViewingGrant{}, fmt.Errorf("issue grant: %w", issueErr)
	}
	if f.closed || f.generation != gen || f.step != StepResult {
		return model.ViewingGrant{}, ErrStaleResult
	}
	f.grant = &g
	f.step = StepSuccessView
	return g, nil
}

// Close ends the session. Any in-flight result is discarded when it lands.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.generation++
	f.details = nil
}

func (f *Flow) expect(step Step) error {
	if f.closed {
		return ErrSessionClosed
	}
	if f.step != step {
		return fmt.Errorf("%w: at %s, need %s", ErrInvalidTransition, f.step, step)
	}
	return nil
}
