package client

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome decides whether a mock charge succeeds.
type Outcome interface {
	Approve(req *ChargeRequest) bool
}

type OutcomeFunc func(req *ChargeRequest) bool

func (f OutcomeFunc) Approve(req *ChargeRequest) bool { return f(req) }

var (
	AlwaysSucceed Outcome = OutcomeFunc(func(*ChargeRequest) bool { return true })
	AlwaysFail    Outcome = OutcomeFunc(func(*ChargeRequest) bool { return false })
)

type randomOutcome struct {
	mu   sync.Mutex
	rng  *rand.Rand
	rate float64
}

// NewRandomOutcome approves roughly rate of all charges. Demo use only; tests
// should use AlwaysSucceed/AlwaysFail or a fixed seed.
func NewRandomOutcome(rate float64, seed int64) Outcome {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &randomOutcome{
		rng:  rand.New(rand.NewSource(seed)),
		rate: rate,
	}
}

func (o *randomOutcome) Approve(*ChargeRequest) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Float64() < o.rate
}

var ErrMockDeclined = errors.New("payment declined by mock gateway")

type MockGateway struct {
	outcome Outcome
	delay   time.Duration
	nextID  func() string
}

type MockOption func(*MockGateway)

func WithMockDelay(d time.Duration) MockOption {
	return func(g *MockGateway) { g.delay = d }
}

func WithTransactionIDs(next func() string) MockOption {
	return func(g *MockGateway) { g.nextID = next }
}

func NewMockGateway(outcome Outcome, opts ...MockOption) *MockGateway {
	g := &MockGateway{
		outcome: outcome,
		nextID: func() string {
			return "TRX-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if !g.outcome.Approve(req) {
		return nil, ErrMockDeclined
	}
	return &ChargeResponse{
		TransactionID: g.nextID(),
		Provider:      "mock",
	}, nil
}
