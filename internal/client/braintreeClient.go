package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docview-paywall/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

var ErrMissingNonce = errors.New("card payment requires a payment method nonce")

// --- INTERFACE ---

type BraintreeClient interface {
	// ChargeNonce charges a one-time payment method nonce from the browser
	// drop-in for amount (major units) and returns the transaction id.
	ChargeNonce(ctx context.Context, nonce string, amount decimal.Decimal, orderID string) (string, error)
}

// --- IMPLEMENTATION ---

type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

// NewBraintreeClient initializes the Braintree SDK gateway
func NewBraintreeClient(cfg *config.Braintree) BraintreeClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

func (c *braintreeClientImpl) ChargeNonce(ctx context.Context, nonce string, amount decimal.Decimal, orderID string) (string, error) {
	scale := int32(2)
	if amount.Exponent() == 0 {
		scale = 0
	}
	unscaled := amount.Shift(scale).IntPart()

	req := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             braintree.NewDecimal(unscaled, int(scale)),
		PaymentMethodNonce: nonce,
		OrderId:            orderID,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transaction creation failed: %w", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined || tx.Status == braintree.TransactionStatusGatewayRejected {
		return "", fmt.Errorf("transaction declined by processor: %s", tx.ProcessorResponseText)
	}

	return tx.Id, nil
}

// BraintreeGateway charges card purchases through Braintree.
type BraintreeGateway struct {
	client BraintreeClient
}

func NewBraintreeGateway(client BraintreeClient) *BraintreeGateway {
	return &BraintreeGateway{client: client}
}

func (g *BraintreeGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if strings.TrimSpace(req.Details.Nonce) == "" {
		return nil, ErrMissingNonce
	}

	txID, err := g.client.ChargeNonce(ctx, req.Details.Nonce, MajorUnits(req.Amount, req.Currency), req.Reference)
	if err != nil {
		return nil, fmt.Errorf("braintree charge: %w", err)
	}

	return &ChargeResponse{
		TransactionID: txID,
		Provider:      "braintree",
	}, nil
}

// MajorUnits converts a minor-unit amount to its display amount. VND and JPY
// have no minor unit.
func MajorUnits(amount int64, currency string) decimal.Decimal {
	switch strings.ToUpper(currency) {
	case "VND", "JPY", "KRW":
		return decimal.NewFromInt(amount)
	default:
		return decimal.New(amount, -2)
	}
}
