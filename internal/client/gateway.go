package client

import (
	"context"
	"errors"
	"fmt"

	"docview-paywall/internal/model"
)

var ErrUnsupportedMethod = errors.New("unsupported payment method")

type ChargeRequest struct {
	DocumentID string
	PackageID  string
	Amount     int64 // currency minor units
	Currency   string
	Reference  string // our session id, passed to providers that accept one
	Details    model.PaymentDetails
}

type ChargeResponse struct {
	TransactionID string
	Provider      string
}

// PaymentGateway charges one package purchase. A returned error means the
// payment did not go through.
type PaymentGateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)
}

// GatewayRouter picks a gateway by the payment method the visitor chose.
type GatewayRouter struct {
	gateways map[model.PaymentMethod]PaymentGateway
}

func NewGatewayRouter() *GatewayRouter {
	return &GatewayRouter{gateways: make(map[model.PaymentMethod]PaymentGateway)}
}

func (r *GatewayRouter) Register(method model.PaymentMethod, gw PaymentGateway) {
	r.gateways[method] = gw
}

func (r *GatewayRouter) Methods() []model.PaymentMethod {
	methods := make([]model.PaymentMethod, 0, len(r.gateways))
	for _, m := range []model.PaymentMethod{model.PaymentMethodCard, model.PaymentMethodPaypal, model.PaymentMethodMock} {
		if _, ok := r.gateways[m]; ok {
			methods = append(methods, m)
		}
	}
	return methods
}

func (r *GatewayRouter) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	gw, ok := r.gateways[req.Details.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Details.Method)
	}
	return gw.Charge(ctx, req)
}
