package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docview-paywall/internal/config"
	"docview-paywall/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chargeReq(method model.PaymentMethod) *ChargeRequest {
	return &ChargeRequest{
		DocumentID: "doc-premium-001",
		PackageID:  "view_once",
		Amount:     50000,
		Currency:   "VND",
		Reference:  "session-1",
		Details:    model.PaymentDetails{Method: method},
	}
}

func TestMockGateway_Outcomes(t *testing.T) {
	ok := NewMockGateway(AlwaysSucceed, WithTransactionIDs(func() string { return "TRX-123" }))
	resp, err := ok.Charge(context.Background(), chargeReq(model.PaymentMethodMock))
	require.NoError(t, err)
	assert.Equal(t, &ChargeResponse{TransactionID: "TRX-123", Provider: "mock"}, resp)

	fail := NewMockGateway(AlwaysFail)
	_, err = fail.Charge(context.Background(), chargeReq(model.PaymentMethodMock))
	assert.ErrorIs(t, err, ErrMockDeclined)
}

func TestMockGateway_DefaultTransactionID(t *testing.T) {
	resp, err := NewMockGateway(AlwaysSucceed).Charge(context.Background(), chargeReq(model.PaymentMethodMock))
	require.NoError(t, err)
	assert.Regexp(t, `^TRX-[0-9A-F]{12}$`, resp.TransactionID)
}

func TestMockGateway_DelayHonoursContext(t *testing.T) {
	g := NewMockGateway(AlwaysSucceed, WithMockDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Charge(ctx, chargeReq(model.PaymentMethodMock))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRandomOutcome_SeededIsDeterministic(t *testing.T) {
	a := NewRandomOutcome(0.5, 42)
	b := NewRandomOutcome(0.5, 42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Approve(nil), b.Approve(nil))
	}

	assert.False(t, NewRandomOutcome(0, 7).Approve(nil))
	assert.True(t, NewRandomOutcome(1, 7).Approve(nil))
}

func TestGatewayRouter(t *testing.T) {
	r := NewGatewayRouter()
	r.Register(model.PaymentMethodMock, NewMockGateway(AlwaysSucceed))

	_, err := r.Charge(context.Background(), chargeReq(model.PaymentMethodMock))
	require.NoError(t, err)

	_, err = r.Charge(context.Background(), chargeReq(model.PaymentMethodCard))
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.Equal(t, []model.PaymentMethod{model.PaymentMethodMock}, r.Methods())
}

func TestMajorUnits(t *testing.T) {
	assert.True(t, decimal.NewFromInt(50000).Equal(MajorUnits(50000, "VND")))
	assert.Equal(t, "9.99", MajorUnits(999, "USD").StringFixed(2))
}

type fakeBraintree struct {
	nonce   string
	amount  decimal.Decimal
	orderID string
	err     error
}

func (f *fakeBraintree) ChargeNonce(_ context.Context, nonce string, amount decimal.Decimal, orderID string) (string, error) {
	f.nonce, f.amount, f.orderID = nonce, amount, orderID
	if f.err != nil {
		return "", f.err
	}
	return "bt-tx-1", nil
}

func TestBraintreeGateway(t *testing.T) {
	fake := &fakeBraintree{}
	g := NewBraintreeGateway(fake)

	_, err := g.Charge(context.Background(), chargeReq(model.PaymentMethodCard))
	assert.ErrorIs(t, err, ErrMissingNonce)

	req := chargeReq(model.PaymentMethodCard)
	req.Details.Nonce = "fake-valid-nonce"
	resp, err := g.Charge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "bt-tx-1", resp.TransactionID)
	assert.Equal(t, "braintree", resp.Provider)
	assert.Equal(t, "fake-valid-nonce", fake.nonce)
	assert.Equal(t, "session-1", fake.orderID)
	assert.True(t, decimal.NewFromInt(50000).Equal(fake.amount))

	fake.err = errors.New("processor declined")
	_, err = g.Charge(context.Background(), req)
	assert.ErrorContains(t, err, "processor declined")
}

func newPaypalTestServer(t *testing.T, captureBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		_, _ = io.WriteString(w, `{"access_token":"tok"}`)
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		units := body["purchase_units"].([]interface{})
		unit := units[0].(map[string]interface{})
		assert.Equal(t, "doc-premium-001:view_once", unit["reference_id"])
		amount := unit["amount"].(map[string]interface{})
		assert.Equal(t, "9.99", amount["value"])
		_, _ = io.WriteString(w, `{"id":"ORDER-1","status":"CREATED","links":[{"rel":"self","href":"x"},{"rel":"approve","href":"https://paypal.test/approve"}]}`)
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, captureBody)
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-404/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"name":"UNPROCESSABLE_ENTITY"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPaypalClient_CreateOrder(t *testing.T) {
	srv := newPaypalTestServer(t, "{}")
	c := newPaypalClient(&config.Paypal{BaseApiURL: srv.URL + "/", ClientID: "id", ClientSecret: "secret"}, srv.Client())

	resp, err := c.CreateOrder(context.Background(), &CreateOrderRequest{
		ReferenceID: PaypalReferenceID("doc-premium-001", "view_once"),
		CustomID:    "session-1",
		Amount:      MajorUnits(999, "USD"),
		Currency:    "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", resp.OrderID)
	assert.Equal(t, "https://paypal.test/approve", resp.ApproveURL)
}

func TestPaypalGateway_Capture(t *testing.T) {
	completed := `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"reference_id":"doc-premium-001:view_once","payments":{"captures":[{"id":"CAP-1","status":"COMPLETED"}]}}]}`
	srv := newPaypalTestServer(t, completed)
	g := NewPaypalGateway(newPaypalClient(&config.Paypal{BaseApiURL: srv.URL, ClientID: "id", ClientSecret: "secret"}, srv.Client()))

	_, err := g.Charge(context.Background(), chargeReq(model.PaymentMethodPaypal))
	assert.ErrorIs(t, err, ErrMissingPaypalOrder)

	req := chargeReq(model.PaymentMethodPaypal)
	req.Details.PaypalOrderID = "ORDER-1"
	resp, err := g.Charge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", resp.TransactionID)
	assert.Equal(t, "paypal", resp.Provider)

	req.PackageID = "view_week"
	_, err = g.Charge(context.Background(), req)
	assert.ErrorContains(t, err, "was created for")

	req.PackageID = "view_once"
	req.Details.PaypalOrderID = "ORDER-404"
	_, err = g.Charge(context.Background(), req)
	assert.ErrorContains(t, err, "paypal error 422")
}

func TestPaypalGateway_DeclinedCapture(t *testing.T) {
	declined := `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-2","status":"DECLINED"}]}}]}`
	srv := newPaypalTestServer(t, declined)
	g := NewPaypalGateway(newPaypalClient(&config.Paypal{BaseApiURL: srv.URL, ClientID: "id", ClientSecret: "secret"}, srv.Client()))

	req := chargeReq(model.PaymentMethodPaypal)
	req.Details.PaypalOrderID = "ORDER-1"
	_, err := g.Charge(context.Background(), req)
	assert.ErrorContains(t, err, "DECLINED")
}

func TestNewPaypalPricing(t *testing.T) {
	p, err := NewPaypalPricing(&config.Paypal{SettleCurrency: "usd", SettleRate: "0.000039"})
	require.NoError(t, err)
	assert.Equal(t, "USD", p.SettleCurrency)
	assert.Equal(t, "0.000039", p.Rate.String())

	p, err = NewPaypalPricing(&config.Paypal{SettleCurrency: "USD"})
	require.NoError(t, err)
	assert.True(t, p.Rate.IsZero())

	for _, rate := range []string{"abc", "0", "-0.5"} {
		_, err = NewPaypalPricing(&config.Paypal{SettleCurrency: "USD", SettleRate: rate})
		assert.Error(t, err, rate)
	}
}

func TestPaypalPricing_Convert(t *testing.T) {
	p := PaypalPricing{SettleCurrency: "USD", Rate: decimal.RequireFromString("0.00004")}

	tests := []struct {
		amount       int64
		currency     string
		wantAmount   string
		wantCurrency string
	}{
		{50000, "VND", "2.00", "USD"},
		{200000, "vnd", "8.00", "USD"},
		{1999, "USD", "19.99", "USD"},
		{1500, "JPY", "1500", "JPY"},
	}
	for _, tt := range tests {
		amount, currency, err := p.Convert(tt.amount, tt.currency)
		require.NoError(t, err, tt.currency)
		assert.Equal(t, tt.wantCurrency, currency)
		assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(amount), "%s: got %s", tt.currency, amount)
	}

	_, _, err := PaypalPricing{SettleCurrency: "USD"}.Convert(50000, "VND")
	assert.ErrorIs(t, err, ErrCurrencyUnsupported)

	_, _, err = p.Convert(10, "VND")
	assert.ErrorIs(t, err, ErrCurrencyUnsupported)
}
